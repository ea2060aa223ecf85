package directory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cuemby/googol/pkg/log"
	"github.com/cuemby/googol/pkg/types"
	"github.com/rs/zerolog"
)

// Directory is an in-memory name to handle registry
type Directory struct {
	mu      sync.RWMutex
	entries map[string]types.Handle
	logger  zerolog.Logger
}

// New creates an empty directory
func New() *Directory {
	return &Directory{
		entries: make(map[string]types.Handle),
		logger:  log.WithComponent("directory"),
	}
}

// Register binds name to handle, replacing any previous binding
func (d *Directory) Register(ctx context.Context, name string, handle types.Handle) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if handle.Addr == "" {
		return fmt.Errorf("address is required for %s", name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.entries[name]; ok && prev != handle {
		d.logger.Info().Str("name", name).Str("old", prev.Addr).Str("new", handle.Addr).Msg("Rebinding name")
	}
	d.entries[name] = handle
	d.logger.Debug().Str("name", name).Str("addr", handle.Addr).Msg("Registered")
	return nil
}

// Unregister removes a binding. Unknown names are ignored.
func (d *Directory) Unregister(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.entries, name)
	return nil
}

// Resolve returns the handle bound to name
func (d *Directory) Resolve(ctx context.Context, name string) (types.Handle, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	h, ok := d.entries[name]
	if !ok {
		return types.Handle{}, fmt.Errorf("%w: %s", types.ErrNotFound, name)
	}
	return h, nil
}

// List returns every bound name starting with prefix, sorted
func (d *Directory) List(ctx context.Context, prefix string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.entries))
	for name := range d.entries {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Len returns the number of bindings
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}
