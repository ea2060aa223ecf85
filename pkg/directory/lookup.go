package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/googol/pkg/types"
)

// WaitFor polls dir until name is bound or ctx ends
func WaitFor(ctx context.Context, dir types.DirectoryService, name string, interval time.Duration) (types.Handle, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// the directory itself may still be starting, so every error means poll again
		if h, err := dir.Resolve(ctx, name); err == nil {
			return h, nil
		}

		select {
		case <-ctx.Done():
			return types.Handle{}, fmt.Errorf("waiting for %s: %w", name, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Peers lists handles whose names start with prefix, skipping self and
// names that no longer resolve.
func Peers(ctx context.Context, dir types.DirectoryService, prefix, self string) ([]types.Handle, error) {
	names, err := dir.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	handles := make([]types.Handle, 0, len(names))
	for _, name := range names {
		if name == self {
			continue
		}
		h, err := dir.Resolve(ctx, name)
		if err != nil {
			continue
		}
		handles = append(handles, h)
	}
	return handles, nil
}
