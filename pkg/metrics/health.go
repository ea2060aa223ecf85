package metrics

import (
	"sort"
	"sync"
	"time"
)

// Component is the last reported state of one part of a node, such as the
// gRPC listener or a barrel's join.
type Component struct {
	Healthy bool
	Message string
	Updated time.Time
}

type componentRegistry struct {
	mu         sync.RWMutex
	components map[string]Component
	critical   []string
	started    time.Time
	version    string
}

var components = newComponentRegistry()

func newComponentRegistry() *componentRegistry {
	return &componentRegistry{
		components: make(map[string]Component),
		critical:   []string{"grpc"},
		started:    time.Now(),
	}
}

// SetVersion records the build version reported by /health
func SetVersion(version string) {
	components.mu.Lock()
	defer components.mu.Unlock()
	components.version = version
}

// Version returns the recorded build version
func Version() string {
	components.mu.RLock()
	defer components.mu.RUnlock()
	return components.version
}

// Uptime returns how long the process has been running
func Uptime() time.Duration {
	return time.Since(components.started)
}

// SetCriticalComponents names the components that must be healthy before
// the node reports ready. The default is "grpc".
func SetCriticalComponents(names ...string) {
	components.mu.Lock()
	defer components.mu.Unlock()
	components.critical = append([]string(nil), names...)
}

// SetComponent records the state of a component, replacing any previous one
func SetComponent(name string, healthy bool, message string) {
	components.mu.Lock()
	defer components.mu.Unlock()
	components.components[name] = Component{
		Healthy: healthy,
		Message: message,
		Updated: time.Now(),
	}
}

// Components returns a copy of every recorded component
func Components() map[string]Component {
	components.mu.RLock()
	defer components.mu.RUnlock()

	out := make(map[string]Component, len(components.components))
	for name, c := range components.components {
		out[name] = c
	}
	return out
}

// Readiness evaluates the critical components in name order. checks maps
// each one to "ready" or to why it is not; message names the first
// component holding readiness back.
func Readiness() (ready bool, checks map[string]string, message string) {
	components.mu.RLock()
	defer components.mu.RUnlock()

	names := append([]string(nil), components.critical...)
	sort.Strings(names)

	ready = true
	checks = make(map[string]string, len(names))
	for _, name := range names {
		c, ok := components.components[name]
		switch {
		case !ok:
			checks[name] = "not registered"
		case !c.Healthy:
			checks[name] = "not ready: " + c.Message
		default:
			checks[name] = "ready"
			continue
		}
		if ready {
			message = "waiting for " + name
		}
		ready = false
	}
	return ready, checks, message
}
