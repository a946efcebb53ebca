package retry

import (
	"context"
	"sync"
	"sync/atomic"
)

// Ambient episode discovery lets nested code find the active retry context
// without parameter threading. Two strategies exist:
//
//   - the context.Context carrier, always on: the executor derives the
//     context.Context it passes to callbacks with WithEpisode, so any code on
//     that call chain can use EpisodeFromContext. Fast and scoped to one
//     logical flow of control.
//
//   - the identity registry, enabled process-wide: every episode is also
//     published in a global map under its identity attribute, so code that
//     crossed a goroutine hand-off can still resolve it by id with
//     LookupEpisode.
//
// Prefer explicit context passing at new call sites; the registry is an
// escape hatch.

type episodeKey struct{}

// WithEpisode returns a context.Context carrying the episode
func WithEpisode(ctx context.Context, rc Context) context.Context {
	return context.WithValue(ctx, episodeKey{}, rc)
}

// EpisodeFromContext returns the episode carried by ctx, or nil
func EpisodeFromContext(ctx context.Context) Context {
	if rc, ok := ctx.Value(episodeKey{}).(Context); ok {
		return rc
	}
	return nil
}

var (
	registryEnabled atomic.Bool

	registryMu sync.RWMutex
	registry   = make(map[string]Context)
)

// EnableEpisodeRegistry turns on the process-wide identity registry
func EnableEpisodeRegistry() {
	registryEnabled.Store(true)
}

// DisableEpisodeRegistry turns off the identity registry and drops all
// published episodes
func DisableEpisodeRegistry() {
	registryEnabled.Store(false)
	registryMu.Lock()
	registry = make(map[string]Context)
	registryMu.Unlock()
}

// LookupEpisode resolves a published episode by its identity attribute
// (AttrID), or nil
func LookupEpisode(id string) Context {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[id]
}

// EpisodeID returns the identity attribute of rc, empty if absent
func EpisodeID(rc Context) string {
	if rc == nil {
		return ""
	}
	v, ok := rc.Attribute(AttrID)
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}

// publishEpisode registers rc in the identity registry when enabled. The
// executor pairs every publish with exactly one unpublish, on all exit
// paths.
func publishEpisode(rc Context) {
	if !registryEnabled.Load() {
		return
	}
	id := EpisodeID(rc)
	if id == "" {
		return
	}
	registryMu.Lock()
	registry[id] = rc
	registryMu.Unlock()
}

// unpublishEpisode removes rc from the identity registry
func unpublishEpisode(rc Context) {
	if !registryEnabled.Load() {
		return
	}
	id := EpisodeID(rc)
	if id == "" {
		return
	}
	registryMu.Lock()
	delete(registry, id)
	registryMu.Unlock()
}
