package retry

import (
	"bytes"
	"encoding/gob"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Well-known context attribute keys
const (
	// AttrID is the identity attribute assigned to every context at open,
	// used by the episode registry to correlate across goroutines
	AttrID = "context.id"

	// AttrLabel names the operation being retried
	AttrLabel = "context.label"

	// AttrExhausted marks a context whose episode used all attempts
	AttrExhausted = "context.exhausted"

	// AttrRecovered marks a context whose exhaustion was absorbed by a
	// recovery callback
	AttrRecovered = "context.recovered"

	// AttrClosed marks a context whose episode finished
	AttrClosed = "context.closed"

	// AttrStateKey carries the correlation key of a stateful episode
	AttrStateKey = "context.state.key"

	// AttrGlobalState marks a context that is persisted globally: the
	// executor runs one attempt per invocation and never evicts it from
	// the cache. Set by the circuit breaker policy.
	AttrGlobalState = "state.global"

	// AttrCircuitOpen reflects the circuit breaker state for listeners
	AttrCircuitOpen = "circuit.open"

	// AttrCircuitShortCount counts calls rejected while the circuit was open
	AttrCircuitShortCount = "circuit.shortCount"

	// attrBackOffContext stores the episode's backoff state so stateful
	// re-deliveries resume the delay sequence
	attrBackOffContext = "backoff.context"
)

// Context holds the mutable state of one retry episode. All per-episode
// bookkeeping lives here; policy instances stay stateless and shareable.
type Context interface {
	// RetryCount returns the number of registered failures
	RetryCount() int

	// LastError returns the most recently registered failure, nil before
	// the first failure
	LastError() error

	// Parent returns the enclosing episode's context for nested retries
	Parent() Context

	// SetAttribute stores auxiliary per-episode state
	SetAttribute(key string, value interface{})

	// Attribute retrieves auxiliary per-episode state
	Attribute(key string) (interface{}, bool)

	// RemoveAttribute deletes an attribute, reporting whether it existed
	RemoveAttribute(key string) bool

	// SetExhaustedOnly flags the episode so no further attempts start
	SetExhaustedOnly()

	// ExhaustedOnly reports whether further attempts are forbidden
	ExhaustedOnly() bool
}

// BaseContext is the standard Context implementation. Policies with richer
// per-episode state embed it.
type BaseContext struct {
	mu            sync.RWMutex
	parent        Context
	count         int
	lastErr       error
	exhaustedOnly bool
	attrs         map[string]interface{}
}

// NewBaseContext creates a context for a new episode
func NewBaseContext(parent Context) *BaseContext {
	return &BaseContext{
		parent: parent,
		attrs: map[string]interface{}{
			AttrID: uuid.NewString(),
		},
	}
}

// RetryCount returns the number of registered failures
func (c *BaseContext) RetryCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// LastError returns the most recently registered failure
func (c *BaseContext) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Parent returns the enclosing episode's context
func (c *BaseContext) Parent() Context {
	return c.parent
}

// RegisterError records a failed attempt. The count grows by exactly one per
// non-nil error; a nil error only clears the last failure.
func (c *BaseContext) RegisterError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	if err != nil {
		c.count++
	}
}

// SetAttribute stores auxiliary per-episode state
func (c *BaseContext) SetAttribute(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attrs[key] = value
}

// Attribute retrieves auxiliary per-episode state
func (c *BaseContext) Attribute(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.attrs[key]
	return v, ok
}

// RemoveAttribute deletes an attribute, reporting whether it existed
func (c *BaseContext) RemoveAttribute(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.attrs[key]
	delete(c.attrs, key)
	return ok
}

// SetExhaustedOnly flags the episode so no further attempts start
func (c *BaseContext) SetExhaustedOnly() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exhaustedOnly = true
}

// ExhaustedOnly reports whether further attempts are forbidden
func (c *BaseContext) ExhaustedOnly() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.exhaustedOnly
}

// ID returns the identity attribute assigned at creation
func (c *BaseContext) ID() string {
	if v, ok := c.Attribute(AttrID); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// HasAttributeTrue reports whether the attribute is present and true
func HasAttributeTrue(rc Context, key string) bool {
	v, ok := rc.Attribute(key)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// contextSnapshot is the wire form of a serialized context
type contextSnapshot struct {
	Count         int
	ExhaustedOnly bool
	HasErr        bool
	ErrMsg        string
	Attrs         map[string]interface{}
}

func init() {
	gob.Register(time.Time{})
	gob.Register(time.Duration(0))
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
}

// encodable reports whether a value survives a gob round trip on its own
func encodable(v interface{}) bool {
	if v == nil {
		return false
	}
	var buf bytes.Buffer
	return gob.NewEncoder(&buf).Encode(&v) == nil
}

// MarshalBinary serializes the retry count and the encodable subset of the
// attribute bag. The last failure travels as its message only; callers get
// an equivalent, not identical, error back.
func (c *BaseContext) MarshalBinary() ([]byte, error) {
	c.mu.RLock()
	snap := contextSnapshot{
		Count:         c.count,
		ExhaustedOnly: c.exhaustedOnly,
		Attrs:         make(map[string]interface{}, len(c.attrs)),
	}
	if c.lastErr != nil {
		snap.HasErr = true
		snap.ErrMsg = c.lastErr.Error()
	}
	for k, v := range c.attrs {
		if encodable(v) {
			snap.Attrs[k] = v
		}
	}
	c.mu.RUnlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores a serialized context
func (c *BaseContext) UnmarshalBinary(data []byte) error {
	var snap contextSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = snap.Count
	c.exhaustedOnly = snap.ExhaustedOnly
	c.lastErr = nil
	if snap.HasErr {
		c.lastErr = errors.New(snap.ErrMsg)
	}
	c.attrs = snap.Attrs
	if c.attrs == nil {
		c.attrs = make(map[string]interface{})
	}
	return nil
}
