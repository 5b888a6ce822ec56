package plan

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/weft-org/weft/internal/core"
)

// Value is one bound value flowing between instances: a literal for value
// params, file paths otherwise.
type Value struct {
	Kind  core.ParamKind `json:"kind"`
	Items []string       `json:"items"`
}

// String renders the value for command template expansion. Multi-item
// values join with single spaces.
func (v Value) String() string {
	return strings.Join(v.Items, " ")
}

// scalarKey is the reserved key under which scalar channels store their
// single value.
const scalarKey = ""

// Channel is a write-once conduit from one producer output to its
// consumers. Keyed channels hold one value per instance key; scalar
// channels hold a single value broadcast to every consumer. Values become
// visible only after the producing instance reached a terminal successful
// state, because the scheduler publishes after that transition.
type Channel struct {
	name   string
	keyed  bool
	mu     sync.Mutex
	values map[string]Value
}

// NewChannel creates a channel for the named producer output.
func NewChannel(name string, keyed bool) *Channel {
	return &Channel{
		name:   name,
		keyed:  keyed,
		values: make(map[string]Value),
	}
}

// Name returns the producer output reference the channel carries.
func (c *Channel) Name() string { return c.name }

// Keyed reports whether the channel holds one value per key.
func (c *Channel) Keyed() bool { return c.keyed }

// Publish writes the value for the key. Scalar channels ignore the key.
// Each slot is write-once; a second write is a graph defect.
func (c *Channel) Publish(key string, v Value) error {
	if !c.keyed {
		key = scalarKey
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.values[key]; exists {
		return core.NewGraphError("", fmt.Errorf("%w: %s[%s]", core.ErrChannelAlreadyWritten, c.name, key))
	}
	c.values[key] = v
	return nil
}

// Get returns the committed value for the key, if any. Scalar channels
// ignore the key.
func (c *Channel) Get(key string) (Value, bool) {
	if !c.keyed {
		key = scalarKey
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

// Collect returns every committed value in key order.
func (c *Channel) Collect() []Value {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := lo.Keys(c.values)
	sort.Strings(keys)
	return lo.Map(keys, func(k string, _ int) Value { return c.values[k] })
}

// Len returns the number of committed values.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}
