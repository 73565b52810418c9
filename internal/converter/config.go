// Package converter keeps the three representations of a mind map in sync:
// Markdown text, the ast tree, and the NodeTree format consumed by the
// mind-map renderer.
package converter

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mindmark/internal/ast"
)

// Defaults.
const (
	DefaultIndentSize = 2
	DefaultMaxDepth   = 256

	// listIndentStep is the number of spaces per list nesting level.
	listIndentStep = 2
)

// IDFunc returns a new node id on each call.
type IDFunc func() string

// Sequence returns ids "node_1", "node_2", ... A fresh sequence is created
// for every conversion, so conversions share no counter.
func Sequence() IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("node_%d", n)
	}
}

// UUIDs returns random ids; use it when ids must be unique across documents.
func UUIDs() IDFunc {
	return ast.NewID
}

// Config configures the converters.
type Config struct {
	// IndentSize is the number of spaces per depth level used for notes.
	IndentSize int `yaml:"indent_size"`
	// MaxDepth caps tree nesting when building trees from untrusted input.
	MaxDepth int `yaml:"max_depth"`
	// Meta is stamped on every NodeTree produced.
	Meta Meta `yaml:"meta"`
	// IDs creates the id source for one conversion. Nil means Sequence.
	IDs func() IDFunc `yaml:"-"`
}

// DefaultConfig returns the converter defaults.
func DefaultConfig() Config {
	return Config{
		IndentSize: DefaultIndentSize,
		MaxDepth:   DefaultMaxDepth,
		Meta: Meta{
			Name:    "mindmark",
			Author:  "mindmark",
			Version: "1.0",
		},
	}
}

// Validate validates the converter configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.IndentSize, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxDepth, validation.Required, validation.Min(1)),
		validation.Field(&c.Meta),
	)
}

// Validate validates the NodeTree meta block.
func (m Meta) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required),
		validation.Field(&m.Version, validation.Required),
	)
}

func (c Config) newIDs() IDFunc {
	if c.IDs != nil {
		return c.IDs()
	}
	return Sequence()
}

// idAllocator hands out ids for one conversion. An id found in the input is
// kept the first time it is seen; generated ids skip every reserved or
// assigned id, so missing and repeated ids never collide with existing ones.
type idAllocator struct {
	next     IDFunc
	reserved map[string]struct{}
	taken    map[string]struct{}
}

func (c Config) newAllocator() *idAllocator {
	return &idAllocator{
		next:     c.newIDs(),
		reserved: make(map[string]struct{}),
		taken:    make(map[string]struct{}),
	}
}

// reserve marks id as present in the input.
func (a *idAllocator) reserve(id string) {
	if id != "" {
		a.reserved[id] = struct{}{}
	}
}

// assign returns id if it is non-empty and unused, and a fresh id otherwise.
func (a *idAllocator) assign(id string) string {
	if id != "" {
		if _, dup := a.taken[id]; !dup {
			a.taken[id] = struct{}{}
			return id
		}
	}
	// A custom IDFunc may keep returning used ids; give up on it after
	// more attempts than there are used ids.
	for tries := len(a.reserved) + len(a.taken) + 1; ; tries-- {
		if tries == 0 {
			a.next = UUIDs()
		}
		n := a.next()
		if _, ok := a.reserved[n]; ok {
			continue
		}
		if _, ok := a.taken[n]; ok {
			continue
		}
		a.taken[n] = struct{}{}
		return n
	}
}
