// Package codec holds the message encodings a peer can pick during the
// handshake. A codec turns one trimmed payload into a structured value and
// back; rendered output never contains a line break, so every transport can
// frame one message per line.
package codec

import (
	"slices"

	"github.com/samber/oops"
)

// Codec parses and renders structured messages.
type Codec interface {
	Name() string
	Parse(data []byte) (map[string]any, error)
	Render(v map[string]any) ([]byte, error)
}

// Registry is a fixed table of codecs keyed by name. It is never mutated
// after construction.
type Registry struct {
	codecs map[string]Codec
}

// NewRegistry builds a registry from the given codecs. Later entries win on
// duplicate names.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{codecs: make(map[string]Codec, len(codecs))}
	for _, c := range codecs {
		r.codecs[c.Name()] = c
	}
	return r
}

// Default returns the registry with every built-in codec.
func Default() *Registry {
	return NewRegistry(JSON{}, YAML{})
}

// Lookup resolves a codec by its exact name.
func (r *Registry) Lookup(name string) (Codec, bool) {
	c, ok := r.codecs[name]
	return c, ok
}

// Names lists the supported codec names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.codecs))
	for name := range r.codecs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func notAnObject(codec string) error {
	return oops.In("codec").With("codec", codec).Errorf("payload is not an object")
}
