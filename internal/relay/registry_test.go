package relay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gorelay/internal/codec"
)

func TestRegistryRejectsDuplicateIDs(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newSession("a", codec.JSON{}, &recorder{}, "")))

	err := r.Register(newSession("a", codec.JSON{}, &recorder{}, ""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateSession))
	assert.Equal(t, 1, r.Size())
}

func TestRegistryUnregisterTwice(t *testing.T) {
	r := NewRegistry()
	s := newSession("a", codec.JSON{}, &recorder{}, "")
	require.NoError(t, r.Register(s))

	got, ok := r.Unregister("a")
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = r.Unregister("a")
	assert.False(t, ok)
	_, ok = r.Get("a")
	assert.False(t, ok)
	assert.Zero(t, r.Size())
}

func TestRegistryForEachExcludes(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Register(newSession(id, codec.JSON{}, &recorder{}, "")))
	}

	var seen []string
	r.ForEach("b", func(s *Session) { seen = append(seen, s.ID()) })
	assert.ElementsMatch(t, []string{"a", "c"}, seen)

	seen = nil
	r.ForEach("", func(s *Session) { seen = append(seen, s.ID()) })
	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)

	assert.ElementsMatch(t, []string{"a", "b"}, r.IDs("c"))
}

func TestRegistryForEachToleratesRemoval(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Register(newSession(id, codec.JSON{}, &recorder{}, "")))
	}

	visited := 0
	r.ForEach("", func(s *Session) {
		visited++
		r.Unregister(s.ID())
	})
	assert.Equal(t, 3, visited)
	assert.Zero(t, r.Size())
}
