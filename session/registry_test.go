package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Zero(t, r.Len())
	assert.Nil(t, r.Get("missing"))

	a := &Session{ID: "a"}
	b := &Session{ID: "b"}
	r.Add(a)
	r.Add(b)
	assert.Equal(t, 2, r.Len())
	assert.Same(t, a, r.Get("a"))

	r.Remove("a")
	assert.Nil(t, r.Get("a"))
	assert.Equal(t, 1, r.Len())
}
