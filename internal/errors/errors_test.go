package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaults(t *testing.T) {
	err := New(nil).Build()
	assert.Equal(t, ComponentUnknown, err.Component)
	assert.Equal(t, CategoryGeneric, err.Category)
	assert.Error(t, error(err))
}

func TestBuilderFields(t *testing.T) {
	wrapped := errors.New("boom")
	err := New(wrapped).
		Component("playback").
		Category(CategoryValidation).
		Context("frame_size", 4).
		Build()

	assert.Equal(t, "playback", err.Component)
	assert.Equal(t, CategoryValidation, err.Category)
	assert.Equal(t, wrapped, err.Unwrap())
	assert.Equal(t, 4, err.GetContext()["frame_size"])
}

func TestIsByCategory(t *testing.T) {
	a := New(errors.New("a")).Category(CategorySync).Build()
	b := New(errors.New("b")).Category(CategorySync).Build()
	c := New(errors.New("c")).Category(CategoryState).Build()

	assert.True(t, a.Is(b))
	assert.False(t, a.Is(c))
}

func TestNewf(t *testing.T) {
	err := Newf("invalid size: %d", 7).Build()
	require.EqualError(t, error(err), "invalid size: 7")
}

func TestContextIsolated(t *testing.T) {
	err := New(errors.New("x")).Context("k", 1).Build()
	ctx := err.GetContext()
	ctx["k"] = 2
	assert.Equal(t, 1, err.GetContext()["k"])
}
