package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("warn", &buf)
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown", "books", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "books=3")
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New("chatty", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("debug", &buf)
	require.NoError(t, err)

	Component(l, "retrieval").Debug("query processed")

	assert.Contains(t, buf.String(), "component=retrieval")
	assert.NotNil(t, Component(nil, "x"))
}
