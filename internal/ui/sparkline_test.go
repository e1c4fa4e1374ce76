package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSparkline_EmptyRendersBaseline(t *testing.T) {
	s := NewSparkline(10)

	assert.Equal(t, strings.Repeat("▁", 10), s.Render())
}

func TestSparkline_ScalesToMax(t *testing.T) {
	s := NewSparkline(4)
	s.Add(1)
	s.Add(2)
	s.Add(4)
	s.Add(8)

	out := []rune(s.Render())
	assert.Len(t, out, 4)
	assert.Equal(t, '█', out[3])
}

func TestSparkline_RingBufferWraps(t *testing.T) {
	s := NewSparkline(3)
	for i := 1; i <= 10; i++ {
		s.Add(float64(i))
	}

	assert.Equal(t, 10, s.Count())
	assert.Len(t, []rune(s.Render()), 3)
}

func TestSparkline_RenderWithWidth_TruncatesToRecent(t *testing.T) {
	s := NewSparkline(10)
	for i := 0; i < 10; i++ {
		s.Add(float64(i))
	}

	assert.Len(t, []rune(s.RenderWithWidth(5)), 5)
}

func TestSparkline_Clear(t *testing.T) {
	s := NewSparkline(5)
	s.Add(3)
	s.Clear()

	assert.Zero(t, s.Count())
	assert.Zero(t, s.Max())
}
