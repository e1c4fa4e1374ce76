package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoColorStyles_RenderPlainText(t *testing.T) {
	styles := NoColorStyles()

	assert.Equal(t, "hello", styles.Header.Render("hello"))
	assert.Equal(t, "hello", styles.Error.Render("hello"))
	assert.Equal(t, "hello", styles.Success.Render("hello"))
}

func TestGetStyles_PicksByPreference(t *testing.T) {
	plain := GetStyles(true)
	assert.Equal(t, "x", plain.Header.Render("x"))

	colored := GetStyles(false)
	assert.NotNil(t, colored.Header)
}
