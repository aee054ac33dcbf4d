package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetFallsBackToDefault(t *testing.T) {
	assert.Equal(t, "Dracula", Get("dracula").Name)
	assert.Equal(t, "Catppuccin Mocha", Get("no-such-theme").Name)
	assert.Equal(t, Get(DefaultName), Get(""))
}

func TestNamesIncludeDefault(t *testing.T) {
	assert.Contains(t, Names(), DefaultName)
	assert.IsIncreasing(t, Names())
}
