//go:build linux

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModules_JSON(t *testing.T) {
	withJSON(t)
	out, err := captureOutput(t, runModules)
	require.NoError(t, err)

	var mods []moduleJSON
	assertJSON(t, out, &mods)
	mains := 0
	for _, m := range mods {
		if m.Main {
			mains++
		}
	}
	assert.Equal(t, 1, mains)
}

func TestRegions(t *testing.T) {
	out, err := captureOutput(t, func() error { return runRegions("main") })
	require.NoError(t, err)
	assert.Contains(t, out, "writable regions")

	_, err = captureOutput(t, func() error { return runRegions(" , ") })
	assert.Error(t, err)
}
