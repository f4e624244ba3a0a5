package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmdFlags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--offline", "--config", "x.env"}))

	offline, err := cmd.Flags().GetBool("offline")
	require.NoError(t, err)
	assert.True(t, offline)
	cfg, err := cmd.Flags().GetString("config")
	require.NoError(t, err)
	assert.Equal(t, "x.env", cfg)
}
