package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmdFlags(t *testing.T) {
	root := rootCmd()

	for _, name := range []string{"env-file", "log-level", "log-json"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
	assert.NotNil(t, root.Flags().Lookup("addr"))

	ask, _, err := root.Find([]string{"ask"})
	require.NoError(t, err)
	assert.Equal(t, "ask", ask.Name())
	assert.Equal(t, "cli", ask.Flags().Lookup("session").DefValue)
}

func TestAskRequiresMessage(t *testing.T) {
	root := rootCmd()
	root.SetArgs([]string{"ask"})
	assert.Error(t, root.Execute())
}
