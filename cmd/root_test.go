package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"analyze", "isochrones", "serve", "analyses"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "isolysis", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestAnalyzeCommand_RequiredFlags(t *testing.T) {
	bands := analyzeCmd.Flags().Lookup("bands")
	require.NotNil(t, bands, "analyze command should have --bands flag")

	pois := analyzeCmd.Flags().Lookup("pois")
	require.NotNil(t, pois, "analyze command should have --pois flag")
}

func TestIsochronesCommand_Flags(t *testing.T) {
	centroids := isochronesCmd.Flags().Lookup("centroids")
	require.NotNil(t, centroids, "isochrones command should have --centroids flag")

	interval := isochronesCmd.Flags().Lookup("interval")
	require.NotNil(t, interval, "isochrones command should have --interval flag")
	assert.Equal(t, "0", interval.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestAnalysesCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range analysesCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["get"], "expected subcommand \"get\" not found")
}
