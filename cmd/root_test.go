package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"migrate", "import", "assign", "score", "sellers", "leads", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "prospect-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	conf := rootCmd.PersistentFlags().Lookup("config")
	require.NotNil(t, conf, "root command should have --config flag")
	assert.Equal(t, "", conf.DefValue)

	level := rootCmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, level, "root command should have --log-level flag")
	assert.Equal(t, "", level.DefValue)

	// Persistent flags reach subcommands.
	assert.NotNil(t, importCmd.Flags().Lookup("config"))
}

func TestRootCommand_ConfigFlagLoadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  database_url: alt.db\nlog:\n  level: error\n"), 0o644))

	prev := cfg
	t.Cleanup(func() {
		cfg = prev
		configPath = ""
		logLevel = ""
	})
	configPath = path
	logLevel = "warn"

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	assert.Equal(t, "alt.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "warn", cfg.Log.Level)

	configPath = filepath.Join(dir, "missing.yaml")
	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestImportCommand_Flags(t *testing.T) {
	dir := importCmd.Flags().Lookup("dir")
	require.NotNil(t, dir, "import command should have --dir flag")
	assert.Equal(t, []string{"true"}, dir.Annotations[cobra.BashCompOneRequiredFlag])

	dry := importCmd.Flags().Lookup("dry-run")
	require.NotNil(t, dry, "import command should have --dry-run flag")
	assert.Equal(t, "false", dry.DefValue)
}

func TestAssignCommand_Flags(t *testing.T) {
	flag := assignCmd.Flags().Lookup("geocode")
	require.NotNil(t, flag, "assign command should have --geocode flag")
	assert.Equal(t, "false", flag.DefValue)

	page := assignCmd.Flags().Lookup("page-size")
	require.NotNil(t, page)
	assert.Equal(t, "200", page.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestSellersCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range sellersCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"load", "list"} {
		assert.True(t, names[name], "sellers should have subcommand %q", name)
	}
	assert.NotNil(t, sellersLoadCmd.Flags().Lookup("file"))
}

func TestLeadsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range leadsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "purge"} {
		assert.True(t, names[name], "leads should have subcommand %q", name)
	}

	for _, flagName := range []string{"seller", "unassigned", "limit"} {
		assert.NotNil(t, leadsListCmd.Flags().Lookup(flagName), "leads list should have --%s flag", flagName)
	}
	require.NotNil(t, leadsPurgeCmd.Flags().Lookup("id"))
}
