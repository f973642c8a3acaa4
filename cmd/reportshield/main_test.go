package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"audit", "serve", "mcp", "batch", "watch", "version"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "reportshield", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_SharedFlags(t *testing.T) {
	for _, name := range []string{"rules", "schematic", "style", "public", "ocr-provider", "port", "concurrency", "root"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
}

func TestBatchCommand_Flags(t *testing.T) {
	flag := batchCmd.Flags().Lookup("xlsx")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)

	flag = watchCmd.Flags().Lookup("debounce-ms")
	require.NotNil(t, flag)
	assert.Equal(t, "500", flag.DefValue)
}

func TestPrintVersion(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := version, buildTime, gitCommit
	version, buildTime, gitCommit = "1.2.3", "2023-12-01_10:30:00", "abc123"
	defer func() {
		version, buildTime, gitCommit = oldVersion, oldBuildTime, oldGitCommit
	}()

	var buf bytes.Buffer
	printVersion(&buf)

	out := buf.String()
	assert.Contains(t, out, "ReportShield")
	assert.Contains(t, out, "Version: 1.2.3")
	assert.Contains(t, out, "Build Time: 2023-12-01_10:30:00")
	assert.Contains(t, out, "Git Commit: abc123")
	assert.Contains(t, out, "Built with: "+runtime.Version())
}

func TestAuditCommand_NonPDF(t *testing.T) {
	input := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(input, []byte("just some text"), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{
		"audit", input,
		"--rules", filepath.Join("..", "..", "system", "output_rules.txt"),
		"--schematic", filepath.Join("..", "..", "system", "execution_schematic.txt"),
		"--state-hooks", filepath.Join("..", "..", "system", "state_hooks.yaml"),
		"--ocr-provider", "local",
		"--loglevel", "error",
	})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
	assert.Contains(t, out.String(), "Audit failed: unsupported file type")
	assert.Contains(t, out.String(), "[Not found]")
}
