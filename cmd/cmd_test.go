package cmd

import (
	"bytes"
	"context"
	"go/token"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmmoran/buildergen/internal/diag"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"trace", slog.Level(-8), false},
		{"TRACE", slog.Level(-8), false},
		{"debug", slog.LevelDebug, false},
		{"warn", slog.LevelWarn, false},
		{"debug+1", slog.LevelDebug + 1, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := newLogger("info", "xml")
	assert.Error(t, err)
}

func TestPrintErrors(t *testing.T) {
	fset := token.NewFileSet()
	f := fset.AddFile("p.go", -1, 100)
	f.SetLines([]int{0, 10, 20})
	d := diag.WithFileSet(diag.Errorf(diag.InvalidOption, diag.At(f.Pos(12)), "unknown option color"), fset)

	var buf bytes.Buffer
	printErrors(&buf, d)
	assert.Equal(t, "p.go:2:3: unknown option color (invalid option)\n", buf.String())
}

func TestGenerateCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/c\n\ngo 1.21\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s.go"), []byte("package c\n\n//builder:gen\ntype S struct{ X int }\n"), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"generate", "--dir", dir, "--output", "builders.go"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.FileExists(t, filepath.Join(dir, "builders.go"))

	rootCmd.SetArgs([]string{"check", "--dir", dir, "--output", "builders.go"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "buildergen")
}

func TestCleanCommandRelativeManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/c\n\ngo 1.21\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s.go"), []byte("package c\n\n//builder:gen\ntype S struct{ X int }\n"), 0o644))
	out := filepath.Join(dir, "builder_gen.go")

	rootCmd.SetArgs([]string{"generate", "--dir", dir, "--output", "builder_gen.go", "--manifest", "builders.yaml"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.FileExists(t, out)
	assert.FileExists(t, filepath.Join(dir, "builders.yaml"))

	rootCmd.SetArgs([]string{"clean", "--dir", dir, "--manifest", "builders.yaml"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.NoFileExists(t, out)
}
