package check

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmmoran/buildergen/pkg/action/generate"
	"github.com/cmmoran/buildergen/pkg/parser"
)

func writeFile(t *testing.T, path, src string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "go.mod"), "module example.com/chk\n\ngo 1.21\n")
	writeFile(t, filepath.Join(dir, "s.go"), "package chk\n\n//builder:gen\ntype S struct{ X int }\n")
	out := filepath.Join(dir, parser.DefaultOutFile)
	opts := func() *parser.Options { return &parser.Options{InDir: dir} }

	drifts, err := Check(context.Background(), opts())
	require.ErrorIs(t, err, ErrDrift)
	require.Len(t, drifts, 1)
	assert.Equal(t, out, drifts[0].Path)
	assert.False(t, drifts[0].Orphan)
	assert.Contains(t, drifts[0].Diff, "NewSBuilder")

	_, err = generate.Generate(context.Background(), opts())
	require.NoError(t, err)
	drifts, err = Check(context.Background(), opts())
	require.NoError(t, err)
	assert.Empty(t, drifts)

	writeFile(t, filepath.Join(dir, "s.go"), "package chk\n\n//builder:gen\ntype S struct{ X, Y int }\n")
	drifts, err = Check(context.Background(), opts())
	require.ErrorIs(t, err, ErrDrift)
	require.Len(t, drifts, 1)
	assert.Contains(t, drifts[0].Diff, "func (b SBuilder[SX, SY]) Y(v int)")

	writeFile(t, filepath.Join(dir, "s.go"), "package chk\n\ntype S struct{ X, Y int }\n")
	drifts, err = Check(context.Background(), opts())
	require.ErrorIs(t, err, ErrDrift)
	require.Len(t, drifts, 1)
	assert.True(t, drifts[0].Orphan)
	assert.Equal(t, out, drifts[0].Path)
}
