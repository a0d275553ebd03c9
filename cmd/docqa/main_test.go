package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/config"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	cfg.Index.Dir = filepath.Join(dir, "index")
	cfg.Embedder.Dimension = 64
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.Save(path, cfg))
	return path, cfg.Index.Dir
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(args...)
	require.NoError(t, err)
	return out
}

func TestAssemble_UnknownTypes(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *config.AppConfig)
		want   string
	}{
		{"embedder", func(c *config.AppConfig) { c.Embedder.Type = "bert" }, "unknown embedder: bert"},
		{"index", func(c *config.AppConfig) { c.Index.Type = "faiss" }, "unknown index: faiss"},
		{"summarizer", func(c *config.AppConfig) { c.Summarizer.Type = "bart" }, "unknown summarizer: bart"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := config.Load(filepath.Join(t.TempDir(), "none.yaml"))
			require.NoError(t, err)
			cfg.Index.Dir = t.TempDir()
			tc.mutate(cfg)
			_, err = assemble(context.Background(), cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestCLI_IngestQueryStatus(t *testing.T) {
	cfgPath, indexDir := writeConfig(t)
	doc := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(doc, []byte("Graph indexes connect each vector to close neighbors. Queries walk the graph greedily."), 0o644))

	out := run(t, "--config", cfgPath, "ingest", doc, "--no-summary")
	assert.Contains(t, out, "notes: 1 chunks (slides)")
	assert.FileExists(t, filepath.Join(indexDir, "index.hnsw"))
	assert.FileExists(t, filepath.Join(indexDir, "metadata.json"))

	out = run(t, "--config", cfgPath, "query", "graph", "neighbors")
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "[notes p.1]")

	out = run(t, "--config", cfgPath, "status")
	assert.Contains(t, out, "vectors:   1")
	assert.Contains(t, out, "dimension: 64")
}

func TestCLI_IngestKeepsGoodFilesWhenOthersFail(t *testing.T) {
	cfgPath, indexDir := writeConfig(t)
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	require.NoError(t, os.WriteFile(good, []byte("Vector indexes answer nearest neighbor queries quickly."), 0o644))
	missing := filepath.Join(dir, "missing.txt")
	unsupported := filepath.Join(dir, "archive.zip")
	require.NoError(t, os.WriteFile(unsupported, []byte("zip"), 0o644))

	out, err := execute("--config", cfgPath, "ingest", missing, good, unsupported, "--no-summary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skipped 2 of 3 files")
	assert.Contains(t, out, "skipped "+missing)
	assert.Contains(t, out, "good: 1 chunks")
	assert.FileExists(t, filepath.Join(indexDir, "metadata.json"))

	out = run(t, "--config", cfgPath, "status")
	assert.Contains(t, out, "vectors:   1")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b", preview(" a\n b ", 10))
	assert.Equal(t, "abc...", preview("abcdef", 3))
}
