package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localrag/internal/workflow"
)

// isolate points HOME and the working directory at empty temp dirs so the
// developer's own config files cannot leak into a test.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("backend-url", "", "")
	fs.String("log-file", "", "")
	fs.String("log-level", "", "")
	fs.Bool("verbose", false, "")
	return fs
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, used, err := Load("", nil)
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, time.Duration(0), cfg.Backend.Timeout())

	p, err := cfg.Workflow.Policy()
	require.NoError(t, err)
	assert.Equal(t, workflow.ApplyLate, p)
	assert.Equal(t, "extractive", cfg.DevServer.Generator.Type)
}

func TestLoadLocalFileOverDefaults(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, LocalConfigFile), `
backend:
  url: http://rag.internal:9000
  timeout_secs: 30
intake:
  accept: [".pdf", ".csv", ".txt"]
workflow:
  late_responses: discard
`)
	cfg, used, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, LocalConfigFile, used)
	assert.Equal(t, "http://rag.internal:9000", cfg.Backend.URL)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout())
	assert.Equal(t, "file", cfg.Backend.UploadField)
	assert.Equal(t, []string{".pdf", ".csv", ".txt"}, cfg.Intake.Accept)
	assert.Equal(t, "discard", cfg.Workflow.LateResponses)
	assert.Equal(t, "enter", cfg.Query.SubmitKey)
}

func TestLoadUserFile(t *testing.T) {
	isolate(t)
	p, err := DefaultUserConfigPath()
	require.NoError(t, err)
	writeFile(t, p, "query:\n  submit_key: ctrl+s\n")

	cfg, used, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, p, used)
	assert.Equal(t, "ctrl+s", cfg.Query.SubmitKey)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	isolate(t)
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
}

func TestPrecedence(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, LocalConfigFile), "backend:\n  url: http://from-file\nlog:\n  level: warn\n")
	t.Setenv("LOCALRAG_BACKEND__URL", "http://from-env")
	t.Setenv("LOCALRAG_LOG__LEVEL", "error")
	t.Setenv("LOCALRAG_INTAKE__ACCEPT", ".pdf,.txt")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--backend-url", "http://from-flag", "--verbose"}))

	cfg, _, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "http://from-flag", cfg.Backend.URL)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, []string{".pdf", ".txt"}, cfg.Intake.Accept)
}

func TestUnchangedFlagsDoNotOverride(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, LocalConfigFile), "log:\n  file: /tmp/localrag.log\n")
	fs := testFlags()
	require.NoError(t, fs.Parse(nil))

	cfg, _, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/localrag.log", cfg.Log.File)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"empty url", func(c *AppConfig) { c.Backend.URL = "  " }},
		{"negative timeout", func(c *AppConfig) { c.Backend.TimeoutSecs = -1 }},
		{"bad policy", func(c *AppConfig) { c.Workflow.LateResponses = "sometimes" }},
		{"unknown log level", func(c *AppConfig) { c.Log.Level = "loud" }},
		{"empty accept", func(c *AppConfig) { c.Intake.Accept = nil }},
		{"unknown embedder", func(c *AppConfig) { c.DevServer.Embedder.Type = "bert" }},
		{"unknown generator", func(c *AppConfig) { c.DevServer.Generator.Type = "gpt" }},
		{"unknown store", func(c *AppConfig) { c.DevServer.VectorStore.Type = "chroma" }},
		{"qdrant without url", func(c *AppConfig) { c.DevServer.VectorStore.Type = "qdrant" }},
		{"overlap too large", func(c *AppConfig) { c.DevServer.OverlapSentences = c.DevServer.SentencesPerChunk }},
	}
	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, LocalConfigFile), "intake:\n  accept: []\n")
	_, _, err := Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "intake.accept")
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	got, err := WriteDefault(path, false)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	cfg, used, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, Default(), cfg)

	_, err = WriteDefault(path, false)
	require.ErrorIs(t, err, ErrConfigExists)
	_, err = WriteDefault(path, true)
	require.NoError(t, err)
}

func TestWriteDefaultUserPath(t *testing.T) {
	isolate(t)
	path, err := WriteDefault("", false)
	require.NoError(t, err)
	want, err := DefaultUserConfigPath()
	require.NoError(t, err)
	assert.Equal(t, want, path)
	assert.FileExists(t, path)
}

func TestDevServerBackendsFromFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, LocalConfigFile), `
devserver:
  embedder:
    type: openai
  vector_store:
    type: qdrant
    qdrant:
      url: http://localhost:6333
  generator:
    type: openai
`)
	cfg, _, err := Load("", nil)
	require.NoError(t, err)
	require.NotNil(t, cfg.DevServer.Embedder.OpenAI)
	assert.Equal(t, "http://localhost:11434/v1", cfg.DevServer.Embedder.OpenAI.BaseURL)
	assert.Equal(t, "mxbai-embed-large", cfg.DevServer.Embedder.OpenAI.Model)
	assert.Equal(t, 32, cfg.DevServer.Embedder.OpenAI.BatchSize)
	require.NotNil(t, cfg.DevServer.VectorStore.Qdrant)
	assert.Equal(t, "localrag", cfg.DevServer.VectorStore.Qdrant.Collection)
	assert.Equal(t, 15, cfg.DevServer.VectorStore.Qdrant.TimeoutSecs)
	require.NotNil(t, cfg.DevServer.Generator.OpenAI)
	assert.Equal(t, "http://localhost:11434/v1", cfg.DevServer.Generator.OpenAI.BaseURL)
	assert.Equal(t, "llama3.2", cfg.DevServer.Generator.OpenAI.Model)
	assert.Equal(t, 120, cfg.DevServer.Generator.OpenAI.TimeoutSecs)
}
