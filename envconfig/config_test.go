package envconfig

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reset forgets the loaded config file so the next lookup reads it again.
func reset() {
	configOnce = sync.Once{}
	config, configPath = nil, ""
}

// isolate points config lookup at a file that does not exist.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("OLLAMA_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	reset()
	t.Cleanup(reset)
}

func TestHost(t *testing.T) {
	isolate(t)

	cases := map[string]struct {
		value  string
		expect string
	}{
		"empty":               {"", "http://localhost:11434"},
		"only address":        {"1.2.3.4", "http://1.2.3.4:11434"},
		"only port":           {":1234", "http://:1234"},
		"address and port":    {"1.2.3.4:1234", "http://1.2.3.4:1234"},
		"hostname":            {"example.com", "http://example.com:11434"},
		"hostname and port":   {"example.com:1234", "http://example.com:1234"},
		"zero port":           {":0", "http://:0"},
		"too large port":      {":66000", "http://:11434"},
		"too small port":      {":-1", "http://:11434"},
		"ipv6 localhost":      {"[::1]", "http://[::1]:11434"},
		"ipv6 world open":     {"[::]", "http://[::]:11434"},
		"ipv6 no brackets":    {"::1", "http://[::1]:11434"},
		"ipv6 + port":         {"[::1]:1337", "http://[::1]:1337"},
		"extra space":         {" 1.2.3.4 ", "http://1.2.3.4:11434"},
		"extra quotes":        {"\"1.2.3.4\"", "http://1.2.3.4:11434"},
		"extra space+quotes":  {" \" 1.2.3.4 \" ", "http://1.2.3.4:11434"},
		"extra single quotes": {"'1.2.3.4'", "http://1.2.3.4:11434"},
		"http":                {"http://1.2.3.4", "http://1.2.3.4:80"},
		"http port":           {"http://1.2.3.4:4321", "http://1.2.3.4:4321"},
		"https":               {"https://1.2.3.4", "https://1.2.3.4:443"},
		"https port":          {"https://1.2.3.4:4321", "https://1.2.3.4:4321"},
		"proxy path":          {"https://example.com/ollama", "https://example.com:443/ollama"},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("OLLAMA_HOST", tt.value)
			assert.Equal(t, tt.expect, Host().String())
		})
	}
}

func TestDefaults(t *testing.T) {
	isolate(t)
	for _, k := range []string{"OLLAMA_HOST", "OLLAMA_MODEL", "OLLAMA_PROMPT", "OLLAMA_TIMEOUT", "OLLAMA_DEBUG"} {
		t.Setenv(k, "")
	}

	assert.Equal(t, "http://localhost:11434", Host().String())
	assert.Equal(t, "llama3.1", Model())
	assert.Equal(t, "Give me 3 healthy breakfast ideas.", Prompt())
	assert.Equal(t, 5*time.Minute, Timeout())
	assert.Equal(t, slog.LevelInfo, LogLevel())
}

func TestTimeout(t *testing.T) {
	isolate(t)

	cases := map[string]time.Duration{
		"":        DefaultTimeout,
		"90s":     90 * time.Second,
		"2m":      2 * time.Minute,
		"30":      30 * time.Second,
		"0":       0,
		"-1":      0,
		"-5m":     0,
		"unknown": DefaultTimeout,
	}

	for value, expect := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("OLLAMA_TIMEOUT", value)
			assert.Equal(t, expect, Timeout())
		})
	}
}

func TestLogLevel(t *testing.T) {
	isolate(t)

	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"f":     slog.LevelInfo,
		"0":     slog.LevelInfo,
		"1":     slog.LevelDebug,
		"true":  slog.LevelDebug,
		"t":     slog.LevelDebug,
		"2":     slog.Level(-8),
		"3":     slog.Level(-12),
	}

	for value, expect := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("OLLAMA_DEBUG", value)
			assert.Equal(t, expect, LogLevel())
		})
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"oneshot.toml": `host = "example.com:1234"
model = "gemma2"
prompt = "why is the sky blue?"
timeout = "45s"
debug = true
`,
		"oneshot.yaml": `host: example.com:1234
model: gemma2
prompt: why is the sky blue?
timeout: 45s
debug: true
`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			t.Setenv("OLLAMA_CONFIG", path)
			for _, k := range []string{"OLLAMA_HOST", "OLLAMA_MODEL", "OLLAMA_PROMPT", "OLLAMA_TIMEOUT", "OLLAMA_DEBUG"} {
				t.Setenv(k, "")
			}
			reset()
			t.Cleanup(reset)

			assert.Equal(t, path, ConfigPath())
			assert.Equal(t, "http://example.com:1234", Host().String())
			assert.Equal(t, "gemma2", Model())
			assert.Equal(t, "why is the sky blue?", Prompt())
			assert.Equal(t, 45*time.Second, Timeout())
			assert.Equal(t, slog.LevelDebug, LogLevel())

			t.Run("environment wins", func(t *testing.T) {
				t.Setenv("OLLAMA_MODEL", "llama3.1")
				assert.Equal(t, "llama3.1", Model())
			})
		})
	}
}

func TestConfigFileSearch(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("OLLAMA_CONFIG", "")
	t.Setenv("OLLAMA_MODEL", "")
	reset()
	t.Cleanup(reset)

	paths := GetConfigPaths()
	require.Contains(t, paths, filepath.Join(home, ".ollama", "oneshot.toml"))
	require.Contains(t, paths, filepath.Join(home, ".config", "ollama", "oneshot.yml"))

	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ollama"), 0o755))
	path := filepath.Join(home, ".ollama", "oneshot.yml")
	require.NoError(t, os.WriteFile(path, []byte("model: phi3\n"), 0o644))

	assert.Equal(t, "phi3", Model())
	assert.Equal(t, path, ConfigPath())
}

func TestConfigFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oneshot.toml")
	require.NoError(t, os.WriteFile(path, []byte("model = [unterminated"), 0o644))

	_, err := LoadConfigFile(path)
	require.ErrorContains(t, err, "error parsing config file")

	t.Setenv("OLLAMA_CONFIG", path)
	t.Setenv("OLLAMA_MODEL", "")
	reset()
	t.Cleanup(reset)

	// a broken file is reported and ignored
	assert.Equal(t, DefaultModel, Model())
	assert.Empty(t, ConfigPath())
}

func TestConfigFileExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oneshot.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	_, err := LoadConfigFile(path)
	require.ErrorContains(t, err, "unsupported config file extension")
}

func TestConfigFileDebugLevel(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]struct {
		file    string
		content string
		expect  slog.Level
	}{
		"toml bool":   {"oneshot.toml", "debug = true\n", slog.LevelDebug},
		"toml trace":  {"oneshot.toml", "debug = 2\n", slog.Level(-8)},
		"toml string": {"oneshot.toml", "debug = \"2\"\n", slog.Level(-8)},
		"toml off":    {"oneshot.toml", "debug = false\n", slog.LevelInfo},
		"yaml bool":   {"oneshot.yaml", "debug: true\n", slog.LevelDebug},
		"yaml trace":  {"oneshot.yaml", "debug: 2\n", slog.Level(-8)},
		"yaml unset":  {"oneshot.yaml", "model: phi3\n", slog.LevelInfo},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(name, " ", "-")+"-"+tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			t.Setenv("OLLAMA_CONFIG", path)
			t.Setenv("OLLAMA_DEBUG", "")
			reset()
			t.Cleanup(reset)

			assert.Equal(t, tt.expect, LogLevel())
		})
	}

	t.Run("invalid", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.yaml")
		require.NoError(t, os.WriteFile(path, []byte("debug: [1, 2]\n"), 0o644))

		_, err := LoadConfigFile(path)
		require.ErrorContains(t, err, "invalid debug value")
	})
}

func TestOverride(t *testing.T) {
	isolate(t)
	t.Cleanup(ClearOverrides)
	t.Setenv("OLLAMA_MODEL", "gemma2")
	t.Setenv("OLLAMA_TIMEOUT", "")

	Override("OLLAMA_MODEL", "phi3")
	assert.Equal(t, "phi3", Model())
	assert.Equal(t, "gemma2", os.Getenv("OLLAMA_MODEL"), "overrides must not touch the environment")

	Override("OLLAMA_TIMEOUT", "250ms")
	assert.Equal(t, 250*time.Millisecond, Timeout())

	ClearOverrides()
	assert.Equal(t, "gemma2", Model())
	assert.Equal(t, DefaultTimeout, Timeout())
}
