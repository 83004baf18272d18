package envconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration. Every field mirrors an OLLAMA_*
// environment variable, which takes precedence when set.
type Config struct {
	Host    string     `toml:"host" yaml:"host"`
	Model   string     `toml:"model" yaml:"model"`
	Prompt  string     `toml:"prompt" yaml:"prompt"`
	Timeout string     `toml:"timeout" yaml:"timeout"`
	Debug   debugValue `toml:"debug" yaml:"debug"`
}

// debugValue holds the debug setting as OLLAMA_DEBUG would spell it, so
// `debug = true`, `debug = 2` and `debug = "1"` all work.
type debugValue string

func (d *debugValue) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case bool:
		*d = debugValue(strconv.FormatBool(v))
	case int64:
		*d = debugValue(strconv.FormatInt(v, 10))
	case string:
		*d = debugValue(v)
	default:
		return fmt.Errorf("invalid debug value %v", v)
	}
	return nil
}

func (d *debugValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid debug value at line %d", node.Line)
	}
	*d = debugValue(node.Value)
	return nil
}

var (
	configOnce sync.Once
	config     *Config
	configPath string
)

var configExts = []string{".toml", ".yaml", ".yml"}

// GetConfigPaths returns the candidate config files in lookup order.
// OLLAMA_CONFIG, when set, is the only candidate.
func GetConfigPaths() []string {
	if p := strings.TrimSpace(os.Getenv("OLLAMA_CONFIG")); p != "" {
		return []string{p}
	}

	var dirs []string
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		dirs = append(dirs, filepath.Join(xdgConfig, "ollama"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(home, ".config", "ollama"),
			filepath.Join(home, ".ollama"),
		)
	}

	var paths []string
	for _, dir := range dirs {
		for _, ext := range configExts {
			paths = append(paths, filepath.Join(dir, "oneshot"+ext))
		}
	}

	return paths
}

// LoadConfigFile decodes a TOML or YAML config file, chosen by extension.
func LoadConfigFile(path string) (*Config, error) {
	bts, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(bts), &cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(bts, &cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", ext)
	}

	return &cfg, nil
}

// loadConfig loads the first available configuration file
func loadConfig() (*Config, string, error) {
	for _, path := range GetConfigPaths() {
		cfg, err := LoadConfigFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, "", err
		}

		return cfg, path, nil
	}

	return nil, "", nil
}

func loadConfigOnce() {
	configOnce.Do(func() {
		var err error
		config, configPath, err = loadConfig()
		if err != nil {
			slog.Warn("failed to load config file", "error", err)
		} else if config != nil {
			slog.Debug("loaded config file", "path", configPath)
		}
	})
}

// ConfigPath returns the config file in use, or "" when there is none.
func ConfigPath() string {
	loadConfigOnce()
	return configPath
}

func fileValue(key string) string {
	loadConfigOnce()
	if config == nil {
		return ""
	}

	switch key {
	case "OLLAMA_HOST":
		return config.Host
	case "OLLAMA_MODEL":
		return config.Model
	case "OLLAMA_PROMPT":
		return config.Prompt
	case "OLLAMA_TIMEOUT":
		return config.Timeout
	case "OLLAMA_DEBUG":
		return string(config.Debug)
	}

	return ""
}
