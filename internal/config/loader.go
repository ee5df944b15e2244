package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, verifies and validates configuration from a file. When a
// <path>.b3 lock sidecar exists the file must match it.
func Load(configPath string) (*Config, error) {
	return load(configPath, true)
}

// LoadUnverified is Load without the lock check. It is used to validate a
// config before locking it.
func LoadUnverified(configPath string) (*Config, error) {
	return load(configPath, false)
}

func load(configPath string, verify bool) (*Config, error) {
	absPath, err := resolvePath(configPath)
	if err != nil {
		return nil, err
	}

	var locked bool
	if verify {
		locked, err = VerifyLock(absPath)
		if err != nil {
			return nil, err
		}
	}

	cfg, err := readFile(absPath)
	if err != nil {
		return nil, err
	}
	cfg.Locked = locked

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Read parses the config at configPath without verifying its lock or
// validating it. Callers that report problems themselves use it.
func Read(configPath string) (*Config, error) {
	absPath, err := resolvePath(configPath)
	if err != nil {
		return nil, err
	}
	return readFile(absPath)
}

func readFile(absPath string) (*Config, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", absPath, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	cfg.SourcePath = absPath
	return cfg, nil
}

// Parse expands ${ENV} references and decodes data over the defaults.
// It does not validate.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	expanded := interpolateEnv(data)
	if len(bytes.TrimSpace(expanded)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg, _ := Parse(nil)
	return cfg
}

// Discover finds a config file by checking standard locations.
// Priority order: $MECFINDER_CONFIG, ./config.yaml, ~/.config/mecfinder/config.yaml, /etc/mecfinder/config.yaml
func Discover() (string, error) {
	if p := os.Getenv("MECFINDER_CONFIG"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("MECFINDER_CONFIG points at missing file %s", p)
	}

	candidates := []string{"./config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "mecfinder", "config.yaml"))
	}
	candidates = append(candidates, "/etc/mecfinder/config.yaml")

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no config found (checked: $MECFINDER_CONFIG, ./config.yaml, ~/.config/mecfinder/config.yaml, /etc/mecfinder/config.yaml)")
}

func resolvePath(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}
	return absPath, nil
}

// interpolateEnv replaces ${VAR} with its value. Unset variables keep the
// placeholder so validation can name them.
func interpolateEnv(input []byte) []byte {
	return envVarPattern.ReplaceAllFunc(input, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		if value, exists := os.LookupEnv(string(varName)); exists {
			return []byte(value)
		}
		return match
	})
}
