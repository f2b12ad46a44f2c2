package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces circd environment overrides.
const envPrefix = "CIRCD_"

// maxConfigFileSize rejects runaway config files.
const maxConfigFileSize = 1 << 20

// Load builds the configuration from defaults, then an optional YAML
// file, then environment variables, in increasing precedence.
//
// Environment variables map through the prefix and underscores:
//
//	CIRCD_SERVER_ADDR       -> server.addr
//	CIRCD_ILS_BASE_URL      -> ils.base_url
//	CIRCD_LOGGING_LEVEL     -> logging.level
//	CIRCD_CACHE_MAX_ENTRIES -> cache.max_entries
//
// Only the first underscore separates the section from the field name;
// the rest stay part of the field.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	cfg := NewDefaultConfig()

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envTransform maps CIRCD_SECTION_FIELD_NAME to section.field_name.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(s, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

// readConfigFile opens and size-checks the file through one descriptor
// so the check and the read cannot race.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return content, nil
}
