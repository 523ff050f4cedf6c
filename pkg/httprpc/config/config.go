// Package config loads client settings and endpoint urls from TOML or YAML files, .env
// files and the process environment.
package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FormatVersion is the current version of the configuration file format.
const FormatVersion = "0.1.0"

// supported file format versions
var formatConstraint = mustConstraint(">= 0.1.0, < 0.2.0")

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}

// Format is the syntax of a configuration file.
type Format int

const (
	TOML Format = iota
	YAML
)

// FormatFromPath picks the format from the file extension. Unknown extensions are TOML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	}
	return TOML
}

// ClientSettings holds the [client] table.
type ClientSettings struct {
	Timeout       time.Duration     `mapstructure:"timeout"`        // request timeout, e.g. "20s"
	MaxInFlight   int               `mapstructure:"max_in_flight"`  // concurrent async requests
	RetryAttempts uint              `mapstructure:"retry_attempts"` // attempts for failed GET requests
	RetryDelay    time.Duration     `mapstructure:"retry_delay"`    // initial retry backoff
	RateLimit     float64           `mapstructure:"rate_limit"`     // requests per second, 0 is unlimited
	RateBurst     int               `mapstructure:"rate_burst"`
	UserAgent     string            `mapstructure:"user_agent"`
	StatusPolicy  string            `mapstructure:"status_policy"` // "ok" or "2xx"
	LogLevel      string            `mapstructure:"log_level"`
	Headers       map[string]string `mapstructure:"headers"` // sent with every request
}

// File is a parsed configuration file. Endpoints are addressed by dotted keys.
type File struct {
	FormatVersion string
	Client        ClientSettings
	endpoints     map[string]string
}

// Load reads and parses filename.
func Load(filename string) (*File, error) {
	if filename == "" {
		return nil, errors.New("config filename is required")
	}
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}
	f, err := Parse(content, FormatFromPath(filename))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid configuration %s", filename)
	}
	return f, nil
}

// Parse parses a configuration document.
func Parse(data []byte, format Format) (*File, error) {
	raw := make(map[string]any)
	switch format {
	case YAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrap(err, "error parsing yaml")
		}
	default:
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, errors.Wrap(err, "error parsing toml")
		}
	}

	f := &File{endpoints: make(map[string]string)}
	version, _ := raw["format_version"].(string)
	if err := checkFormatVersion(version); err != nil {
		return nil, err
	}
	f.FormatVersion = version

	if client, ok := raw["client"]; ok {
		if err := decodeSettings(client, &f.Client); err != nil {
			return nil, err
		}
	}
	if endpoints, ok := raw["endpoints"]; ok {
		m, ok := asMap(endpoints)
		if !ok {
			return nil, errors.New("endpoints must be a table")
		}
		flatten("", m, f.endpoints)
	}
	return f, nil
}

func checkFormatVersion(version string) error {
	if version == "" {
		return errors.New("format_version is required")
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return errors.Wrapf(err, "invalid format_version %q", version)
	}
	if !formatConstraint.Check(v) {
		return errors.Errorf("unsupported config file format version: %s", version)
	}
	return nil
}

func decodeSettings(input any, out *ClientSettings) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return errors.Wrap(err, "invalid client settings")
	}
	return nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

// flatten turns nested tables into dotted keys.
func flatten(prefix string, m map[string]any, out map[string]string) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := asMap(v); ok {
			flatten(key, nested, out)
			continue
		}
		if v == nil || reflect.ValueOf(v).Kind() == reflect.Slice {
			continue
		}
		out[key] = fmt.Sprint(v)
	}
}

// Lookup returns the endpoint configured under the dotted key.
func (f *File) Lookup(key string) (string, bool) {
	v, ok := f.endpoints[key]
	return v, ok
}

// Endpoints returns the configured endpoint keys, sorted.
func (f *File) Endpoints() []string {
	return slices.Sorted(maps.Keys(f.endpoints))
}
