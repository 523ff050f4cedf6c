package config

import (
	"os"

	"github.com/iancoleman/strcase"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Source resolves configuration keys.
type Source interface {
	Lookup(key string) (string, bool)
}

// MapSource is a fixed set of keys.
type MapSource map[string]string

func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Chain consults sources in order and returns the first non-empty value.
type Chain []Source

func (c Chain) Lookup(key string) (string, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if v, ok := s.Lookup(key); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// EnvSource resolves keys from the process environment and .env files. A key is tried as
// written, then in SCREAMING_SNAKE_CASE, so "user.url" also matches USER_URL. The process
// environment wins over .env files.
type EnvSource struct {
	dotenv    map[string]string
	lookupEnv func(string) (string, bool)
}

// NewEnvSource reads the given .env files. Files that do not exist are skipped.
func NewEnvSource(dotenvFiles ...string) (*EnvSource, error) {
	var existing []string
	for _, f := range dotenvFiles {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	values := map[string]string{}
	if len(existing) > 0 {
		var err error
		if values, err = godotenv.Read(existing...); err != nil {
			return nil, errors.Wrap(err, "error reading env files")
		}
	}
	return &EnvSource{dotenv: values, lookupEnv: os.LookupEnv}, nil
}

func (e *EnvSource) Lookup(key string) (string, bool) {
	for _, k := range envKeys(key) {
		if v, ok := e.lookupEnv(k); ok && v != "" {
			return v, true
		}
		if v, ok := e.dotenv[k]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func envKeys(key string) []string {
	snake := strcase.ToScreamingSnake(key)
	if snake == key {
		return []string{key}
	}
	return []string{key, snake}
}
