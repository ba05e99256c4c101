package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/prowire/prowire/pkg/errors"
)

// Raw is the hierarchical configuration as read from disk, before any
// defaults are applied. Values are addressed with dotted keys
// ("server.port", "thread-pool.worker.core-size") and fall back to the
// supplied default when the key is missing or of the wrong shape.
type Raw struct {
	values map[string]any
}

// LoadFile reads and parses a YAML configuration file.
func LoadFile(path string) (*Raw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "config.load", "reading configuration file", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration bytes.
func Parse(data []byte) (*Raw, error) {
	values := make(map[string]any)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "config.parse", "parsing configuration", err)
	}
	return &Raw{values: values}, nil
}

// NewRaw wraps an already-decoded configuration map. Useful in tests.
func NewRaw(values map[string]any) *Raw {
	if values == nil {
		values = make(map[string]any)
	}
	return &Raw{values: values}
}

// Sub returns the nested section at the dotted key, or nil when the section
// is absent.
func (r *Raw) Sub(key string) *Raw {
	v, ok := r.lookup(key)
	if !ok {
		return nil
	}
	m, ok := toStringMap(v)
	if !ok {
		return nil
	}
	return &Raw{values: m}
}

// GetString returns the string at key, or def when absent.
func (r *Raw) GetString(key, def string) string {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	switch s := v.(type) {
	case string:
		return s
	case int:
		return strconv.Itoa(s)
	default:
		return def
	}
}

// GetInt returns the integer at key, or def when absent.
func (r *Raw) GetInt(key string, def int) int {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed
		}
	}
	return def
}

// GetInt64 returns the 64-bit integer at key, or def when absent.
func (r *Raw) GetInt64(key string, def int64) int64 {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case string:
		if parsed, err := strconv.ParseInt(n, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

// GetBool returns the boolean at key, or def when absent.
func (r *Raw) GetBool(key string, def bool) bool {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
	}
	return def
}

func (r *Raw) lookup(key string) (any, bool) {
	parts := strings.Split(key, ".")
	current := r.values
	for i, part := range parts {
		v, ok := current[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		m, ok := toStringMap(v)
		if !ok {
			return nil, false
		}
		current = m
	}
	return nil, false
}

// toStringMap normalizes the map shapes the yaml decoder may produce.
func toStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}
