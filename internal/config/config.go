// Package config loads jobdash settings from a YAML file and feeds them to
// the CLI as flag values.
//
// Keys are flag names. Nested maps are joined with "-" and underscores are
// treated as dashes, so both of these set --storage-data-dir:
//
//	storage:
//	  data_dir: /var/lib/jobdash
//
//	storage-data-dir: /var/lib/jobdash
//
// A value from the file is used only when the flag was not given on the
// command line and none of its environment variables are set.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "~/.jobdash/config.yaml"

// Values holds flattened config file entries keyed by flag name.
type Values map[string]string

// Parse reads a YAML document into Values. An empty document is valid.
func Parse(r io.Reader) (Values, error) {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Values{}, nil
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	values := Values{}
	if err := flatten(values, "", doc); err != nil {
		return nil, err
	}
	return values, nil
}

// Load reads the config file at path. A missing file yields empty Values.
func Load(path string) (Values, error) {
	f, err := os.Open(kong.ExpandPath(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Values{}, nil
		}
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

func flatten(out Values, prefix string, node map[string]any) error {
	for k, v := range node {
		key := strings.ReplaceAll(strings.ToLower(k), "_", "-")
		if prefix != "" {
			key = prefix + "-" + key
		}

		switch val := v.(type) {
		case map[string]any:
			if err := flatten(out, key, val); err != nil {
				return err
			}
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				if _, ok := item.(map[string]any); ok {
					return fmt.Errorf("config key %q: lists of maps are not supported", key)
				}
				parts = append(parts, fmt.Sprint(item))
			}
			out[key] = strings.Join(parts, ",")
		case nil:
			// explicit null leaves the flag at its default
		default:
			out[key] = fmt.Sprint(val)
		}
	}
	return nil
}

// Keys returns the configured flag names in sorted order.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolver exposes the values to kong.
func (v Values) Resolver() kong.Resolver {
	return kong.ResolverFunc(func(kctx *kong.Context, parent *kong.Path, flag *kong.Flag) (any, error) {
		for _, env := range flag.Envs {
			if _, ok := os.LookupEnv(env); ok {
				return nil, nil
			}
		}

		raw, ok := v[flag.Name]
		if !ok {
			return nil, nil
		}

		log.Debug().Str("flag", flag.Name).Msg("flag set from config file")
		return raw, nil
	})
}

// Loader adapts Parse to kong.Configuration and kong.ConfigFlag.
func Loader(r io.Reader) (kong.Resolver, error) {
	values, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return values.Resolver(), nil
}
