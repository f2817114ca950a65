// Package config loads configuration structs from struct tags, YAML files
// and environment variables.
//
// Fields are bound with `env:"NAME[,required][,notEmpty]"`, defaulted with
// `envDefault:"value"`, and nested structs add `envPrefix:"PREFIX_"` to the
// names of their fields. Sources apply in increasing precedence: defaults,
// then a YAML file, then environment variables that are set and non-empty.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"
)

// Parse parses configuration from environment variables into a struct.
func Parse[T any]() (T, error) {
	return ParseWithPrefix[T]("")
}

// ParseWithPrefix parses configuration with a prefix added to all env vars.
func ParseWithPrefix[T any](prefix string) (T, error) {
	var cfg T
	v := reflect.ValueOf(&cfg).Elem()
	if err := load(v, prefix); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadFile reads the YAML file at path, then applies defaults to fields the
// file left unset and environment overrides on top. An empty path behaves
// like ParseWithPrefix.
func LoadFile[T any](path, prefix string) (T, error) {
	var cfg T
	if path == "" {
		return ParseWithPrefix[T](prefix)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	v := reflect.ValueOf(&cfg).Elem()
	if err := walk(v, prefix, applyDefault); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := load(v, prefix); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// From validates an existing configuration struct.
// This is useful when configuration comes from sources other than env vars
// (e.g., Vault, config files).
func From[T any](cfg T) (T, error) {
	if err := walk(reflect.ValueOf(&cfg).Elem(), "", validateField); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func load(v reflect.Value, prefix string) error {
	if err := walk(v, prefix, applyDefault); err != nil {
		return err
	}
	if err := walk(v, prefix, applyEnv); err != nil {
		return err
	}
	return walk(v, prefix, validateField)
}

// fieldFunc visits one tagged leaf field.
type fieldFunc func(v reflect.Value, envName string, t tag) error

var errNotStruct = errors.New("configuration must be a struct")

// walk calls fn for every tagged leaf field of the struct v.
func walk(v reflect.Value, prefix string, fn fieldFunc) error {
	if v.Kind() != reflect.Struct {
		return errNotStruct
	}
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type.NumField() > 0 {
			if err := walk(fieldVal, prefix+field.Tag.Get("envPrefix"), fn); err != nil {
				return err
			}
			continue
		}

		tg := parseTag(field)
		if tg.Name == "" {
			continue
		}
		if err := fn(fieldVal, prefix+tg.Name, tg); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}

	return nil
}

func applyDefault(v reflect.Value, _ string, t tag) error {
	if t.Default == "" || !v.IsZero() {
		return nil
	}
	return setValue(v, t.Default)
}

func applyEnv(v reflect.Value, envName string, _ tag) error {
	s, ok := os.LookupEnv(envName)
	if !ok || s == "" {
		return nil
	}
	return setValue(v, s)
}

func validateField(v reflect.Value, envName string, t tag) error {
	if t.Required && v.IsZero() {
		return fmt.Errorf("required environment variable %s not set", envName)
	}
	if t.NotEmpty && v.Kind() == reflect.String && v.String() == "" {
		return fmt.Errorf("environment variable %s must not be empty", envName)
	}
	return nil
}
