package config

import (
	"reflect"
	"strings"
)

// tag is a parsed env struct tag.
type tag struct {
	Name     string
	Default  string
	Required bool
	NotEmpty bool
}

func parseTag(field reflect.StructField) tag {
	envTag := field.Tag.Get("env")
	if envTag == "" || envTag == "-" {
		return tag{}
	}

	name, opts, _ := strings.Cut(envTag, ",")
	t := tag{Name: name, Default: field.Tag.Get("envDefault")}
	for _, opt := range strings.Split(opts, ",") {
		switch opt {
		case "required":
			t.Required = true
		case "notEmpty":
			t.NotEmpty = true
		}
	}
	return t
}
