package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// setValue parses s into v according to v's kind. Slices are comma
// separated; maps are comma separated key=value pairs. Pointers are
// allocated on first use so that an explicit zero stays distinguishable
// from an unset field.
func setValue(v reflect.Value, s string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)

	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("invalid bool: %w", err)
		}
		v.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.Type() == durationType {
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			v.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid int: %w", err)
		}
		v.SetInt(i)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(s, 10, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid uint: %w", err)
		}
		v.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid float: %w", err)
		}
		v.SetFloat(f)

	case reflect.Slice:
		return setSlice(v, s)

	case reflect.Map:
		return setMap(v, s)

	case reflect.Pointer:
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return setValue(v.Elem(), s)

	default:
		return fmt.Errorf("unsupported type: %s", v.Type())
	}
	return nil
}

func setSlice(v reflect.Value, s string) error {
	parts := splitList(s)
	slice := reflect.MakeSlice(v.Type(), len(parts), len(parts))
	for i, part := range parts {
		if err := setValue(slice.Index(i), part); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	v.Set(slice)
	return nil
}

func setMap(v reflect.Value, s string) error {
	m := reflect.MakeMap(v.Type())
	for _, part := range splitList(s) {
		k, val, ok := strings.Cut(part, "=")
		if !ok {
			return fmt.Errorf("invalid map entry: %s", part)
		}

		key := reflect.New(v.Type().Key()).Elem()
		if err := setValue(key, strings.TrimSpace(k)); err != nil {
			return fmt.Errorf("map key: %w", err)
		}
		elem := reflect.New(v.Type().Elem()).Elem()
		if err := setValue(elem, strings.TrimSpace(val)); err != nil {
			return fmt.Errorf("map value: %w", err)
		}
		m.SetMapIndex(key, elem)
	}
	v.Set(m)
	return nil
}

// splitList splits on commas, trims each part and drops empty ones.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
