package config

import (
	"reflect"
	"strings"
	"time"
)

// ToMap renders cfg as nested maps keyed by the configuration file names,
// with durations in their string form. Combined with Sanitize it backs
// "stockgate-cli config show".
func ToMap(cfg *ServerConfig) map[string]any {
	m, _ := exportValue(reflect.ValueOf(cfg).Elem()).(map[string]any)
	return m
}

var durationType = reflect.TypeOf(time.Duration(0))

func exportValue(v reflect.Value) any {
	if v.Type() == durationType {
		return time.Duration(v.Int()).String()
	}

	switch v.Kind() {
	case reflect.Struct:
		out := make(map[string]any, v.NumField())
		t := v.Type()
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
			if name == "" || name == "-" {
				continue
			}
			out[name] = exportValue(v.Field(i))
		}
		return out
	case reflect.Slice:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = exportValue(v.Index(i))
		}
		return out
	default:
		return v.Interface()
	}
}
