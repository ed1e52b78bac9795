package cli

import (
	"reflect"
	"sort"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// settingsMap renders a config struct as nested maps keyed by yaml tag, with
// durations as strings. It feeds viper defaults and the YAML written by
// the config commands.
func settingsMap(cfg any) map[string]any {
	m, _ := settingsValue(reflect.ValueOf(cfg)).(map[string]any)
	return m
}

func settingsValue(v reflect.Value) any {
	if v.Type() == durationType {
		return time.Duration(v.Int()).String()
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return settingsValue(v.Elem())
	case reflect.Struct:
		out := make(map[string]any, v.NumField())
		t := v.Type()
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
			if name == "-" {
				continue
			}
			if name == "" {
				name = strings.ToLower(f.Name)
			}
			out[name] = settingsValue(v.Field(i))
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, v.Len())
		for i := range v.Len() {
			out[i] = settingsValue(v.Index(i))
		}
		return out
	default:
		return v.Interface()
	}
}

// flattenSettings returns dotted keys for every leaf in m. Slices are
// leaves.
func flattenSettings(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(key, child)
				continue
			}
			out[key] = v
		}
	}
	walk("", m)
	return out
}

// redactSecrets replaces every non-empty api_key value in place.
func redactSecrets(m map[string]any) {
	for k, v := range m {
		switch val := v.(type) {
		case map[string]any:
			redactSecrets(val)
		case string:
			if k == "api_key" && val != "" {
				m[k] = "********"
			}
		}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
