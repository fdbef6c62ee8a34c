package config

import (
	"reflect"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// secretKeys are redacted by YAML(true).
var secretKeys = []string{"api_token", "webhook_token", "access_token", "client_secret", "dsn"}

// YAML renders c as a config file. Durations are written as strings
// ("30s") so the file reads back through viper unchanged.
func (c *Config) YAML(redact bool) ([]byte, error) {
	return yaml.Marshal(toMap(reflect.ValueOf(*c), redact))
}

func toMap(rv reflect.Value, redact bool) map[string]any {
	out := make(map[string]any)
	rt := rv.Type()
	for i := range rt.NumField() {
		f := rt.Field(i)
		key := f.Tag.Get("mapstructure")
		if key == "" {
			continue
		}
		fv := rv.Field(i)
		switch {
		case f.Type.Kind() == reflect.Struct:
			out[key] = toMap(fv, redact)
		case f.Type == reflect.TypeOf(time.Duration(0)):
			out[key] = fv.Interface().(time.Duration).String()
		case redact && slices.Contains(secretKeys, key) && !fv.IsZero():
			out[key] = "********"
		case f.Type.Kind() == reflect.Slice && fv.IsNil():
			out[key] = []string{}
		default:
			out[key] = fv.Interface()
		}
	}
	return out
}
