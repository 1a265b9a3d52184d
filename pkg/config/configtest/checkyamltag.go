package configtest

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"go.uber.org/multierr"
	"google.golang.org/protobuf/proto"
)

var protoMessageType = reflect.TypeOf((*proto.Message)(nil)).Elem()

// CheckYAMLTags walks a config section and reports every field that would be
// written out when empty, and every yaml key used twice in one struct. Errors
// name the section type and the dotted yaml key, e.g.
// "StageConfig: stage.max_grid_capacity missing omitempty tag".
func CheckYAMLTags(section any) error {
	t := reflect.TypeOf(section)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	c := &checker{
		section: t.Name(),
		seen:    make(map[reflect.Type]struct{}),
	}
	return c.check(t, sectionKey(t.Name()))
}

type checker struct {
	section string
	seen    map[reflect.Type]struct{}
}

func (c *checker) check(t reflect.Type, path string) error {
	switch t.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.Pointer:
		return c.check(t.Elem(), path)
	case reflect.Struct:
	default:
		return nil
	}

	// protobuf messages are decoded with their own rules
	if reflect.PointerTo(t).Implements(protoMessageType) {
		return nil
	}
	if _, ok := c.seen[t]; ok {
		return nil
	}
	c.seen[t] = struct{}{}

	var errs error
	keys := make(map[string]string)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		parts := strings.Split(field.Tag.Get("yaml"), ",")
		key := parts[0]
		if key == "-" {
			continue
		}
		inline := slices.Contains(parts, "inline")
		if key == "" {
			key = strings.ToLower(field.Name)
		}

		fieldPath := path
		if !inline {
			fieldPath = join(path, key)
			if other, ok := keys[key]; ok {
				errs = multierr.Append(errs, fmt.Errorf("%s: %s used by both %s and %s", c.section, fieldPath, other, field.Name))
			}
			keys[key] = field.Name
		}

		// booleans default to false and allowempty fields are written on purpose
		if field.Type.Kind() != reflect.Bool && field.Tag.Get("config") != "allowempty" &&
			!inline && !slices.Contains(parts, "omitempty") {
			errs = multierr.Append(errs, fmt.Errorf("%s: %s missing omitempty tag", c.section, fieldPath))
		}

		errs = multierr.Append(errs, c.check(field.Type, fieldPath))
	}
	return errs
}

// sectionKey maps a section type such as StageConfig to its top level key.
func sectionKey(typeName string) string {
	return strings.ToLower(strings.TrimSuffix(typeName, "Config"))
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
