// Package configbinder binds loosely typed property maps onto structs.
package configbinder

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// BindProperties binds a map of properties to target using "yaml" tags.
// Weakly typed input is accepted, so "10" binds to an int field.
func BindProperties(properties map[string]interface{}, target interface{}) error {
	return bind(properties, target, "yaml", false)
}

// BindStrict binds properties to target using tagName, rejecting unknown keys
// and refusing string/number coercion. Used where malformed input must surface
// as an error rather than be silently converted.
func BindStrict(properties map[string]interface{}, target interface{}, tagName string) error {
	return bind(properties, target, tagName, true)
}

func bind(properties map[string]interface{}, target interface{}, tagName string, strict bool) error {
	decoderConfig := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           target,
		TagName:          tagName,
		WeaklyTypedInput: !strict,
		ErrorUnused:      strict,
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(properties); err != nil {
		targetType := reflect.TypeOf(target)
		if targetType.Kind() == reflect.Ptr {
			targetType = targetType.Elem()
		}
		return fmt.Errorf("failed to bind properties to struct %s: %w", targetType.Name(), err)
	}
	return nil
}
