package document

import (
	"fmt"
	"reflect"

	strataerrors "github.com/stratadb/strata/core/errors"
)

// Coerce converts a raw decoded JSON value (as produced by
// encoding/json into an any: nil, bool, float64, string, []any,
// map[string]any, plus the int64/uint64 numbers Decompose produces)
// into a Go value assignable to target, the
// reflect.Type of a declared struct field. Supported target kinds:
//   - scalars: bool, the integer kinds, float32/float64, string
//   - pointers to scalars ("optional scalars"): nil decodes to a nil
//     pointer, otherwise a pointer to the coerced scalar
//   - slices of a supported element kind ("homogeneous sequences")
//   - maps with string keys and a supported value kind ("homogeneous
//     mappings")
//   - structs implementing nothing special: fields are coerced
//     key-by-key from a map[string]any (nested document types)
//
// Anything else returns ErrSerializationError.
func Coerce(raw any, target reflect.Type) (reflect.Value, error) {
	if target.Kind() == reflect.Ptr {
		if raw == nil {
			return reflect.Zero(target), nil
		}
		elem, err := Coerce(raw, target.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	}

	if raw == nil {
		return reflect.Value{}, serializationErr(target, "null value for non-optional field")
	}

	switch target.Kind() {
	case reflect.Bool:
		b, ok := raw.(bool)
		if !ok {
			return reflect.Value{}, serializationErr(target, fmt.Sprintf("expected bool, got %T", raw))
		}
		return reflect.ValueOf(b), nil

	case reflect.String:
		s, ok := raw.(string)
		if !ok {
			return reflect.Value{}, serializationErr(target, fmt.Sprintf("expected string, got %T", raw))
		}
		return reflect.ValueOf(s).Convert(target), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f, ok := number(raw)
		if !ok {
			return reflect.Value{}, serializationErr(target, fmt.Sprintf("expected number, got %T", raw))
		}
		v := reflect.New(target).Elem()
		v.SetInt(int64(f))
		return v, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f, ok := number(raw)
		if !ok {
			return reflect.Value{}, serializationErr(target, fmt.Sprintf("expected number, got %T", raw))
		}
		v := reflect.New(target).Elem()
		v.SetUint(uint64(f))
		return v, nil

	case reflect.Float32, reflect.Float64:
		f, ok := number(raw)
		if !ok {
			return reflect.Value{}, serializationErr(target, fmt.Sprintf("expected number, got %T", raw))
		}
		v := reflect.New(target).Elem()
		v.SetFloat(f)
		return v, nil

	case reflect.Slice:
		arr, ok := raw.([]any)
		if !ok {
			return reflect.Value{}, serializationErr(target, fmt.Sprintf("expected array, got %T", raw))
		}
		out := reflect.MakeSlice(target, len(arr), len(arr))
		for i, item := range arr {
			elem, err := Coerce(item, target.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(elem)
		}
		return out, nil

	case reflect.Map:
		if target.Key().Kind() != reflect.String {
			return reflect.Value{}, serializationErr(target, "map keys must be strings")
		}
		m, ok := raw.(map[string]any)
		if !ok {
			return reflect.Value{}, serializationErr(target, fmt.Sprintf("expected object, got %T", raw))
		}
		out := reflect.MakeMapWithSize(target, len(m))
		for k, v := range m {
			elem, err := Coerce(v, target.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(target.Key()), elem)
		}
		return out, nil

	case reflect.Struct:
		m, ok := raw.(map[string]any)
		if !ok {
			return reflect.Value{}, serializationErr(target, fmt.Sprintf("expected object, got %T", raw))
		}
		out := reflect.New(target).Elem()
		for i := 0; i < target.NumField(); i++ {
			field := target.Field(i)
			if !field.IsExported() {
				continue
			}
			name := FieldName(field)
			val, present := m[name]
			if !present {
				continue
			}
			coerced, err := Coerce(val, field.Type)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Field(i).Set(coerced)
		}
		return out, nil
	}

	return reflect.Value{}, serializationErr(target, "unsupported field type")
}

// Decompose converts a Go value back into a JSON-compatible any for
// serialization into a Document, the inverse of Coerce.
func Decompose(v reflect.Value) (any, error) {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, nil
		}
		return Decompose(v.Elem())
	}

	switch v.Kind() {
	case reflect.Bool, reflect.String:
		return v.Interface(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Slice, reflect.Array:
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			d, err := Decompose(v.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	case reflect.Map:
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			d, err := Decompose(iter.Value())
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(iter.Key().Interface())] = d
		}
		return out, nil
	case reflect.Struct:
		out := make(map[string]any, v.NumField())
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			d, err := Decompose(v.Field(i))
			if err != nil {
				return nil, err
			}
			out[FieldName(field)] = d
		}
		return out, nil
	}

	return nil, serializationErr(v.Type(), "unsupported field type")
}

// FieldName returns the document key a struct field serializes under:
// the "strata" tag if present, otherwise the Go field name.
func FieldName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("strata"); ok && tag != "" {
		return tag
	}
	return field.Name
}

// number accepts the numeric forms Coerce sees: float64 from JSON
// decoding, int64/uint64 from Decompose.
func number(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func serializationErr(target reflect.Type, reason string) error {
	return &strataerrors.SerializationFailure{
		Model: target.Name(),
		Field: "",
		Err:   fmt.Errorf("%s", reason),
	}
}
