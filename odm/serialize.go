package odm

import (
	"fmt"
	"reflect"

	"github.com/stratadb/strata/core/document"
	strataerrors "github.com/stratadb/strata/core/errors"
)

func documentFieldName(field reflect.StructField) string {
	return document.FieldName(field)
}

// toDocument projects an instance's declared fields into a Document,
// skipping the embedded Model and any relationship descriptor field.
// The id itself is never part of the projected document; it lives on
// the row, not inside data.
func toDocument(instance any) (document.Document, error) {
	v := reflect.ValueOf(instance)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()

	doc := document.Document{}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Type == modelType || field.Type.Implements(relationFieldType) || !field.IsExported() {
			continue
		}
		decomposed, err := document.Decompose(v.Field(i))
		if err != nil {
			return nil, &strataerrors.SerializationFailure{Model: t.Name(), Field: field.Name, Err: err}
		}
		doc[documentFieldName(field)] = decomposed
	}
	return doc, nil
}

// fromDocument structurally coerces a stored document back onto a
// freshly allocated *T and attaches id.
func fromDocument[T any](doc document.Document, id int64) (*T, error) {
	instance := new(T)
	v := reflect.ValueOf(instance).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Type == modelType || field.Type.Implements(relationFieldType) || !field.IsExported() {
			continue
		}
		raw, present := doc[documentFieldName(field)]
		if !present {
			continue
		}
		coerced, err := document.Coerce(raw, field.Type)
		if err != nil {
			return nil, &strataerrors.SerializationFailure{Model: t.Name(), Field: field.Name, Err: err}
		}
		v.Field(i).Set(coerced)
	}

	modelField(v).setID(id)
	return instance, nil
}

// modelField locates the embedded Model within struct value v. Go
// names an anonymous embedded field after its type, so this is always
// "Model" for a type that embeds odm.Model.
func modelField(v reflect.Value) *Model {
	f := v.FieldByName("Model")
	if !f.IsValid() || f.Type() != modelType {
		panic(fmt.Sprintf("odm: %s does not embed odm.Model", v.Type().Name()))
	}
	return f.Addr().Interface().(*Model)
}

// modelOf returns the *Model embedded in instance, which may be a
// pointer to a struct embedding Model.
func modelOf(instance any) *Model {
	v := reflect.ValueOf(instance)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return modelField(v)
}
