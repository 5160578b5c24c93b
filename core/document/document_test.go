package document

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidFieldName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"email", true},
		{"user_id", true},
		{"Field1", true},
		{"", false},
		{"has space", false},
		{"has-dash", false},
		{"$.path", false},
	}

	for _, tt := range tests {
		if got := ValidFieldName(tt.name); got != tt.want {
			t.Errorf("ValidFieldName(%q) = %v; want %v", tt.name, got, tt.want)
		}
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	doc := Document{
		"name":  "Alice",
		"email": "a@x",
		"age":   float64(30),
		"tags":  []any{"a", "b"},
	}

	data, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if diff := cmp.Diff(doc, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(Document{"ok_field": 1}); err != nil {
		t.Errorf("Validate: unexpected error: %v", err)
	}
	if err := Validate(Document{"bad field": 1}); err == nil {
		t.Error("Validate: expected error for invalid field name")
	}
}

func TestMerge(t *testing.T) {
	base := Document{"a": 1, "b": 2, "nested": map[string]any{"x": 1}}
	patch := Document{"b": 3, "c": 4}

	got := Merge(base, patch)

	want := Document{"a": 1, "b": 3, "c": 4, "nested": map[string]any{"x": 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge mismatch (-want +got):\n%s", diff)
	}

	// base must be unmodified.
	if base["b"] != 2 {
		t.Error("Merge mutated base")
	}
}

func TestMergeDoesNotDeepMerge(t *testing.T) {
	base := Document{"nested": map[string]any{"x": 1, "y": 2}}
	patch := Document{"nested": map[string]any{"x": 99}}

	got := Merge(base, patch)

	// Top-level-only merge: patch's "nested" value replaces base's wholesale.
	want := Document{"nested": map[string]any{"x": 99}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge mismatch (-want +got):\n%s", diff)
	}
}
