package query

import (
	"strings"
	"testing"
)

func schema() Schema {
	return Schema{
		Table:         "collection_users",
		IndexedFields: map[string]bool{"email": true},
	}
}

func TestSelectRoutesIndexedField(t *testing.T) {
	s := schema()
	sqlStr, args, err := s.Select([]Predicate{{Field: "email", Op: OpEq, Value: "a@x"}}, 10, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !strings.Contains(sqlStr, `"email" = ?`) {
		t.Errorf("expected generated-column condition, got %q", sqlStr)
	}
	if len(args) != 1 || args[0] != "a@x" {
		t.Errorf("got args %v", args)
	}
	if !strings.Contains(sqlStr, "LIMIT 10") {
		t.Errorf("expected LIMIT clause, got %q", sqlStr)
	}
}

func TestSelectRoutesUnindexedFieldToJSONExtract(t *testing.T) {
	s := schema()
	sqlStr, _, err := s.Select([]Predicate{{Field: "name", Op: OpEq, Value: "Alice"}}, 0, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !strings.Contains(sqlStr, "json_extract(data, '$.name')") {
		t.Errorf("expected json_extract condition, got %q", sqlStr)
	}
}

func TestSelectLikeNeverIndexed(t *testing.T) {
	s := schema()
	sqlStr, _, err := s.Select([]Predicate{{Field: "email", Op: OpLike, Value: "%x%"}}, 0, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !strings.Contains(sqlStr, "json_extract(data, '$.email') LIKE ?") {
		t.Errorf("expected LIKE against json_extract even for indexed field, got %q", sqlStr)
	}
}

func TestSelectCursor(t *testing.T) {
	s := schema()
	sqlStr, args, err := s.SelectCursor(42, 100)
	if err != nil {
		t.Fatalf("SelectCursor: %v", err)
	}
	if !strings.Contains(sqlStr, "id > ?") || !strings.Contains(sqlStr, "LIMIT 100") {
		t.Errorf("unexpected cursor SQL: %q", sqlStr)
	}
	if len(args) != 1 || args[0] != int64(42) {
		t.Errorf("got args %v", args)
	}
}

func TestInsertAndUpdate(t *testing.T) {
	s := schema()

	sqlStr, args, err := s.Insert([]byte(`{"name":"Alice"}`))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !strings.Contains(sqlStr, "INSERT INTO collection_users") {
		t.Errorf("unexpected insert SQL: %q", sqlStr)
	}
	if len(args) != 1 {
		t.Errorf("got args %v", args)
	}

	sqlStr, args, err = s.Update(7, []byte(`{"name":"Bob"}`))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !strings.Contains(sqlStr, "UPDATE collection_users SET data = ?") || !strings.Contains(sqlStr, "WHERE id = ?") {
		t.Errorf("unexpected update SQL: %q", sqlStr)
	}
	if len(args) != 2 {
		t.Errorf("got args %v", args)
	}
}

func TestInCondition(t *testing.T) {
	s := schema()
	sqlStr, args, err := s.Select([]Predicate{{Field: "email", Op: OpIn, Value: []any{"a@x", "b@x"}}}, 0, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !strings.Contains(sqlStr, `"email" IN (?, ?)`) {
		t.Errorf("unexpected IN SQL: %q", sqlStr)
	}
	if len(args) != 2 {
		t.Errorf("got args %v", args)
	}
}

func TestPatternCondition(t *testing.T) {
	s := schema()
	expr, args := s.PatternCondition("email", "^a.*")
	if !strings.Contains(expr, "REGEXP") {
		t.Errorf("unexpected pattern expr: %q", expr)
	}
	if len(args) != 1 || args[0] != "^a.*" {
		t.Errorf("got args %v", args)
	}
}
