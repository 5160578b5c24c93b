package odm

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stratadb/strata/core/database"
)

type Address struct {
	City string `strata:"city"`
	Zip  string `strata:"zip"`
}

type User struct {
	Model
	Name  string  `strata:"name" index:"true"`
	Email string  `strata:"email"`
	Age   int     `strata:"age"`
	Addr  Address `strata:"addr"`
}

type Category struct {
	Model
	Name string `strata:"name"`
}

type Box struct {
	Model
	Label string `strata:"label"`
}

func newTestDB(t *testing.T) *database.Database {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strata.db")
	db, err := database.Open(path, database.DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		Unbind()
		db.Close()
	})
	Bind(db)
	return db
}

func TestPluralizeRuleOrder(t *testing.T) {
	cases := map[string]string{
		"User":     "users",
		"Category": "categories",
		"Box":      "boxes",
		"Address":  "addresses",
	}
	for typeName, want := range cases {
		if got := deriveCollectionName(typeName); got != want {
			t.Errorf("deriveCollectionName(%q) = %q; want %q", typeName, got, want)
		}
	}
}

func TestMetaDerivedFromTypeAndIndexTags(t *testing.T) {
	meta := metaOf(&User{})
	if meta.CollectionName != "users" {
		t.Errorf("CollectionName = %q; want users", meta.CollectionName)
	}
	if len(meta.IndexedFields) != 1 || meta.IndexedFields[0] != "name" {
		t.Errorf("IndexedFields = %v; want [name]", meta.IndexedFields)
	}
}

type customMetaModel struct {
	Model
	Value string `strata:"value"`
}

func (*customMetaModel) ModelMeta() Meta {
	return Meta{CollectionName: "custom_things", IndexedFields: []string{"value"}}
}

func TestModelMetaOverridesDerivation(t *testing.T) {
	meta := metaOf(&customMetaModel{})
	if meta.CollectionName != "custom_things" {
		t.Errorf("CollectionName = %q; want custom_things", meta.CollectionName)
	}
	if len(meta.IndexedFields) != 1 || meta.IndexedFields[0] != "value" {
		t.Errorf("IndexedFields = %v; want [value]", meta.IndexedFields)
	}
}

func TestToDocumentFromDocumentRoundTrip(t *testing.T) {
	u := &User{Name: "Ada", Email: "ada@example.com", Age: 30, Addr: Address{City: "London", Zip: "E1"}}
	doc, err := toDocument(u)
	if err != nil {
		t.Fatalf("toDocument: %v", err)
	}

	back, err := fromDocument[User](doc, 7)
	if err != nil {
		t.Fatalf("fromDocument: %v", err)
	}

	if diff := cmp.Diff(u.Name, back.Name); diff != "" {
		t.Errorf("Name mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(u.Email, back.Email); diff != "" {
		t.Errorf("Email mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(u.Age, back.Age); diff != "" {
		t.Errorf("Age mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(u.Addr, back.Addr); diff != "" {
		t.Errorf("Addr mismatch (-want +got):\n%s", diff)
	}
	if back.ID() != 7 {
		t.Errorf("ID() = %d; want 7", back.ID())
	}
}

func TestSaveInsertsThenUpdates(t *testing.T) {
	newTestDB(t)

	u := &User{Name: "Grace", Email: "grace@example.com", Age: 40}
	if err := Save[User](u); err != nil {
		t.Fatalf("Save (insert): %v", err)
	}
	if !u.HasID() {
		t.Fatal("expected id to be assigned after insert")
	}

	u.Age = 41
	if err := Save[User](u); err != nil {
		t.Fatalf("Save (update): %v", err)
	}

	loaded, err := GetByID[User](u.ID())
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected loaded instance, got nil")
	}
	if loaded.Age != 41 {
		t.Errorf("Age = %d; want 41", loaded.Age)
	}
}

func TestSaveDeleteLifecycle(t *testing.T) {
	newTestDB(t)

	u := &User{Name: "Linus", Email: "linus@example.com", Age: 25}
	if err := Save[User](u); err != nil {
		t.Fatalf("Save: %v", err)
	}
	id := u.ID()

	if err := Delete[User](u); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if u.HasID() {
		t.Error("expected HasID() to be false after Delete")
	}

	loaded, err := GetByID[User](id)
	if err != nil {
		t.Fatalf("GetByID after delete: %v", err)
	}
	if loaded != nil {
		t.Error("expected nil after deleting the only matching row")
	}
}

func TestDeleteUnsavedInstanceFails(t *testing.T) {
	newTestDB(t)
	u := &User{Name: "Unsaved"}
	if err := Delete[User](u); err == nil {
		t.Error("expected error deleting an instance with no id")
	}
}

func TestFilterGetCountInsertManyDeleteMany(t *testing.T) {
	newTestDB(t)

	users := []*User{
		{Name: "Alice", Email: "alice@example.com", Age: 30},
		{Name: "Bob", Email: "bob@example.com", Age: 25},
		{Name: "Carol", Email: "carol@example.com", Age: 25},
	}
	if err := InsertMany[User](users); err != nil {
		t.Fatalf("InsertMany: %v", err)
	}
	for _, u := range users {
		if !u.HasID() {
			t.Error("expected every instance to have an assigned id after InsertMany")
		}
	}

	got, err := Filter[User](map[string]any{"age": 25}, 0, 0)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Filter(age=25) returned %d; want 2", len(got))
	}

	count, err := Count[User](map[string]any{"age": 25})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("Count(age=25) = %d; want 2", count)
	}

	one, err := Get[User](map[string]any{"name": "Alice"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if one == nil || one.Name != "Alice" {
		t.Fatalf("Get(name=Alice) = %+v", one)
	}

	all, err := All[User](0, 0)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("All() returned %d; want 3", len(all))
	}

	deleted, err := DeleteMany[User](map[string]any{"age": 25})
	if err != nil {
		t.Fatalf("DeleteMany: %v", err)
	}
	if deleted != 2 {
		t.Errorf("DeleteMany(age=25) removed %d; want 2", deleted)
	}

	remaining, err := All[User](0, 0)
	if err != nil {
		t.Fatalf("All after delete: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Name != "Alice" {
		t.Errorf("remaining = %v; want [Alice]", remaining)
	}
}

func TestDeleteManyRequiresFilters(t *testing.T) {
	newTestDB(t)
	if _, err := DeleteMany[User](nil); err == nil {
		t.Error("expected ErrMissingPredicate for empty filters")
	}
}

func TestOperationsFailWithoutBind(t *testing.T) {
	Unbind()
	if _, err := All[User](0, 0); err == nil {
		t.Error("expected error when no database is bound")
	}
}
