package library

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/library-core/internal/infrastructure/database"
	"github.com/nerrad567/library-core/migrations"
)

func sampleSnapshot() Snapshot {
	ret := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	return Snapshot{
		Books: []Book{
			{BookID: 1, Title: "Dune", Author: "Herbert", Available: false},
			{BookID: 2, Title: "Emma", Author: "Austen", Available: true},
		},
		Members: []Member{
			{MemberID: 3, FirstName: "Ada", LastName: "Lovelace", Address: "London"},
		},
		Loans: []Loan{
			{LoanID: 4, BookID: 1, MemberID: 3, Status: StatusOnLoan, LoanDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
			{LoanID: 5, BookID: 2, MemberID: 3, Status: StatusReturned, LoanDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), ReturnDate: &ret},
		},
	}
}

func TestFilePersister_MissingFile(t *testing.T) {
	p := NewFilePersister(filepath.Join(t.TempDir(), "library.json"))

	_, found, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if found {
		t.Error("Load() found = true for a missing file")
	}
}

func TestFilePersister_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "library.json")
	p := NewFilePersister(path)
	ctx := context.Background()

	if err := p.Save(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, found, err := p.Load(ctx)
	if err != nil || !found {
		t.Fatalf("Load() = found %v, error %v", found, err)
	}
	if !reflect.DeepEqual(got, sampleSnapshot()) {
		t.Errorf("Load() = %+v, want %+v", got, sampleSnapshot())
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != filePermissions {
		t.Errorf("file permissions = %o, want %o", perm, filePermissions)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}

func TestFilePersister_DocumentShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.json")
	p := NewFilePersister(path)

	if err := p.Save(context.Background(), Snapshot{}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("document is not a JSON object: %v", err)
	}
	for _, key := range []string{"books", "members", "loans"} {
		if string(doc[key]) != "[]" {
			t.Errorf("%s = %s, want []", key, doc[key])
		}
	}
}

func TestFilePersister_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, _, err := NewFilePersister(path).Load(context.Background()); err == nil {
		t.Error("Load() expected error for corrupt document")
	}
	if _, err := Open(context.Background(), Options{Persister: NewFilePersister(path), Seed: true}); err == nil {
		t.Error("Open() expected error for corrupt document")
	}
}

func TestFilePersister_StoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.json")
	ctx := context.Background()

	s, err := Open(ctx, Options{Persister: NewFilePersister(path), Seed: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := s.Books().Create(ctx, Book{BookID: 1, Title: "Dune", Author: "Herbert", Available: true}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	reopened, err := Open(ctx, Options{Persister: NewFilePersister(path), Seed: true})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if got := reopened.Books().Count(); got != 3 {
		t.Errorf("books after reopen = %d, want 3", got)
	}
}

func openMigratedDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestSQLitePersister_SaveLoad(t *testing.T) {
	db := openMigratedDB(t)
	p := NewSQLitePersister(db)
	ctx := context.Background()

	_, found, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if found {
		t.Fatal("Load() found = true before the first save")
	}

	if err := p.Save(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, found, err := p.Load(ctx)
	if err != nil || !found {
		t.Fatalf("Load() = found %v, error %v", found, err)
	}
	if !reflect.DeepEqual(got, sampleSnapshot()) {
		t.Errorf("Load() = %+v, want %+v", got, sampleSnapshot())
	}

	// An empty save still counts as initialised.
	if err := p.Save(ctx, Snapshot{}); err != nil {
		t.Fatalf("Save(empty) error = %v", err)
	}
	got, found, err = p.Load(ctx)
	if err != nil || !found {
		t.Fatalf("Load() = found %v, error %v", found, err)
	}
	if len(got.Books)+len(got.Members)+len(got.Loans) != 0 {
		t.Errorf("Load() = %+v, want empty", got)
	}
}

func TestSQLitePersister_StoreRollbackOnConstraint(t *testing.T) {
	db := openMigratedDB(t)
	ctx := context.Background()

	s, err := Open(ctx, Options{Persister: NewSQLitePersister(db), Seed: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := s.Members().Count(); got != 2 {
		t.Fatalf("members = %d, want 2 seeded", got)
	}

	if _, err := db.ExecContext(ctx, "DROP TABLE books"); err != nil {
		t.Fatalf("DROP TABLE error = %v", err)
	}
	if _, err := s.Books().Create(ctx, Book{BookID: 1, Title: "Dune", Author: "Herbert"}); err == nil {
		t.Fatal("Create() expected persistence error")
	}
	if got := s.Books().Count(); got != 2 {
		t.Errorf("books = %d, want 2 after rollback", got)
	}
}
