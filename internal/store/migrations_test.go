package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// The migration runner applies files in lexical order and records each
// version once. These checks keep the directory well-formed.
func TestMigrationFilesAreSequential(t *testing.T) {
	dir := filepath.Join("..", "..", "db", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			t.Fatalf("unexpected file %q in migrations dir", name)
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		t.Fatal("no migration files found")
	}
	sort.Strings(names)

	for i, name := range names {
		if want := fmt.Sprintf("%04d_", i+1); !strings.HasPrefix(name, want) {
			t.Fatalf("migration %q out of sequence at position %d", name, i+1)
		}
	}
}

func TestMigrationFilesAreNotEmpty(t *testing.T) {
	dir := filepath.Join("..", "..", "db", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	for _, entry := range entries {
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", entry.Name(), err)
		}
		if len(strings.TrimSpace(string(raw))) == 0 {
			t.Fatalf("migration %s is empty", entry.Name())
		}
	}
}
