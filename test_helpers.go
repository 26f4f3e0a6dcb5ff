package main

import (
	"os"
	"path/filepath"
	"testing"
)

// testYears are the fixture years under testdata/cutoff_trends.
var testYears = []string{"2021.csv", "2022.csv", "2023.csv"}

// SetupTestDB imports the fixture cutoff files into a fresh database in a
// temporary data directory.
func SetupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	dataDir := CopyTestCutoffs(t)
	db, err := NewDB(dataDir)
	if err != nil {
		t.Fatalf("failed to initialize test database: %v", err)
	}

	cleanup := func() {
		db.Close()
	}
	return db, cleanup
}

// CopyTestCutoffs copies the fixture CSVs into <tmp>/cutoff_trends and
// returns the data directory.
func CopyTestCutoffs(t *testing.T) string {
	t.Helper()

	dataDir := t.TempDir()
	trends := TrendsDir(dataDir)
	if err := os.MkdirAll(trends, 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", trends, err)
	}

	for _, file := range testYears {
		src := filepath.Join("testdata", "cutoff_trends", file)
		data, err := os.ReadFile(src)
		if err != nil {
			t.Fatalf("failed to read %s: %v", src, err)
		}
		if err := os.WriteFile(filepath.Join(trends, file), data, 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", file, err)
		}
	}
	return dataDir
}
