package testsupport

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"subforge/internal/config"
	"subforge/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob persists a job for sourcePath with the given status.
func NewJob(t testing.TB, store *queue.Store, sourcePath string, status queue.Status) *queue.Job {
	t.Helper()

	job := queue.NewJob(sourcePath, queue.SettingsFromConfig(nil))
	job.Status = status
	if err := store.Save(context.Background(), job); err != nil {
		t.Fatalf("store.Save: %v", err)
	}
	return job
}

// Exec runs a raw statement against the database at path on a separate
// connection.
func Exec(path, query string, args ...any) (sql.Result, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.Exec(query, args...)
}
