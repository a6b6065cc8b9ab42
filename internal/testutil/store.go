package testutil

import (
	"path/filepath"
	"testing"

	configstore "github.com/geto-app/geto/internal/config/store"
)

// OpenStore creates a temporary store and returns a cleanup function.
func OpenStore(t *testing.T) (*configstore.Store, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "geto.db")
	store, err := configstore.Open(configstore.Options{DBPath: dbPath})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store, func() { store.Close() }
}
