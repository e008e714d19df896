package testsupport

import (
	"testing"

	"nightscribe/internal/config"
	"nightscribe/internal/logging"
	"nightscribe/internal/queue"
)

// MustOpenStore opens a queue store for the given config, failing the test on
// error.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("open queue store: %v", err)
	}
	return store
}
