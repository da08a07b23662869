package pgstore_test

import (
	"os"
	"testing"

	"peerbid/store/pgstore"
	"peerbid/store/storetest"
)

func TestStore(t *testing.T) {
	t.Parallel()

	if os.Getenv("PGCONNSTRING") == "" {
		t.Skipf("set PGCONNSTRING to run this test")
	}

	storetest.TestStore(t, pgstore.NewTestStore)
}
