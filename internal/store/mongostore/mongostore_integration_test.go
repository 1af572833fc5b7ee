//go:build mongo

package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/godilite/rfm-insights/internal/store"
	"github.com/godilite/rfm-insights/internal/store/storetest"
)

// Run with: MONGO_URI=mongodb://localhost:27017 go test -tags mongo ./internal/store/mongostore/
func connectTestStore(t *testing.T, customers []store.Customer) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx := context.Background()

	s, err := Connect(ctx,
		WithURI(uri),
		WithDatabase("rfm_insights_test"),
		WithCollection(fmt.Sprintf("customers_%d", time.Now().UnixNano())),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.coll.Drop(ctx)
		_ = s.Close(ctx)
	})

	if len(customers) > 0 {
		require.NoError(t, s.InsertCustomers(ctx, customers))
	}
	return s
}

func TestMongoConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T, customers []store.Customer) storetest.Client {
		return connectTestStore(t, customers)
	})
}
