//go:build postgres

package service

import (
	"testing"

	"tableorder-service/internal/testutil"
)

func TestCreateOrder_ConcurrentDevicesShareOneSession_Postgres(t *testing.T) {
	assertConcurrentDevicesShareOneSession(t, newTestEnvOn(t, testutil.NewPostgresDB(t), nil))
}
