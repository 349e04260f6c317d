package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"tableorder-service/internal/model"
	"tableorder-service/internal/testutil"
	"tableorder-service/pkg/database"
)

var tokenPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestGetOrCreateSession_ReusesActiveSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tableID := env.fixture.Table.ID

	first, created, err := env.sessions.GetOrCreateSession(ctx, tableID)
	if err != nil || !created {
		t.Fatalf("expected a new session, created=%v err=%v", created, err)
	}
	if !tokenPattern.MatchString(first.SessionToken) {
		t.Fatalf("token %q is not 64 hex characters", first.SessionToken)
	}

	now, _ := database.NowMillis(env.db)
	ttl := first.ExpiresAt - now
	if ttl < (44*time.Minute).Milliseconds() || ttl > (45*time.Minute).Milliseconds() {
		t.Fatalf("expected ~45m expiry, got %dms", ttl)
	}

	// reused even though it has no orders yet
	second, created, err := env.sessions.GetOrCreateSession(ctx, tableID)
	if err != nil || created {
		t.Fatalf("expected reuse, created=%v err=%v", created, err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected session %d to be reused, got %d", first.ID, second.ID)
	}
}

func TestGetOrCreateSession_ReplacesExpiredActiveSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tableID := env.fixture.Table.ID

	stale, _, err := env.sessions.GetOrCreateSession(ctx, tableID)
	if err != nil {
		t.Fatalf("GetOrCreateSession() error = %v", err)
	}
	env.db.Model(&model.Session{}).Where("id = ?", stale.ID).Update("expires_at", 1)

	fresh, created, err := env.sessions.GetOrCreateSession(ctx, tableID)
	if err != nil || !created {
		t.Fatalf("expected a fresh session, created=%v err=%v", created, err)
	}
	if fresh.ID == stale.ID {
		t.Fatalf("expired session must not be reused")
	}
	if env.reloadSession(t, stale.ID).IsActive {
		t.Fatalf("expired session should have been deactivated")
	}

	var active int64
	env.db.Model(&model.Session{}).Where("table_id = ? AND is_active = ?", tableID, true).Count(&active)
	if active != 1 {
		t.Fatalf("expected exactly one active session, got %d", active)
	}
}

func TestValidateSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, _, err := env.sessions.GetOrCreateSession(ctx, env.fixture.Table.ID)
	if err != nil {
		t.Fatalf("GetOrCreateSession() error = %v", err)
	}

	got, err := env.sessions.ValidateSession(ctx, session.SessionToken)
	if err != nil || got == nil || got.ID != session.ID {
		t.Fatalf("expected valid session, got %v err=%v", got, err)
	}

	for _, token := range []string{"", "deadbeef"} {
		got, err := env.sessions.ValidateSession(ctx, token)
		if err != nil || got != nil {
			t.Fatalf("token %q: expected nil session, got %v err=%v", token, got, err)
		}
	}

	env.db.Model(&model.Session{}).Where("id = ?", session.ID).Update("expires_at", 1)
	got, err = env.sessions.ValidateSession(ctx, session.SessionToken)
	if err != nil || got != nil {
		t.Fatalf("expired session should not validate, got %v err=%v", got, err)
	}
}

func TestSetGracePeriod_KeepsReceiptResolvable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, _, _ := env.sessions.GetOrCreateSession(ctx, env.fixture.Table.ID)
	if err := env.sessions.SetGracePeriod(ctx, session.ID, 10*time.Minute); err != nil {
		t.Fatalf("SetGracePeriod() error = %v", err)
	}

	stored := env.reloadSession(t, session.ID)
	if stored.IsActive {
		t.Fatalf("session should be inactive during grace period")
	}
	if stored.ExpiresAt >= session.ExpiresAt {
		t.Fatalf("grace period should shorten expiry: %d >= %d", stored.ExpiresAt, session.ExpiresAt)
	}

	got, err := env.sessions.ValidateSession(ctx, session.SessionToken)
	if err != nil || got == nil {
		t.Fatalf("session should still validate during grace, got %v err=%v", got, err)
	}

	// a sooner expiry is never extended
	if err := env.sessions.SetGracePeriod(ctx, session.ID, 30*time.Minute); err != nil {
		t.Fatalf("SetGracePeriod() error = %v", err)
	}
	if again := env.reloadSession(t, session.ID); again.ExpiresAt != stored.ExpiresAt {
		t.Fatalf("expiry moved from %d to %d", stored.ExpiresAt, again.ExpiresAt)
	}
}

func TestExpireSessionAndClearTable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tableID := env.fixture.Table.ID

	session, _, _ := env.sessions.GetOrCreateSession(ctx, tableID)
	if err := env.sessions.ExpireSession(ctx, session.ID); err != nil {
		t.Fatalf("ExpireSession() error = %v", err)
	}
	if got, _ := env.sessions.ValidateSession(ctx, session.SessionToken); got != nil {
		t.Fatalf("expired session still validates")
	}

	next, _, _ := env.sessions.GetOrCreateSession(ctx, tableID)
	cleared, err := env.sessions.ClearTable(ctx, tableID)
	if err != nil {
		t.Fatalf("ClearTable() error = %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 cleared session, got %d", cleared)
	}
	if env.reloadSession(t, next.ID).IsActive {
		t.Fatalf("cleared session still active")
	}
}

func TestUpdateCustomerDetails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, _, _ := env.sessions.GetOrCreateSession(ctx, env.fixture.Table.ID)
	if err := env.sessions.UpdateCustomerDetails(ctx, session.ID, testutil.Ptr("Asha"), nil); err != nil {
		t.Fatalf("UpdateCustomerDetails() error = %v", err)
	}
	if err := env.sessions.UpdateCustomerDetails(ctx, session.ID, nil, testutil.Ptr("+911234")); err != nil {
		t.Fatalf("UpdateCustomerDetails() error = %v", err)
	}

	stored := env.reloadSession(t, session.ID)
	if stored.CustomerName == nil || *stored.CustomerName != "Asha" {
		t.Fatalf("customer name not stored: %v", stored.CustomerName)
	}
	if stored.CustomerPhone == nil || *stored.CustomerPhone != "+911234" {
		t.Fatalf("customer phone not stored: %v", stored.CustomerPhone)
	}
}
