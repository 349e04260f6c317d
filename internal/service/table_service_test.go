package service

import (
	"context"
	"testing"

	"tableorder-service/internal/apperror"
	"tableorder-service/internal/model"
)

func TestClearTable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	placed := env.order(t, env.fixture.Table.ID, "")
	cleared, err := env.tables.ClearTable(ctx, env.tenantID(), env.fixture.Table.ID)
	if err != nil {
		t.Fatalf("ClearTable() error = %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected one session cleared, got %d", cleared)
	}

	next := env.order(t, env.fixture.Table.ID, placed.SessionToken)
	if next.SessionToken == placed.SessionToken {
		t.Fatalf("cleared session must not be reused")
	}

	if _, err := env.tables.ClearTable(ctx, env.tenantID()+1, env.fixture.Table.ID); !apperror.IsKind(err, apperror.KindNotFound) {
		t.Fatalf("clearing another tenant's table should be not found, got %v", err)
	}
}

func TestMoveTableSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	source := env.fixture.Table
	target := env.addTable(t, "12", true)

	first := env.order(t, source.ID, "")
	second := env.order(t, source.ID, first.SessionToken)
	env.setStatus(t, first.Order.ID, model.StatusCompleted)

	moved, err := env.tables.MoveTableSession(ctx, env.tenantID(), source.ID, target.ID)
	if err != nil {
		t.Fatalf("MoveTableSession() error = %v", err)
	}
	if moved.SessionToken != first.SessionToken || moved.ToTable != "12" || moved.OrdersMoved != 1 {
		t.Fatalf("unexpected move result %+v", moved)
	}

	if got := *env.reload(t, second.Order.ID).TableID; got != target.ID {
		t.Fatalf("open order should follow the session, on table %d", got)
	}
	if got := *env.reload(t, first.Order.ID).TableID; got != source.ID {
		t.Fatalf("completed order should stay on its table, on table %d", got)
	}

	// the session now belongs to the target table
	onTarget := env.order(t, target.ID, first.SessionToken)
	if onTarget.SessionToken != first.SessionToken {
		t.Fatalf("expected moved session to be reused on the target table")
	}
	onSource := env.order(t, source.ID, first.SessionToken)
	if onSource.SessionToken == first.SessionToken {
		t.Fatalf("source table should get a new session")
	}
}

func TestMoveTableSession_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	source := env.fixture.Table
	busy := env.addTable(t, "20", true)
	closed := env.addTable(t, "21", false)
	empty := env.addTable(t, "22", true)

	env.order(t, source.ID, "")
	env.order(t, busy.ID, "")

	tests := []struct {
		name           string
		source, target uint
		want           apperror.Kind
	}{
		{"same table", source.ID, source.ID, apperror.KindBadRequest},
		{"no session on source", empty.ID, source.ID, apperror.KindNotFound},
		{"target occupied", source.ID, busy.ID, apperror.KindConflict},
		{"target unavailable", source.ID, closed.ID, apperror.KindConflict},
		{"unknown target", source.ID, 9999, apperror.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.tables.MoveTableSession(ctx, env.tenantID(), tt.source, tt.target)
			if !apperror.IsKind(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
