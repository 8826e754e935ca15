package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Errorf("expected nil tx from bare context, got %v", tx)
	}
}

func TestTxFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), txKey, "not a tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Errorf("expected nil tx for wrong value type, got %v", tx)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(errors.New("plain error")) {
		t.Error("plain error should not be a unique violation")
	}
	if IsUniqueViolation(nil) {
		t.Error("nil should not be a unique violation")
	}

	pgErr := &pgconn.PgError{Code: "23505"}
	if !IsUniqueViolation(pgErr) {
		t.Error("expected 23505 to be a unique violation")
	}

	wrapped := errors.Join(errors.New("insert user"), pgErr)
	if !IsUniqueViolation(wrapped) {
		t.Error("expected wrapped 23505 to be a unique violation")
	}

	other := &pgconn.PgError{Code: "23503"}
	if IsUniqueViolation(other) {
		t.Error("foreign key violation should not map to conflict")
	}
}
