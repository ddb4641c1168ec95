package usage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGStoreAppendUpdatesLedgerInTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := NewPGStore(db)
	entry := Entry{
		ID:           "e1",
		UserID:       "u1",
		TempResumeID: "r1",
		Provider:     "openai",
		Model:        "gpt-4o-mini",
		InputTokens:  100,
		OutputTokens: 20,
		TotalTokens:  120,
		Cost:         0.5,
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO usage_entries").
		WithArgs(entry.ID, entry.UserID, entry.TempResumeID, entry.Provider, entry.Model,
			entry.InputTokens, entry.OutputTokens, entry.TotalTokens, entry.Cost, entry.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("INSERT INTO usage_ledgers").
		WithArgs(entry.UserID, entry.TotalTokens, entry.Cost, entry.CreatedAt).
		WillReturnRows(sqlmock.NewRows([]string{"total_tokens", "total_cost", "analysis_count"}).AddRow(int64(240), 1.0, 2))
	mock.ExpectCommit()

	l, err := store.Append(context.Background(), entry)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if l.TotalTokens != 240 || l.AnalysisCount != 2 {
		t.Fatalf("unexpected ledger %+v", l)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreAppendRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO usage_entries").WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	if _, err := NewPGStore(db).Append(context.Background(), Entry{ID: "e1", UserID: "u1"}); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreLedgerMissingRowIsZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT total_tokens, total_cost, analysis_count FROM usage_ledgers").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"total_tokens", "total_cost", "analysis_count"}))

	l, err := NewPGStore(db).Ledger(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Ledger: %v", err)
	}
	if l.AnalysisCount != 0 || l.UserID != "u1" {
		t.Fatalf("unexpected ledger %+v", l)
	}
}

func TestPGStoreMonthly(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("FROM usage_entries").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"month", "count", "in", "out", "total", "cost"}).
			AddRow("2026-02", 1, int64(30), int64(5), int64(35), 3.0).
			AddRow("2026-01", 2, int64(30), int64(10), int64(40), 3.0))

	rows, err := NewPGStore(db).Monthly(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	if len(rows) != 2 || rows[1].Analyses != 2 {
		t.Fatalf("unexpected rows %+v", rows)
	}
}
