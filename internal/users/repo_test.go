package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"jobboard-backend/internal/analysis"
)

func TestMemoryRepoSetResumeReturnsPrevious(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	first := PermanentResume{Path: "a/one.pdf", Analysis: analysis.Result{Score: 50}, LastAnalyzed: time.Now()}
	prev, err := repo.SetResume(ctx, "u1", first)
	if err != nil || prev != nil {
		t.Fatalf("expected no previous resume, got %+v err=%v", prev, err)
	}

	second := PermanentResume{Path: "a/two.pdf", Analysis: analysis.Result{Score: 70}, LastAnalyzed: time.Now()}
	prev, err = repo.SetResume(ctx, "u1", second)
	if err != nil {
		t.Fatalf("SetResume: %v", err)
	}
	if prev == nil || prev.Path != "a/one.pdf" {
		t.Fatalf("expected previous a/one.pdf, got %+v", prev)
	}

	user, err := repo.GetByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if user.Resume == nil || user.Resume.Path != "a/two.pdf" || user.Resume.Analysis.Score != 70 {
		t.Fatalf("unexpected profile %+v", user.Resume)
	}
}

func TestPGRepoSetResumeLocksAndUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT resume_path, resume_analysis, last_analyzed FROM users WHERE id = \\$1 FOR UPDATE").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"resume_path", "resume_analysis", "last_analyzed"}).
			AddRow("old/key.pdf", []byte(`{"score":40}`), at))
	mock.ExpectExec("INSERT INTO users").
		WithArgs("u1", "new/key.pdf", sqlmock.AnyArg(), at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	prev, err := repo.SetResume(context.Background(), "u1", PermanentResume{Path: "new/key.pdf", LastAnalyzed: at})
	if err != nil {
		t.Fatalf("SetResume: %v", err)
	}
	if prev == nil || prev.Path != "old/key.pdf" || prev.Analysis.Score != 40 {
		t.Fatalf("unexpected previous %+v", prev)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoSetResumeRollsBackOnWriteFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT resume_path").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"resume_path", "resume_analysis", "last_analyzed"}))
	mock.ExpectExec("INSERT INTO users").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if _, err := (&PGRepo{DB: db}).SetResume(context.Background(), "u1", PermanentResume{Path: "k"}); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
