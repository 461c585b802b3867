package repo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shaiso/bqflow/internal/domain"
)

type execCall struct {
	sql  string
	args []any
}

// fakeDB записывает Exec. updated задаёт число строк, которое вернёт UPDATE.
type fakeDB struct {
	mu        sync.Mutex
	calls     []execCall
	updated   int
	insertErr error
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.calls = append(db.calls, execCall{sql: sql, args: args})

	stmt := strings.TrimSpace(sql)
	switch {
	case strings.HasPrefix(stmt, "UPDATE"):
		if db.updated == 0 {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		return pgconn.NewCommandTag("UPDATE 1"), nil
	case strings.HasPrefix(stmt, "INSERT INTO runs") && db.insertErr != nil:
		return pgconn.CommandTag{}, db.insertErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (db *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (db *fakeDB) statements() []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]string, len(db.calls))
	for i, c := range db.calls {
		out[i] = strings.Fields(c.sql)[0] + " " + strings.Fields(c.sql)[2]
	}
	return out
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(db.calls) != 1 {
		t.Fatalf("expected 1 exec, got %d", len(db.calls))
	}
	if len(db.calls[0].args) != 0 {
		t.Errorf("schema must be executed without arguments, got %v", db.calls[0].args)
	}
	for _, table := range []string{"runs", "task_reports"} {
		if !strings.Contains(db.calls[0].sql, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("schema does not create table %s", table)
		}
	}
}

func TestRunRepo_UpdateNotFound(t *testing.T) {
	db := &fakeDB{}
	repo := NewRunRepo(db)

	err := repo.Update(context.Background(), domain.NewRun("wf.yaml", "main"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRunRepo_CreateConflict(t *testing.T) {
	db := &fakeDB{insertErr: &pgconn.PgError{Code: "23505"}}
	repo := NewRunRepo(db)

	err := repo.Create(context.Background(), domain.NewRun("wf.yaml", "main"))
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestReportRepo_Create(t *testing.T) {
	db := &fakeDB{}
	repo := NewReportRepo(db)
	run := domain.NewRun("wf.yaml", "main")

	report := domain.NewFailedReport(domain.Path{"load", "users"}, errors.New("boom"))
	if err := repo.Create(context.Background(), run.ID, report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	args := db.calls[0].args
	if len(args) != 6 {
		t.Fatalf("expected 6 args, got %d", len(args))
	}
	if path, ok := args[1].([]string); !ok || strings.Join(path, "/") != "load/users" {
		t.Errorf("expected path [load users], got %#v", args[1])
	}
	if args[4] != "FAILED" {
		t.Errorf("expected status FAILED, got %v", args[4])
	}
	if msg, ok := args[5].(*string); !ok || *msg != "boom" {
		t.Errorf("expected error boom, got %#v", args[5])
	}
}

func TestRecorder_Lifecycle(t *testing.T) {
	db := &fakeDB{updated: 1}
	rec := NewRecorder(db, nil)
	ctx := context.Background()

	run := domain.NewRun("wf.yaml", "main")
	run.MarkRunning()

	if err := rec.OnRunStarted(ctx, run); err != nil {
		t.Fatalf("run started: %v", err)
	}
	report := domain.NewTaskReport(domain.Path{"a"}, &domain.JobStats{BytesBilled: 10})
	if err := rec.OnTaskReport(ctx, run, report); err != nil {
		t.Fatalf("task report: %v", err)
	}
	run.MarkSucceeded()
	if err := rec.OnRunFinished(ctx, run, []domain.TaskReport{report}); err != nil {
		t.Fatalf("run finished: %v", err)
	}

	got := strings.Join(db.statements(), ", ")
	want := "INSERT runs, INSERT task_reports, UPDATE SET"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRecorder_FinishedWithoutStart(t *testing.T) {
	db := &fakeDB{}
	rec := NewRecorder(db, nil)

	run := domain.NewRun("wf.yaml", "main")
	run.MarkFailed("unknown template")

	if err := rec.OnRunFinished(context.Background(), run, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := strings.Join(db.statements(), ", ")
	if got != "UPDATE SET, INSERT runs" {
		t.Errorf("expected update then insert, got %q", got)
	}
}

func TestRecorder_StartedTwice(t *testing.T) {
	db := &fakeDB{updated: 1, insertErr: &pgconn.PgError{Code: "23505"}}
	rec := NewRecorder(db, nil)

	if err := rec.OnRunStarted(context.Background(), domain.NewRun("wf.yaml", "main")); err != nil {
		t.Fatalf("expected existing run to be updated, got %v", err)
	}
}
