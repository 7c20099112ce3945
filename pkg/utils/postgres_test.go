package utils

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
)

// txRecorder is a driver stub recording transaction outcomes, so WithTx can be
// exercised without a database.
type txRecorder struct {
	commits   int
	rollbacks int
}

func (r *txRecorder) Open(string) (driver.Conn, error) { return &recConn{r: r}, nil }

type recConn struct{ r *txRecorder }

func (c *recConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (c *recConn) Close() error                        { return nil }
func (c *recConn) Begin() (driver.Tx, error)           { return &recTx{r: c.r}, nil }

type recTx struct{ r *txRecorder }

func (t *recTx) Commit() error   { t.r.commits++; return nil }
func (t *recTx) Rollback() error { t.r.rollbacks++; return nil }

func openRecorded(t *testing.T) (*sql.DB, *txRecorder) {
	t.Helper()
	rec := &txRecorder{}
	name := "txrecorder-" + t.Name()
	sql.Register(name, rec)
	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, rec
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db, rec := openRecorded(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if rec.commits != 1 || rec.rollbacks != 0 {
		t.Fatalf("commits = %d, rollbacks = %d", rec.commits, rec.rollbacks)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db, rec := openRecorded(t)
	boom := errors.New("boom")

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if rec.commits != 0 || rec.rollbacks != 1 {
		t.Fatalf("commits = %d, rollbacks = %d", rec.commits, rec.rollbacks)
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db, rec := openRecorded(t)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic to propagate")
		}
		if rec.commits != 0 || rec.rollbacks != 1 {
			t.Fatalf("commits = %d, rollbacks = %d", rec.commits, rec.rollbacks)
		}
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		panic("mid-tx failure")
	})
}
