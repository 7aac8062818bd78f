package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/casbytes/lms-sub000/core"
)

// conn is embedded by the transactional repositories. exec is the DB itself or the running *sqlx.Tx.
type conn struct {
	db   core.DB
	exec core.DBExecutor
	inTx bool
}

func newConn(db core.DB) conn {
	return conn{db: db, exec: db}
}

func (c conn) runInTx(ctx context.Context, fn func(tx conn) error) error {
	if c.inTx {
		return fn(c)
	}
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(conn{db: c.db, exec: tx, inTx: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back transaction: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// trapNoRows maps sql.ErrNoRows to notFound.
func trapNoRows(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func nullTime(t time.Time) null.Time {
	return null.NewTime(t.UTC(), !t.IsZero())
}

// expectOne returns notFound when an UPDATE or DELETE matched no row.
func expectOne(res sql.Result, notFound error, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
