package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-academy/core"
)

// postgres error codes
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqInvalidTextRepr     = "22P02"
)

// conn runs queries on the DB, or on the transaction it is bound to.
type conn struct {
	db core.DB
	tx core.DBTransactor
}

func (c conn) exec() core.DBExecutor {
	if c.tx != nil {
		return c.tx
	}
	return c.db
}

// atomic runs fn in a transaction, committed when fn succeeds. Nested calls join the running transaction.
func (c conn) atomic(ctx context.Context, fn func(tx conn) error) error {
	if c.tx != nil {
		return fn(c)
	}
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(conn{db: c.db, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return core.NewShutdownError(fmt.Sprintf("rolling back transaction: %v (after: %v)", rbErr, err))
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// trapNoRowsErr maps missing rows to notFound. Malformed ids cannot match any row either.
func trapNoRowsErr(err, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	if isInvalidID(err) {
		return notFound
	}
	return err
}

// isInvalidID reports whether err comes from a value that is not a valid uuid.
func isInvalidID(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == pqInvalidTextRepr
}

// trapConstraintErr maps constraint violations to domain errors.
// uniques maps unique constraint names to the error returned when they are violated.
func trapConstraintErr(err error, uniques map[string]error) error {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		if e, ok := uniques[pqErr.Constraint]; ok {
			return e
		}
	case pqForeignKeyViolation:
		return parentNotFound(pqErr)
	}
	return err
}

// parentNotFound builds the error of a foreign key violation, whose detail reads like
// `Key (book_id)=(123) is not present in table "book".`
func parentNotFound(pqErr *pq.Error) error {
	entity := strings.TrimSuffix(strings.TrimPrefix(pqErr.Constraint, pqErr.Table+"_"), "_id_fkey")
	var id string
	if i := strings.Index(pqErr.Detail, ")=("); i >= 0 {
		id = pqErr.Detail[i+3:]
		if j := strings.Index(id, ")"); j >= 0 {
			id = id[:j]
		}
	}
	return core.NewParentNotFoundError(entity, id)
}

// orderBy builds an ORDER BY clause from the allowed columns only. tieBreaker is always appended.
func orderBy(ordering []core.DBOrdering, columns map[string]string, tieBreaker string) string {
	clauses := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if col, ok := columns[ord.Field]; ok {
			clauses = append(clauses, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	clauses = append(clauses, tieBreaker)
	return " ORDER BY " + strings.Join(clauses, ", ")
}

func paginate(page core.Pagination) string {
	var clause string
	if page.Limit > 0 {
		clause += fmt.Sprintf(" LIMIT %d", page.Limit)
	}
	if page.Skip > 0 {
		clause += fmt.Sprintf(" OFFSET %d", page.Skip)
	}
	return clause
}

// whereClause accumulates filter conditions and their positional args.
type whereClause struct {
	conds []string
	args  []interface{}
}

// add appends cond, where every "?" stands for arg.
func (w *whereClause) add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
