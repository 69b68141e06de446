package database

import (
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/trezcool/juku/core"
)

// postgres error codes: https://www.postgresql.org/docs/current/errcodes-appendix.html
var pqConstraintCodes = map[pq.ErrorCode]bool{
	"23505": true, // unique_violation
	"23503": true, // foreign_key_violation
	"23514": true, // check_violation
	"23502": true, // not_null_violation
}

// IsNoRows tells whether err is (or wraps) sql.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Classify maps driver errors to the core error taxonomy: constraint violations to core.ConstraintError,
// anything else to core.StoreError. "no rows" is left to the caller, it is not a failure.
func Classify(err error, msg string) error {
	if err == nil || IsNoRows(err) {
		return err
	}
	if core.IsConstraintError(err) || core.IsStoreError(err) {
		return errors.Wrap(err, msg)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqConstraintCodes[pqErr.Code] {
		return core.NewConstraintError(errors.Wrap(err, msg), pqErr.Constraint)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrConstraint {
		return core.NewConstraintError(errors.Wrap(err, msg), sqliteConstraint(liteErr))
	}

	return core.NewStoreError(err, msg)
}

// sqliteConstraint extracts the constraint kind from messages like "UNIQUE constraint failed: guardians.external_user_id".
func sqliteConstraint(err sqlite3.Error) string {
	msg := err.Error()
	if i := strings.Index(msg, " constraint failed"); i > 0 {
		return strings.ToLower(msg[:i])
	}
	return err.ExtendedCode.Error()
}

func quoteIdent(s string) string {
	return pq.QuoteIdentifier(s)
}

func quoteLiteral(s string) string {
	return pq.QuoteLiteral(s)
}
