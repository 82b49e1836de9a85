// Package sqlxrepos implements the repositories over postgres with sqlx.
package sqlxrepos

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

const pqUniqueViolation = "23505"

func getExec(repoExec core.DBExecutor, svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repoExec
}

// trapNoRowsErr maps psql "no rows" to the domain's not-found error.
func trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// uniqueViolation reports whether err is a unique-constraint violation on the
// named constraint.
func uniqueViolation(err error, constraint string) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == pqUniqueViolation && pqErr.Constraint == constraint
}
