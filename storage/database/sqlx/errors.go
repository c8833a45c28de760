package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/syllabus/core"
)

// trapErr maps "no rows" to `notFound`, and the errors of an unreachable database to core.ErrRepositoryUnavailable.
func trapErr(err error, notFound error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	if isUnavailable(err) {
		return errors.Wrapf(core.ErrRepositoryUnavailable, "%s: %v", msg, err)
	}
	return errors.Wrap(err, msg)
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", // connection exception
			"53", // insufficient resources
			"57": // operator intervention (query_canceled, admin_shutdown, ...)
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
