// Package repository defines the storage layer and the error values that
// are reused across repositories.  These sentinels let the service layer
// distinguish between failure scenarios without looking at driver
// errors: ErrNotFound for a missing row, ErrForbidden when the caller
// does not own the resource and ErrConflict for unique-key violations.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an insert violates a unique key, such as
// registering an email or username that is already taken.
var ErrConflict = errors.New("conflict")

// MySQL server error numbers the repositories translate.
const (
	errDupEntry        = 1062
	errNoReferencedRow = 1452
)

func mysqlErrNo(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicateKey(err error) bool { return mysqlErrNo(err) == errDupEntry }

func isMissingParent(err error) bool { return mysqlErrNo(err) == errNoReferencedRow }
