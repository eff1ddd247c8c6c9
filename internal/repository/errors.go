// Package repository contains the MySQL implementations of the scheduler's
// room directory and reservation store.  Missing rows are reported as
// scheduler.ErrNotFound so callers never see sql.ErrNoRows, and lock
// contention that survives the bounded retry loop is reported as
// scheduler.ErrBusy.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/room-reservation/internal/scheduler"
)

// MySQL server error numbers treated as transient contention.
const (
	errLockDeadlock    = 1213 // ER_LOCK_DEADLOCK
	errLockWaitTimeout = 1205 // ER_LOCK_WAIT_TIMEOUT
)

// isTransient reports whether err is a deadlock or lock wait timeout that
// is worth retrying in a fresh transaction.
func isTransient(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == errLockDeadlock || me.Number == errLockWaitTimeout
	}
	return false
}

// notFound maps sql.ErrNoRows to scheduler.ErrNotFound for the named entity.
func notFound(err error, entity string, id uint64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", entity, id, scheduler.ErrNotFound)
	}
	return fmt.Errorf("load %s %d: %w", entity, id, err)
}
