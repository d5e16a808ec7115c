// Package repository implements the durable auction ledger on MySQL.
// Repositories expose *Tx methods that run inside a caller-owned
// transaction; the Ledger type owns transaction boundaries and the
// row-level critical section the bidding core requires.
package repository

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/campusbid/auction-service/internal/auction"
)

// MySQL error numbers that mean the row lock could not be taken: lock
// wait timeout and deadlock victim.  Both leave no partial state and
// are surfaced as a retryable conflict.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// translateLockErr maps driver-level contention failures onto the
// domain's ErrConflict; anything else passes through untouched.
func translateLockErr(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		if me.Number == mysqlErrLockWaitTimeout || me.Number == mysqlErrDeadlock {
			return auction.ErrConflict
		}
	}
	return err
}

// translateBudgetErr maps the expiry of a mutation's own lock budget
// onto ErrConflict.  The budget is shorter than MySQL's lock wait
// timeout, so a contended row usually burns the whole budget and
// surfaces here as context.DeadlineExceeded rather than error 1205.
// When the caller's context is already done the deadline was theirs,
// not contention, and the error passes through.
func translateBudgetErr(parent context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return auction.ErrConflict
	}
	return err
}
