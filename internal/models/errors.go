package models

import "errors"

var (
	// ErrNotFound is returned by stores when the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrLedgerConflict is returned when a ledger entry for the transaction already exists.
	ErrLedgerConflict = errors.New("ledger entry already exists")

	// ErrStatusConflict is returned when a conditional status transition finds the
	// record no longer pending.
	ErrStatusConflict = errors.New("deposit request is no longer pending")

	// ErrAlreadyMonitored is returned by monitoring stores when the transaction is already tracked.
	ErrAlreadyMonitored = errors.New("transaction already monitored")
)
