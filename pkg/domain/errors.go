package domain

import "errors"

var (
	ErrInsufficientFunds    = errors.New("account balance does not cover this debit amount")
	ErrNotFound             = errors.New("account not found")
	ErrAccountExists        = errors.New("account already exists")
	ErrIncorrectCredentials = errors.New("incorrect credentials")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrSameAccount          = errors.New("cannot transfer to the same account")
	ErrLoanNotQualified     = errors.New("no deposit of at least 10% of the requested loan")
	ErrNoActiveSession      = errors.New("no active session")
)
