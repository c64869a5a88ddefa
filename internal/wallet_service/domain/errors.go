package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrPaymentNotFound     = errors.New("payment intent not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidEntryType    = errors.New("invalid ledger entry type")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrGatewayUnavailable  = errors.New("payment initiation failed")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrInvalidTransition   = errors.New("invalid payment status transition")
	ErrDuplicateReference  = errors.New("ledger entry already exists for reference")
	ErrInvalidPayload      = errors.New("invalid webhook payload")
)
