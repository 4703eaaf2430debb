package services

import "errors"

var (
	ErrInvalidBet        = errors.New("invalid bet")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrWagerInProgress   = errors.New("wager is still being settled")
	ErrSettlementFailed  = errors.New("failed to settle wager")
)
