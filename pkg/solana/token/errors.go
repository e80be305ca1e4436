package token

import (
	"github.com/code-payments/code-escrow/pkg/solana"
)

// Error is a token program error.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/error.rs
type Error uint32

const (
	ErrNotRentExempt Error = iota
	ErrInsufficientFunds
	ErrInvalidMint
	ErrMintMismatch
	ErrOwnerMismatch
	ErrFixedSupply
	ErrAlreadyInUse
	ErrInvalidNumberOfProvidedSigners
	ErrInvalidNumberOfRequiredSigners
	ErrUninitializedState
	ErrNativeNotSupported
	ErrNonNativeHasBalance
	ErrInvalidInstruction
	ErrInvalidState
	ErrOverflow
	ErrAuthorityTypeNotSupported
	ErrMintCannotFreeze
	ErrAccountFrozen
	ErrMintDecimalsMismatch
)

var errorMessages = map[Error]string{
	ErrNotRentExempt:                  "lamport balance below rent-exempt threshold",
	ErrInsufficientFunds:              "insufficient funds",
	ErrInvalidMint:                    "invalid mint",
	ErrMintMismatch:                   "account not associated with this mint",
	ErrOwnerMismatch:                  "owner does not match",
	ErrFixedSupply:                    "fixed supply",
	ErrAlreadyInUse:                   "already in use",
	ErrInvalidNumberOfProvidedSigners: "invalid number of provided signers",
	ErrInvalidNumberOfRequiredSigners: "invalid number of required signers",
	ErrUninitializedState:             "state is uninitialized",
	ErrNativeNotSupported:             "instruction does not support native tokens",
	ErrNonNativeHasBalance:            "non-native account can only be closed if its balance is zero",
	ErrInvalidInstruction:             "invalid instruction",
	ErrInvalidState:                   "state is invalid for requested operation",
	ErrOverflow:                       "operation overflowed",
	ErrAuthorityTypeNotSupported:      "account does not support specified authority type",
	ErrMintCannotFreeze:               "this token mint cannot freeze accounts",
	ErrAccountFrozen:                  "account is frozen",
	ErrMintDecimalsMismatch:           "the provided decimals value different from the mint decimals",
}

func (e Error) Error() string {
	if msg, ok := errorMessages[e]; ok {
		return msg
	}
	return "unknown token program error"
}

func (e Error) ProgramError() error {
	return solana.CustomError(e)
}
