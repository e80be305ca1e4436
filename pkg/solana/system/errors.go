package system

import (
	"github.com/code-payments/code-escrow/pkg/solana"
)

// Error is a system program error.
//
// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/system_instruction.rs#L18
type Error uint32

const (
	ErrAccountAlreadyInUse Error = iota
	ErrResultWithNegativeLamports
	ErrInvalidProgramId
	ErrInvalidAccountDataLength
	ErrMaxSeedLengthExceeded
	ErrAddressWithSeedMismatch
)

func (e Error) Error() string {
	switch e {
	case ErrAccountAlreadyInUse:
		return "an account with the same address already exists"
	case ErrResultWithNegativeLamports:
		return "account does not have enough lamports to perform the operation"
	case ErrInvalidProgramId:
		return "cannot assign account to this program id"
	case ErrInvalidAccountDataLength:
		return "cannot allocate account data of this length"
	case ErrMaxSeedLengthExceeded:
		return "length of requested seed is too long"
	case ErrAddressWithSeedMismatch:
		return "provided address does not match addressed derived from seed"
	}
	return "unknown system program error"
}

func (e Error) ProgramError() error {
	return solana.CustomError(e)
}
