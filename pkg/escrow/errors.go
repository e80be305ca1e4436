package escrow

import (
	"github.com/code-payments/code-escrow/pkg/solana"
)

// Error is a failure reported by the escrow program.
//
// The first four kinds are specific to the program and are reported as custom
// program errors with codes 0 through 3. The remaining kinds are reported as
// the equivalent runtime instruction errors.
type Error uint32

const (
	ErrInvalidInstruction Error = iota
	ErrNotRentExempt
	ErrExpectedAmountMismatch
	ErrAmountOverflow

	ErrMissingRequiredSignature
	ErrIncorrectProgramId
	ErrAccountAlreadyInitialized
	ErrInvalidAccountData
	ErrNotEnoughAccountKeys
	ErrInvalidArgument
)

func (e Error) Error() string {
	switch e {
	case ErrInvalidInstruction:
		return "invalid instruction"
	case ErrNotRentExempt:
		return "rent is not exempt"
	case ErrExpectedAmountMismatch:
		return "expected amount mismatch"
	case ErrAmountOverflow:
		return "amount overflow"
	case ErrMissingRequiredSignature:
		return "missing required signature"
	case ErrIncorrectProgramId:
		return "incorrect program id"
	case ErrAccountAlreadyInitialized:
		return "account already initialized"
	case ErrInvalidAccountData:
		return "invalid account data"
	case ErrNotEnoughAccountKeys:
		return "not enough account keys"
	case ErrInvalidArgument:
		return "invalid argument"
	}
	return "unknown escrow error"
}

// ProgramError implements solana.ProgramError
func (e Error) ProgramError() error {
	switch e {
	case ErrInvalidInstruction, ErrNotRentExempt, ErrExpectedAmountMismatch, ErrAmountOverflow:
		return solana.CustomError(e)
	case ErrMissingRequiredSignature:
		return solana.InstructionErrorMissingRequiredSignature
	case ErrIncorrectProgramId:
		return solana.InstructionErrorIncorrectProgramID
	case ErrAccountAlreadyInitialized:
		return solana.InstructionErrorAccountAlreadyInitialized
	case ErrInvalidAccountData:
		return solana.InstructionErrorInvalidAccountData
	case ErrNotEnoughAccountKeys:
		return solana.InstructionErrorNotEnoughAccountKeys
	case ErrInvalidArgument:
		return solana.InstructionErrorInvalidArgument
	}
	return solana.InstructionErrorGenericError
}
