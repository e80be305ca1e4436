package ledger

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"

	"github.com/code-payments/code-escrow/pkg/solana"
)

// NativeLoader owns every program account deployed to the ledger.
var NativeLoader ed25519.PublicKey

func init() {
	var err error

	NativeLoader, err = base58.Decode("NativeLoader1111111111111111111111111111111")
	if err != nil {
		panic(err)
	}
}

// Program executes instructions addressed to a program ID.
//
// Accounts are presented in instruction order. Programs mutate the accounts
// they are given in place; the ledger validates the changes against the
// runtime rules once Process returns, and discards the whole transaction if
// Process fails.
type Program interface {
	Process(ctx context.Context, invoker Invoker, programID ed25519.PublicKey, accounts []*AccountInfo, data []byte) error
}

// ProgramFunc adapts a function to the Program interface.
type ProgramFunc func(ctx context.Context, invoker Invoker, programID ed25519.PublicKey, accounts []*AccountInfo, data []byte) error

// Process implements Program.Process
func (f ProgramFunc) Process(ctx context.Context, invoker Invoker, programID ed25519.PublicKey, accounts []*AccountInfo, data []byte) error {
	return f(ctx, invoker, programID, accounts, data)
}

// Invoker performs cross-program invocations on behalf of the running program.
type Invoker interface {
	// Invoke executes ix with the privileges the running program was given.
	Invoke(ctx context.Context, ix solana.Instruction) error

	// InvokeSigned is Invoke, additionally granting signer status to the
	// program addresses derived from each set of seeds and the running
	// program's ID.
	InvokeSigned(ctx context.Context, ix solana.Instruction, signerSeeds ...[][]byte) error
}

// toInstruction reassembles the instruction a program was invoked with.
func toInstruction(programID ed25519.PublicKey, accounts []*AccountInfo, data []byte) solana.Instruction {
	metas := make([]solana.AccountMeta, len(accounts))
	for i, info := range accounts {
		metas[i] = solana.AccountMeta{
			PublicKey:  info.PublicKey,
			IsSigner:   info.IsSigner,
			IsWritable: info.IsWritable,
		}
	}
	return solana.NewInstruction(programID, data, metas...)
}
