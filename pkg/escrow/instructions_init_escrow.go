package escrow

import (
	"crypto/ed25519"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/system"
	"github.com/code-payments/code-escrow/pkg/solana/token"
)

type InitEscrowInstructionAccounts struct {
	Program                        ed25519.PublicKey
	Initializer                    ed25519.PublicKey
	CustodyTokenAccount            ed25519.PublicKey
	InitializerReceiveTokenAccount ed25519.PublicKey
	EscrowAccount                  ed25519.PublicKey
}

type InitEscrowInstructionArgs struct {
	ExpectedAmount uint64
}

// NewInitEscrowInstruction records a trade of the asset X held in the custody
// token account for ExpectedAmount of asset Y, and hands ownership of the
// custody token account to the program's authority address.
func NewInitEscrowInstruction(
	accounts *InitEscrowInstructionAccounts,
	args *InitEscrowInstructionArgs,
) solana.Instruction {
	ix := Instruction{
		Command: CommandInitEscrow,
		Amount:  args.ExpectedAmount,
	}

	return solana.Instruction{
		Program: accounts.Program,

		// Instruction args
		Data: ix.Marshal(),

		// Instruction accounts
		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.Initializer,
				IsWritable: false,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.CustodyTokenAccount,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.InitializerReceiveTokenAccount,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.EscrowAccount,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  system.RentSysVar,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  token.ProgramKey,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}
