package escrow

import (
	"crypto/ed25519"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/token"
)

type ExchangeInstructionAccounts struct {
	Program                        ed25519.PublicKey
	Taker                          ed25519.PublicKey
	TakerSendingTokenAccount       ed25519.PublicKey
	TakerReceiveTokenAccount       ed25519.PublicKey
	CustodyTokenAccount            ed25519.PublicKey
	InitializerMain                ed25519.PublicKey
	InitializerReceiveTokenAccount ed25519.PublicKey
	EscrowAccount                  ed25519.PublicKey
	Authority                      ed25519.PublicKey
}

type ExchangeInstructionArgs struct {
	ExpectedCustodyAmount uint64
}

// NewExchangeInstruction completes a trade. The taker sends the expected
// amount of asset Y to the initializer and receives the full custody balance
// of asset X. The custody token account and escrow record are closed, with
// their lamports returned to the initializer.
func NewExchangeInstruction(
	accounts *ExchangeInstructionAccounts,
	args *ExchangeInstructionArgs,
) solana.Instruction {
	ix := Instruction{
		Command: CommandExchange,
		Amount:  args.ExpectedCustodyAmount,
	}

	return solana.Instruction{
		Program: accounts.Program,

		// Instruction args
		Data: ix.Marshal(),

		// Instruction accounts
		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.Taker,
				IsWritable: false,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.TakerSendingTokenAccount,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.TakerReceiveTokenAccount,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.CustodyTokenAccount,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.InitializerMain,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.InitializerReceiveTokenAccount,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.EscrowAccount,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  token.ProgramKey,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Authority,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}
