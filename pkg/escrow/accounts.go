package escrow

import (
	"github.com/code-payments/code-escrow/pkg/ledger"
)

// InitEscrowAccounts are the accounts an InitEscrow instruction operates on,
// in instruction order.
type InitEscrowAccounts struct {
	Initializer                    *ledger.AccountInfo
	CustodyTokenAccount            *ledger.AccountInfo
	InitializerReceiveTokenAccount *ledger.AccountInfo
	EscrowAccount                  *ledger.AccountInfo
	RentSysvar                     *ledger.AccountInfo
	TokenProgram                   *ledger.AccountInfo
}

func parseInitEscrowAccounts(accounts []*ledger.AccountInfo) (*InitEscrowAccounts, error) {
	if len(accounts) < 6 {
		return nil, ErrNotEnoughAccountKeys
	}

	return &InitEscrowAccounts{
		Initializer:                    accounts[0],
		CustodyTokenAccount:            accounts[1],
		InitializerReceiveTokenAccount: accounts[2],
		EscrowAccount:                  accounts[3],
		RentSysvar:                     accounts[4],
		TokenProgram:                   accounts[5],
	}, nil
}

// ExchangeAccounts are the accounts an Exchange instruction operates on, in
// instruction order.
type ExchangeAccounts struct {
	Taker                          *ledger.AccountInfo
	TakerSendingTokenAccount       *ledger.AccountInfo
	TakerReceiveTokenAccount       *ledger.AccountInfo
	CustodyTokenAccount            *ledger.AccountInfo
	InitializerMain                *ledger.AccountInfo
	InitializerReceiveTokenAccount *ledger.AccountInfo
	EscrowAccount                  *ledger.AccountInfo
	TokenProgram                   *ledger.AccountInfo
	Authority                      *ledger.AccountInfo
}

func parseExchangeAccounts(accounts []*ledger.AccountInfo) (*ExchangeAccounts, error) {
	if len(accounts) < 9 {
		return nil, ErrNotEnoughAccountKeys
	}

	return &ExchangeAccounts{
		Taker:                          accounts[0],
		TakerSendingTokenAccount:       accounts[1],
		TakerReceiveTokenAccount:       accounts[2],
		CustodyTokenAccount:            accounts[3],
		InitializerMain:                accounts[4],
		InitializerReceiveTokenAccount: accounts[5],
		EscrowAccount:                  accounts[6],
		TokenProgram:                   accounts[7],
		Authority:                      accounts[8],
	}, nil
}
