package escrow

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-escrow/pkg/ledger"
	"github.com/code-payments/code-escrow/pkg/solana/system"
	"github.com/code-payments/code-escrow/pkg/solana/token"
)

func (p *Program) processInitEscrow(ctx context.Context, log *logrus.Entry, invoker ledger.Invoker, programID ed25519.PublicKey, accounts []*ledger.AccountInfo, expectedAmount uint64) error {
	parsed, err := parseInitEscrowAccounts(accounts)
	if err != nil {
		return err
	}

	if !parsed.Initializer.IsSigner {
		return ErrMissingRequiredSignature
	}

	if !parsed.InitializerReceiveTokenAccount.IsOwnedBy(token.ProgramKey) {
		return ErrIncorrectProgramId
	}

	if p.conf.checkCustodyOwner.Get(ctx) && !parsed.CustodyTokenAccount.IsOwnedBy(token.ProgramKey) {
		return ErrIncorrectProgramId
	}

	if !bytes.Equal(parsed.RentSysvar.PublicKey, system.RentSysVar) {
		return ErrInvalidArgument
	}
	var rent system.Rent
	if err := rent.Unmarshal(parsed.RentSysvar.Data); err != nil {
		return ErrInvalidArgument
	}
	if !rent.IsExempt(parsed.EscrowAccount.Lamports, len(parsed.EscrowAccount.Data)) {
		return ErrNotRentExempt
	}

	var record EscrowAccount
	if err := record.Unmarshal(parsed.EscrowAccount.Data); err != nil {
		return err
	}
	if record.IsInitialized {
		return ErrAccountAlreadyInitialized
	}

	if !bytes.Equal(parsed.TokenProgram.PublicKey, token.ProgramKey) {
		return ErrIncorrectProgramId
	}

	record = EscrowAccount{
		IsInitialized:                  true,
		Initializer:                    parsed.Initializer.PublicKey,
		CustodyTokenAccount:            parsed.CustodyTokenAccount.PublicKey,
		InitializerReceiveTokenAccount: parsed.InitializerReceiveTokenAccount.PublicKey,
		ExpectedAmount:                 expectedAmount,
	}
	copy(parsed.EscrowAccount.Data, record.Marshal())

	authority, _, err := GetAuthorityAddress(programID)
	if err != nil {
		return err
	}

	log = log.WithFields(logrus.Fields{
		"escrow":      parsed.EscrowAccount.Address(),
		"initializer": parsed.Initializer.Address(),
		"custody":     parsed.CustodyTokenAccount.Address(),
	})

	log.Trace("Calling token program to transfer token account ownership...")
	err = invoker.Invoke(ctx, token.SetAuthority(
		parsed.CustodyTokenAccount.PublicKey,
		parsed.Initializer.PublicKey,
		authority,
		token.AuthorityTypeAccountHolder,
	))
	if err != nil {
		return err
	}

	log.Debug("escrow initialized")
	recordEscrowInitializedEvent(ctx, parsed.EscrowAccount.PublicKey, parsed.Initializer.PublicKey, expectedAmount)

	return nil
}
