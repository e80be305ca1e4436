package escrow

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-escrow/pkg/ledger"
	"github.com/code-payments/code-escrow/pkg/solana/token"
)

func (p *Program) processExchange(ctx context.Context, log *logrus.Entry, invoker ledger.Invoker, programID ed25519.PublicKey, accounts []*ledger.AccountInfo, expectedCustodyAmount uint64) error {
	parsed, err := parseExchangeAccounts(accounts)
	if err != nil {
		return err
	}

	if !parsed.Taker.IsSigner {
		return ErrMissingRequiredSignature
	}

	var custody token.Account
	if !custody.Unmarshal(parsed.CustodyTokenAccount.Data) || custody.State == token.AccountStateUninitialized {
		return ErrInvalidAccountData
	}

	authority, bump, err := GetAuthorityAddress(programID)
	if err != nil {
		return err
	}
	if !bytes.Equal(parsed.Authority.PublicKey, authority) {
		return ErrInvalidAccountData
	}

	log = log.WithFields(logrus.Fields{
		"escrow":  parsed.EscrowAccount.Address(),
		"taker":   parsed.Taker.Address(),
		"custody": parsed.CustodyTokenAccount.Address(),
	})

	log.WithField("custody_amount", custody.Amount).Trace("comparing expected amount against custody balance")
	if expectedCustodyAmount != custody.Amount {
		return ErrExpectedAmountMismatch
	}

	log.Trace("unpacking escrow account")
	var record EscrowAccount
	if err := record.Unmarshal(parsed.EscrowAccount.Data); err != nil {
		return err
	}
	if !record.IsInitialized {
		return ErrInvalidAccountData
	}
	if !record.Matches(
		parsed.InitializerMain.PublicKey,
		parsed.CustodyTokenAccount.PublicKey,
		parsed.InitializerReceiveTokenAccount.PublicKey,
	) {
		return ErrInvalidAccountData
	}

	if !bytes.Equal(parsed.TokenProgram.PublicKey, token.ProgramKey) {
		return ErrIncorrectProgramId
	}

	log.Trace("Calling token program to transfer asset Y to the initializer...")
	err = invoker.Invoke(ctx, token.Transfer(
		parsed.TakerSendingTokenAccount.PublicKey,
		parsed.InitializerReceiveTokenAccount.PublicKey,
		parsed.Taker.PublicKey,
		record.ExpectedAmount,
	))
	if err != nil {
		return err
	}

	signerSeeds := authoritySignerSeeds(programID, bump)

	log.Trace("Calling token program to transfer asset X to the taker...")
	err = invoker.InvokeSigned(ctx, token.Transfer(
		parsed.CustodyTokenAccount.PublicKey,
		parsed.TakerReceiveTokenAccount.PublicKey,
		authority,
		custody.Amount,
	), signerSeeds)
	if err != nil {
		return err
	}

	log.Trace("Calling token program to close the custody token account...")
	err = invoker.InvokeSigned(ctx, token.CloseAccount(
		parsed.CustodyTokenAccount.PublicKey,
		parsed.InitializerMain.PublicKey,
		authority,
	), signerSeeds)
	if err != nil {
		return err
	}

	log.Trace("closing escrow account")
	refund, err := closeEscrowAccount(parsed.InitializerMain, parsed.EscrowAccount)
	if err != nil {
		return err
	}

	log.WithField("refund", refund).Debug("escrow exchanged")
	recordEscrowExchangedEvent(ctx, parsed.EscrowAccount.PublicKey, parsed.Taker.PublicKey, custody.Amount, record.ExpectedAmount)

	return nil
}
