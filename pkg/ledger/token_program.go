package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/system"
	"github.com/code-payments/code-escrow/pkg/solana/token"
)

// tokenProgram is the native fungible token program. It supports the subset
// of the token instruction set built by the token package, without multisig
// or delegation.
type tokenProgram struct {
	log *logrus.Entry
}

func newTokenProgram() Program {
	return &tokenProgram{
		log: logrus.StandardLogger().WithField("type", "ledger/token_program"),
	}
}

// Process implements Program.Process
func (p *tokenProgram) Process(_ context.Context, _ Invoker, programID ed25519.PublicKey, accounts []*AccountInfo, data []byte) error {
	ix := toInstruction(programID, accounts, data)

	cmd, err := token.GetCommand(ix)
	if err != nil {
		return token.ErrInvalidInstruction
	}

	switch cmd {
	case token.CommandInitializeMint:
		return p.initializeMint(ix, accounts)
	case token.CommandInitializeAccount:
		return p.initializeAccount(ix, accounts)
	case token.CommandTransfer:
		return p.transfer(ix, accounts)
	case token.CommandSetAuthority:
		return p.setAuthority(ix, accounts)
	case token.CommandMintTo:
		return p.mintTo(ix, accounts)
	case token.CommandCloseAccount:
		return p.closeAccount(ix, accounts)
	default:
		return token.ErrInvalidInstruction
	}
}

func (p *tokenProgram) initializeMint(ix solana.Instruction, accounts []*AccountInfo) error {
	if len(accounts) < 2 {
		return solana.InstructionErrorNotEnoughAccountKeys
	}

	decompiled, err := token.DecompileInitializeMint(ix)
	if err != nil {
		return errors.Wrap(token.ErrInvalidInstruction, err.Error())
	}

	mintInfo := accounts[0]

	var mint token.Mint
	if !mint.Unmarshal(mintInfo.Data) {
		return solana.InstructionErrorInvalidAccountData
	}
	if mint.IsInitialized {
		return token.ErrAlreadyInUse
	}

	rent, err := readRent(accounts[1])
	if err != nil {
		return err
	}
	if !rent.IsExempt(mintInfo.Lamports, len(mintInfo.Data)) {
		return token.ErrNotRentExempt
	}

	mint = token.Mint{
		MintAuthority:   decompiled.MintAuthority,
		Decimals:        decompiled.Decimals,
		IsInitialized:   true,
		FreezeAuthority: decompiled.FreezeAuthority,
	}
	copy(mintInfo.Data, mint.Marshal())

	p.log.WithField("mint", mintInfo.Address()).Trace("mint initialized")
	return nil
}

func (p *tokenProgram) initializeAccount(ix solana.Instruction, accounts []*AccountInfo) error {
	if len(accounts) < 4 {
		return solana.InstructionErrorNotEnoughAccountKeys
	}

	decompiled, err := token.DecompileInitializeAccount(ix)
	if err != nil {
		return errors.Wrap(token.ErrInvalidInstruction, err.Error())
	}

	accountInfo, mintInfo := accounts[0], accounts[1]

	var tokenAccount token.Account
	if !tokenAccount.Unmarshal(accountInfo.Data) {
		return solana.InstructionErrorInvalidAccountData
	}
	if tokenAccount.State != token.AccountStateUninitialized {
		return token.ErrAlreadyInUse
	}

	rent, err := readRent(accounts[3])
	if err != nil {
		return err
	}
	if !rent.IsExempt(accountInfo.Lamports, len(accountInfo.Data)) {
		return token.ErrNotRentExempt
	}

	var mint token.Mint
	if !mintInfo.IsOwnedBy(token.ProgramKey) || !mint.Unmarshal(mintInfo.Data) || !mint.IsInitialized {
		return token.ErrInvalidMint
	}

	tokenAccount = token.Account{
		Mint:  decompiled.Mint,
		Owner: decompiled.Owner,
		State: token.AccountStateInitialized,
	}
	copy(accountInfo.Data, tokenAccount.Marshal())

	p.log.WithFields(logrus.Fields{
		"account": accountInfo.Address(),
		"mint":    mintInfo.Address(),
	}).Trace("token account initialized")
	return nil
}

func (p *tokenProgram) transfer(ix solana.Instruction, accounts []*AccountInfo) error {
	if len(accounts) < 3 {
		return solana.InstructionErrorNotEnoughAccountKeys
	}

	decompiled, err := token.DecompileTransfer(ix)
	if err != nil {
		return errors.Wrap(token.ErrInvalidInstruction, err.Error())
	}

	sourceInfo, destInfo, authorityInfo := accounts[0], accounts[1], accounts[2]

	source, err := loadTokenAccount(sourceInfo)
	if err != nil {
		return err
	}
	dest, err := loadTokenAccount(destInfo)
	if err != nil {
		return err
	}

	if source.State == token.AccountStateFrozen || dest.State == token.AccountStateFrozen {
		return token.ErrAccountFrozen
	}
	if source.Amount < decompiled.Amount {
		return token.ErrInsufficientFunds
	}
	if !bytes.Equal(source.Mint, dest.Mint) {
		return token.ErrMintMismatch
	}

	if err := validateOwner(source.Owner, authorityInfo); err != nil {
		return err
	}

	// Self transfers are a no-op once validated
	if bytes.Equal(sourceInfo.PublicKey, destInfo.PublicKey) {
		return nil
	}

	if dest.Amount+decompiled.Amount < dest.Amount {
		return token.ErrOverflow
	}
	source.Amount -= decompiled.Amount
	dest.Amount += decompiled.Amount

	copy(sourceInfo.Data, source.Marshal())
	copy(destInfo.Data, dest.Marshal())

	p.log.WithFields(logrus.Fields{
		"source":      sourceInfo.Address(),
		"destination": destInfo.Address(),
		"amount":      decompiled.Amount,
	}).Trace("tokens transferred")
	return nil
}

func (p *tokenProgram) mintTo(ix solana.Instruction, accounts []*AccountInfo) error {
	if len(accounts) < 3 {
		return solana.InstructionErrorNotEnoughAccountKeys
	}

	decompiled, err := token.DecompileMintTo(ix)
	if err != nil {
		return errors.Wrap(token.ErrInvalidInstruction, err.Error())
	}

	mintInfo, destInfo, authorityInfo := accounts[0], accounts[1], accounts[2]

	dest, err := loadTokenAccount(destInfo)
	if err != nil {
		return err
	}
	if dest.State == token.AccountStateFrozen {
		return token.ErrAccountFrozen
	}
	if !bytes.Equal(dest.Mint, mintInfo.PublicKey) {
		return token.ErrMintMismatch
	}

	var mint token.Mint
	if !mintInfo.IsOwnedBy(token.ProgramKey) {
		return solana.InstructionErrorIncorrectProgramID
	}
	if !mint.Unmarshal(mintInfo.Data) || !mint.IsInitialized {
		return token.ErrUninitializedState
	}
	if len(mint.MintAuthority) == 0 {
		return token.ErrFixedSupply
	}
	if err := validateOwner(mint.MintAuthority, authorityInfo); err != nil {
		return err
	}

	if mint.Supply+decompiled.Amount < mint.Supply || dest.Amount+decompiled.Amount < dest.Amount {
		return token.ErrOverflow
	}
	mint.Supply += decompiled.Amount
	dest.Amount += decompiled.Amount

	copy(mintInfo.Data, mint.Marshal())
	copy(destInfo.Data, dest.Marshal())
	return nil
}

func (p *tokenProgram) setAuthority(ix solana.Instruction, accounts []*AccountInfo) error {
	if len(accounts) < 2 {
		return solana.InstructionErrorNotEnoughAccountKeys
	}

	decompiled, err := token.DecompileSetAuthority(ix)
	if err != nil {
		return errors.Wrap(token.ErrInvalidInstruction, err.Error())
	}

	targetInfo, authorityInfo := accounts[0], accounts[1]

	log := p.log.WithFields(logrus.Fields{
		"method":         "setAuthority",
		"account":        targetInfo.Address(),
		"authority_type": decompiled.Type,
	})

	if !targetInfo.IsOwnedBy(token.ProgramKey) {
		return solana.InstructionErrorIncorrectProgramID
	}

	switch len(targetInfo.Data) {
	case token.AccountSize:
		tokenAccount, err := loadTokenAccount(targetInfo)
		if err != nil {
			return err
		}
		if tokenAccount.State == token.AccountStateFrozen {
			return token.ErrAccountFrozen
		}

		switch decompiled.Type {
		case token.AuthorityTypeAccountHolder:
			if err := validateOwner(tokenAccount.Owner, authorityInfo); err != nil {
				return err
			}
			if len(decompiled.NewAuthority) == 0 {
				return token.ErrInvalidInstruction
			}

			tokenAccount.Owner = decompiled.NewAuthority
			tokenAccount.Delegate = nil
			tokenAccount.DelegatedAmount = 0
		case token.AuthorityTypeCloseAccount:
			current := tokenAccount.CloseAuthority
			if len(current) == 0 {
				current = tokenAccount.Owner
			}
			if err := validateOwner(current, authorityInfo); err != nil {
				return err
			}

			tokenAccount.CloseAuthority = decompiled.NewAuthority
		default:
			return token.ErrAuthorityTypeNotSupported
		}

		copy(targetInfo.Data, tokenAccount.Marshal())
	case token.MintSize:
		var mint token.Mint
		if !mint.Unmarshal(targetInfo.Data) || !mint.IsInitialized {
			return token.ErrUninitializedState
		}

		switch decompiled.Type {
		case token.AuthorityTypeMintTokens:
			if len(mint.MintAuthority) == 0 {
				return token.ErrFixedSupply
			}
			if err := validateOwner(mint.MintAuthority, authorityInfo); err != nil {
				return err
			}

			mint.MintAuthority = decompiled.NewAuthority
		case token.AuthorityTypeFreezeAccount:
			if len(mint.FreezeAuthority) == 0 {
				return token.ErrMintCannotFreeze
			}
			if err := validateOwner(mint.FreezeAuthority, authorityInfo); err != nil {
				return err
			}

			mint.FreezeAuthority = decompiled.NewAuthority
		default:
			return token.ErrAuthorityTypeNotSupported
		}

		copy(targetInfo.Data, mint.Marshal())
	default:
		return solana.InstructionErrorInvalidAccountData
	}

	log.Trace("authority updated")
	return nil
}

func (p *tokenProgram) closeAccount(ix solana.Instruction, accounts []*AccountInfo) error {
	if len(accounts) < 3 {
		return solana.InstructionErrorNotEnoughAccountKeys
	}

	if _, err := token.DecompileCloseAccount(ix); err != nil {
		return errors.Wrap(token.ErrInvalidInstruction, err.Error())
	}

	sourceInfo, destInfo, authorityInfo := accounts[0], accounts[1], accounts[2]
	if bytes.Equal(sourceInfo.PublicKey, destInfo.PublicKey) {
		return solana.InstructionErrorInvalidAccountData
	}

	source, err := loadTokenAccount(sourceInfo)
	if err != nil {
		return err
	}
	if source.IsNative == nil && source.Amount != 0 {
		return token.ErrNonNativeHasBalance
	}

	authority := source.CloseAuthority
	if len(authority) == 0 {
		authority = source.Owner
	}
	if err := validateOwner(authority, authorityInfo); err != nil {
		return err
	}

	if destInfo.Lamports+sourceInfo.Lamports < destInfo.Lamports {
		return token.ErrOverflow
	}
	destInfo.Lamports += sourceInfo.Lamports
	sourceInfo.Lamports = 0

	for i := range sourceInfo.Data {
		sourceInfo.Data[i] = 0
	}

	p.log.WithFields(logrus.Fields{
		"account":     sourceInfo.Address(),
		"destination": destInfo.Address(),
	}).Trace("token account closed")
	return nil
}

func loadTokenAccount(info *AccountInfo) (*token.Account, error) {
	if !info.IsOwnedBy(token.ProgramKey) {
		return nil, solana.InstructionErrorIncorrectProgramID
	}

	var tokenAccount token.Account
	if !tokenAccount.Unmarshal(info.Data) {
		return nil, solana.InstructionErrorInvalidAccountData
	}
	if tokenAccount.State == token.AccountStateUninitialized {
		return nil, token.ErrUninitializedState
	}
	return &tokenAccount, nil
}

func validateOwner(expected ed25519.PublicKey, authority *AccountInfo) error {
	if !bytes.Equal(expected, authority.PublicKey) {
		return token.ErrOwnerMismatch
	}
	if !authority.IsSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}
	return nil
}

func readRent(info *AccountInfo) (system.Rent, error) {
	var rent system.Rent
	if !bytes.Equal(info.PublicKey, system.RentSysVar) {
		return rent, solana.InstructionErrorInvalidArgument
	}
	if err := rent.Unmarshal(info.Data); err != nil {
		return rent, solana.InstructionErrorInvalidArgument
	}
	return rent, nil
}
