package ledger

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/system"
)

// systemProgram is the native program that creates accounts and moves
// lamports between system-owned accounts.
type systemProgram struct {
	log *logrus.Entry
}

func newSystemProgram() Program {
	return &systemProgram{
		log: logrus.StandardLogger().WithField("type", "ledger/system_program"),
	}
}

// Process implements Program.Process
func (p *systemProgram) Process(_ context.Context, _ Invoker, programID ed25519.PublicKey, accounts []*AccountInfo, data []byte) error {
	ix := toInstruction(programID, accounts, data)

	cmd, err := system.GetCommand(ix)
	if err != nil {
		return solana.InstructionErrorInvalidInstructionData
	}

	switch cmd {
	case system.CommandCreateAccount:
		return p.createAccount(ix, accounts)
	case system.CommandTransfer:
		return p.transfer(ix, accounts)
	default:
		return solana.InstructionErrorInvalidInstructionData
	}
}

func (p *systemProgram) createAccount(ix solana.Instruction, accounts []*AccountInfo) error {
	if len(accounts) < 2 {
		return solana.InstructionErrorNotEnoughAccountKeys
	}

	decompiled, err := system.DecompileCreateAccount(ix)
	if err != nil {
		return errors.Wrap(solana.InstructionErrorInvalidInstructionData, err.Error())
	}

	funder, created := accounts[0], accounts[1]

	log := p.log.WithFields(logrus.Fields{
		"method":   "createAccount",
		"funder":   funder.Address(),
		"account":  created.Address(),
		"lamports": decompiled.Lamports,
		"size":     decompiled.Size,
	})

	if !funder.IsSigner || !created.IsSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}

	if created.Lamports > 0 || len(created.Data) > 0 || !created.IsOwnedBy(system.SystemAccount) {
		log.Debug("account already in use")
		return system.ErrAccountAlreadyInUse
	}

	if decompiled.Size > system.MaxPermittedDataLength {
		return system.ErrInvalidAccountDataLength
	}

	if len(funder.Data) > 0 {
		return errors.Wrap(solana.InstructionErrorInvalidArgument, "funder must not carry data")
	}

	if funder.Lamports < decompiled.Lamports {
		log.WithField("balance", funder.Lamports).Debug("insufficient lamports")
		return system.ErrResultWithNegativeLamports
	}

	funder.Lamports -= decompiled.Lamports
	created.Lamports += decompiled.Lamports
	created.Data = make([]byte, decompiled.Size)
	created.Owner = decompiled.Owner

	log.Trace("account created")
	return nil
}

func (p *systemProgram) transfer(ix solana.Instruction, accounts []*AccountInfo) error {
	if len(accounts) < 2 {
		return solana.InstructionErrorNotEnoughAccountKeys
	}

	decompiled, err := system.DecompileTransfer(ix)
	if err != nil {
		return errors.Wrap(solana.InstructionErrorInvalidInstructionData, err.Error())
	}

	from, to := accounts[0], accounts[1]

	if !from.IsSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}

	if len(from.Data) > 0 {
		return errors.Wrap(solana.InstructionErrorInvalidArgument, "source must not carry data")
	}

	if from.Lamports < decompiled.Lamports {
		return system.ErrResultWithNegativeLamports
	}

	from.Lamports -= decompiled.Lamports
	if to.Lamports+decompiled.Lamports < to.Lamports {
		return solana.InstructionErrorArithmeticOverflow
	}
	to.Lamports += decompiled.Lamports

	return nil
}
