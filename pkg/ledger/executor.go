package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"math/bits"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/code-escrow/pkg/solana"
)

const maxInvocationDepth = 4

// executor runs a single top-level instruction and any cross-program
// invocations it makes.
type executor struct {
	ledger *Ledger
	frames []*frame
}

// frame is one program invocation along with the account state it started
// from.
type frame struct {
	programID ed25519.PublicKey
	accounts  []*AccountInfo
	pre       []snapshot
}

type snapshot struct {
	account    *Account
	isWritable bool

	owner      ed25519.PublicKey
	lamports   uint64
	data       []byte
	executable bool
}

func (e *executor) process(ctx context.Context, programID ed25519.PublicKey, accounts []*AccountInfo, data []byte) error {
	if len(e.frames) >= maxInvocationDepth {
		return solana.InstructionErrorCallDepth
	}

	// A program may only appear again on the stack by calling itself
	if n := len(e.frames); n > 0 && !bytes.Equal(e.frames[n-1].programID, programID) {
		for _, f := range e.frames {
			if bytes.Equal(f.programID, programID) {
				return solana.InstructionErrorReentrancyNotAllowed
			}
		}
	}

	program := e.ledger.getProgram(programID)
	if program == nil {
		return solana.InstructionErrorUnsupportedProgramID
	}

	f := newFrame(programID, accounts)

	e.frames = append(e.frames, f)
	err := program.Process(ctx, &invoker{executor: e, frame: f}, programID, accounts, data)
	e.frames = e.frames[:len(e.frames)-1]

	if err != nil {
		return canonicalize(err)
	}
	return f.verify()
}

func newFrame(programID ed25519.PublicKey, accounts []*AccountInfo) *frame {
	f := &frame{
		programID: programID,
		accounts:  accounts,
	}
	f.refresh()
	return f
}

// refresh re-captures the state of the frame's accounts, accepting every
// change made so far.
func (f *frame) refresh() {
	f.pre = f.pre[:0]

	for _, info := range f.accounts {
		var found bool
		for i := range f.pre {
			if f.pre[i].account == info.Account {
				f.pre[i].isWritable = f.pre[i].isWritable || info.IsWritable
				found = true
				break
			}
		}
		if found {
			continue
		}

		s := snapshot{
			account:    info.Account,
			isWritable: info.IsWritable,
			owner:      make(ed25519.PublicKey, len(info.Owner)),
			lamports:   info.Lamports,
			executable: info.Executable,
		}
		copy(s.owner, info.Owner)
		if info.Data != nil {
			s.data = make([]byte, len(info.Data))
			copy(s.data, info.Data)
		}
		f.pre = append(f.pre, s)
	}
}

// verify checks the changes made within the frame against the account
// ownership and privilege rules.
func (f *frame) verify() error {
	var preHi, preLo, postHi, postLo, carry uint64

	for _, s := range f.pre {
		acc := s.account
		isOwner := bytes.Equal(s.owner, f.programID)

		if !bytes.Equal(s.owner, acc.Owner) {
			if !s.isWritable || !isOwner || s.executable || !isZeroed(acc.Data) {
				return errors.Wrap(solana.InstructionErrorModifiedProgramID, acc.Address())
			}
		}

		if s.executable != acc.Executable {
			return errors.Wrap(solana.InstructionErrorExecutableModified, acc.Address())
		}

		if s.lamports != acc.Lamports {
			if !s.isWritable {
				return errors.Wrap(solana.InstructionErrorReadonlyLamportChange, acc.Address())
			}
			if acc.Lamports < s.lamports && !isOwner {
				return errors.Wrap(solana.InstructionErrorExternalAccountLamportSpend, acc.Address())
			}
		}

		if !bytes.Equal(s.data, acc.Data) {
			if !s.isWritable {
				return errors.Wrap(solana.InstructionErrorReadonlyDataModified, acc.Address())
			}
			if !isOwner {
				return errors.Wrap(solana.InstructionErrorExternalAccountDataModified, acc.Address())
			}
		}

		preLo, carry = bits.Add64(preLo, s.lamports, 0)
		preHi += carry
		postLo, carry = bits.Add64(postLo, acc.Lamports, 0)
		postHi += carry
	}

	if preHi != postHi || preLo != postLo {
		return solana.InstructionErrorUnbalancedInstruction
	}
	return nil
}

// privileges returns the merged privileges the frame holds over key.
func (f *frame) privileges(key ed25519.PublicKey) (info *AccountInfo, isSigner, isWritable bool) {
	for _, candidate := range f.accounts {
		if !bytes.Equal(candidate.PublicKey, key) {
			continue
		}

		info = candidate
		isSigner = isSigner || candidate.IsSigner
		isWritable = isWritable || candidate.IsWritable
	}
	return info, isSigner, isWritable
}

type invoker struct {
	executor *executor
	frame    *frame
}

// Invoke implements Invoker.Invoke
func (i *invoker) Invoke(ctx context.Context, ix solana.Instruction) error {
	return i.InvokeSigned(ctx, ix)
}

// InvokeSigned implements Invoker.InvokeSigned
func (i *invoker) InvokeSigned(ctx context.Context, ix solana.Instruction, signerSeeds ...[][]byte) error {
	caller := i.frame

	signers := make([]ed25519.PublicKey, 0, len(signerSeeds))
	for _, seeds := range signerSeeds {
		address, err := solana.CreateProgramAddress(caller.programID, seeds...)
		if err != nil {
			return errors.Wrap(solana.InstructionErrorInvalidSeeds, err.Error())
		}
		signers = append(signers, address)
	}

	if info, _, _ := caller.privileges(ix.Program); info == nil {
		return errors.Wrapf(solana.InstructionErrorMissingAccount, "program %s", base58.Encode(ix.Program))
	}

	accounts := make([]*AccountInfo, len(ix.Accounts))
	for j, meta := range ix.Accounts {
		info, isSigner, isWritable := caller.privileges(meta.PublicKey)
		if info == nil {
			return errors.Wrapf(solana.InstructionErrorMissingAccount, "account %s", base58.Encode(meta.PublicKey))
		}

		if meta.IsWritable && !isWritable {
			return errors.Wrapf(solana.InstructionErrorPrivilegeEscalation, "writable %s", base58.Encode(meta.PublicKey))
		}
		if meta.IsSigner && !isSigner && !containsKey(signers, meta.PublicKey) {
			return errors.Wrapf(solana.InstructionErrorPrivilegeEscalation, "signer %s", base58.Encode(meta.PublicKey))
		}

		accounts[j] = &AccountInfo{
			Account:    info.Account,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
		}
	}

	// Changes made by the caller so far must be valid before the callee
	// observes them
	if err := caller.verify(); err != nil {
		return err
	}

	if err := i.executor.process(ctx, ix.Program, accounts, ix.Data); err != nil {
		return err
	}

	caller.refresh()
	return nil
}

func containsKey(keys []ed25519.PublicKey, key ed25519.PublicKey) bool {
	for _, candidate := range keys {
		if bytes.Equal(candidate, key) {
			return true
		}
	}
	return false
}

// programFailure is an error returned by a program that has no runtime
// error key of its own.
type programFailure struct {
	err error
}

func (e *programFailure) Error() string {
	return e.err.Error()
}

func (e *programFailure) Unwrap() error {
	return e.err
}

// ProgramError implements solana.ProgramError
func (e *programFailure) ProgramError() error {
	return solana.InstructionErrorGenericError
}

func canonicalize(err error) error {
	var pe solana.ProgramError
	var key solana.InstructionErrorKey
	var custom solana.CustomError
	if errors.As(err, &pe) || errors.As(err, &key) || errors.As(err, &custom) {
		return err
	}
	return &programFailure{err: err}
}
