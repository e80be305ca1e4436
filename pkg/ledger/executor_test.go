package ledger

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/system"
	"github.com/code-payments/code-escrow/pkg/testutil"
)

// deployTestProgram deploys a program whose behaviour is defined by process.
func (e *testEnv) deployTestProgram(t *testing.T, process ProgramFunc) ed25519.PublicKey {
	programID := testutil.GenerateSolanaKeys(t, 1)[0]
	require.NoError(t, e.ledger.Deploy(e.ctx, programID, process))
	return programID
}

// createOwnedAccount stores an account owned by program outside of any
// transaction.
func (e *testEnv) createOwnedAccount(t *testing.T, program ed25519.PublicKey, lamports uint64, data []byte) ed25519.PublicKey {
	key := testutil.GenerateSolanaKeys(t, 1)[0]
	require.NoError(t, e.ledger.SetAccount(e.ctx, &Account{
		PublicKey: key,
		Owner:     program,
		Lamports:  lamports,
		Data:      data,
	}))
	return key
}

func TestExecutor_OwnedAccountChanges(t *testing.T) {
	env := setup(t)

	programID := env.deployTestProgram(t, func(_ context.Context, _ Invoker, _ ed25519.PublicKey, accounts []*AccountInfo, _ []byte) error {
		accounts[0].Data[0]++
		accounts[0].Lamports -= 10
		accounts[1].Lamports += 10
		return nil
	})

	owned := env.createOwnedAccount(t, programID, 100, []byte{0})
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]
	payer := env.newFundedKeypair(t)

	require.NoError(t, env.submit(payer, nil, solana.NewInstruction(
		programID,
		nil,
		solana.NewAccountMeta(owned, false),
		solana.NewAccountMeta(receiver, false),
	)))

	acc, err := env.ledger.GetAccount(env.ctx, owned)
	require.NoError(t, err)
	assert.EqualValues(t, 90, acc.Lamports)
	assert.Equal(t, []byte{1}, acc.Data)
	assert.EqualValues(t, 10, env.balance(t, receiver))
}

func TestExecutor_RuntimeChecks(t *testing.T) {
	for _, tc := range []struct {
		name     string
		process  func(accounts []*AccountInfo) error
		writable bool
		owned    bool
		expected solana.InstructionErrorKey
	}{
		{
			name: "external data modified",
			process: func(accounts []*AccountInfo) error {
				accounts[0].Data[0]++
				return nil
			},
			writable: true,
			expected: solana.InstructionErrorExternalAccountDataModified,
		},
		{
			name: "readonly data modified",
			process: func(accounts []*AccountInfo) error {
				accounts[0].Data[0]++
				return nil
			},
			owned:    true,
			expected: solana.InstructionErrorReadonlyDataModified,
		},
		{
			name: "external lamport spend",
			process: func(accounts []*AccountInfo) error {
				accounts[0].Lamports--
				accounts[1].Lamports++
				return nil
			},
			writable: true,
			expected: solana.InstructionErrorExternalAccountLamportSpend,
		},
		{
			name: "readonly lamport change",
			process: func(accounts []*AccountInfo) error {
				accounts[0].Lamports--
				accounts[1].Lamports++
				return nil
			},
			owned:    true,
			expected: solana.InstructionErrorReadonlyLamportChange,
		},
		{
			name: "unbalanced",
			process: func(accounts []*AccountInfo) error {
				accounts[0].Lamports++
				return nil
			},
			writable: true,
			owned:    true,
			expected: solana.InstructionErrorUnbalancedInstruction,
		},
		{
			name: "modified owner",
			process: func(accounts []*AccountInfo) error {
				accounts[0].Owner = accounts[1].PublicKey
				return nil
			},
			writable: true,
			expected: solana.InstructionErrorModifiedProgramID,
		},
		{
			name: "executable modified",
			process: func(accounts []*AccountInfo) error {
				accounts[0].Executable = true
				return nil
			},
			writable: true,
			owned:    true,
			expected: solana.InstructionErrorExecutableModified,
		},
		{
			name: "program failure",
			process: func(_ []*AccountInfo) error {
				return errors.New("failure")
			},
			writable: true,
			owned:    true,
			expected: solana.InstructionErrorGenericError,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := setup(t)

			programID := env.deployTestProgram(t, func(_ context.Context, _ Invoker, _ ed25519.PublicKey, accounts []*AccountInfo, _ []byte) error {
				return tc.process(accounts)
			})

			owner := system.SystemAccount
			if tc.owned {
				owner = programID
			}
			target := env.createOwnedAccount(t, owner, 100, []byte{0})
			other := env.createOwnedAccount(t, programID, 100, nil)
			payer := env.newFundedKeypair(t)

			targetMeta := solana.NewReadonlyAccountMeta(target, false)
			if tc.writable {
				targetMeta = solana.NewAccountMeta(target, false)
			}

			err := env.submit(payer, nil, solana.NewInstruction(
				programID,
				nil,
				targetMeta,
				solana.NewAccountMeta(other, false),
			))
			requireInstructionError(t, err, 0, tc.expected)

			acc, err := env.ledger.GetAccount(env.ctx, target)
			require.NoError(t, err)
			assert.EqualValues(t, 100, acc.Lamports)
			assert.Equal(t, []byte{0}, acc.Data)
			assert.True(t, acc.IsOwnedBy(owner))
		})
	}
}

func TestExecutor_InvokeSigned(t *testing.T) {
	env := setup(t)

	var seeds [][]byte
	var signWithSeeds bool
	programID := env.deployTestProgram(t, func(ctx context.Context, invoker Invoker, _ ed25519.PublicKey, accounts []*AccountInfo, _ []byte) error {
		ix := system.Transfer(accounts[0].PublicKey, accounts[1].PublicKey, 10)
		if !signWithSeeds {
			return invoker.Invoke(ctx, ix)
		}
		return invoker.InvokeSigned(ctx, ix, seeds)
	})

	vault, bump, err := solana.FindProgramAddressAndBump(programID, []byte("vault"))
	require.NoError(t, err)
	seeds = [][]byte{[]byte("vault"), {bump}}
	env.fund(t, vault)

	receiver := testutil.GenerateSolanaKeys(t, 1)[0]
	payer := env.newFundedKeypair(t)

	ix := solana.NewInstruction(
		programID,
		nil,
		solana.NewAccountMeta(vault, false),
		solana.NewAccountMeta(receiver, false),
		solana.NewReadonlyAccountMeta(system.SystemAccount, false),
	)

	err = env.submit(payer, nil, ix)
	requireInstructionError(t, err, 0, solana.InstructionErrorPrivilegeEscalation)

	signWithSeeds = true
	require.NoError(t, env.submit(payer, nil, ix))
	assert.EqualValues(t, startingLamports-10, env.balance(t, vault))
	assert.EqualValues(t, 10, env.balance(t, receiver))
}

func TestExecutor_InvokeValidation(t *testing.T) {
	env := setup(t)

	unregistered := env.createOwnedAccount(t, NativeLoader, 1, nil)

	var mode string
	programID := env.deployTestProgram(t, func(ctx context.Context, invoker Invoker, _ ed25519.PublicKey, accounts []*AccountInfo, _ []byte) error {
		switch mode {
		case "missing program":
			return invoker.Invoke(ctx, system.Transfer(accounts[0].PublicKey, accounts[1].PublicKey, 1))
		case "missing account":
			stranger := make(ed25519.PublicKey, ed25519.PublicKeySize)
			stranger[0] = 1
			return invoker.Invoke(ctx, system.Transfer(accounts[0].PublicKey, stranger, 1))
		case "writable escalation":
			return invoker.Invoke(ctx, system.Transfer(accounts[0].PublicKey, accounts[2].PublicKey, 1))
		case "unsupported program":
			return invoker.Invoke(ctx, solana.NewInstruction(accounts[3].PublicKey, nil))
		case "invalid seeds":
			return invoker.InvokeSigned(ctx, system.Transfer(accounts[0].PublicKey, accounts[1].PublicKey, 1), [][]byte{make([]byte, 33)})
		}
		return nil
	})

	payer := env.newFundedKeypair(t)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]
	readonly := testutil.GenerateSolanaKeys(t, 1)[0]

	accountsWithSystem := []solana.AccountMeta{
		solana.NewAccountMeta(publicKey(payer), true),
		solana.NewAccountMeta(receiver, false),
		solana.NewReadonlyAccountMeta(readonly, false),
		solana.NewReadonlyAccountMeta(unregistered, false),
		solana.NewReadonlyAccountMeta(system.SystemAccount, false),
	}

	for _, tc := range []struct {
		mode     string
		accounts []solana.AccountMeta
		expected solana.InstructionErrorKey
	}{
		{"missing program", accountsWithSystem[:4], solana.InstructionErrorMissingAccount},
		{"missing account", accountsWithSystem, solana.InstructionErrorMissingAccount},
		{"writable escalation", accountsWithSystem, solana.InstructionErrorPrivilegeEscalation},
		{"unsupported program", accountsWithSystem, solana.InstructionErrorUnsupportedProgramID},
		{"invalid seeds", accountsWithSystem, solana.InstructionErrorInvalidSeeds},
	} {
		mode = tc.mode

		err := env.submit(payer, nil, solana.NewInstruction(programID, nil, tc.accounts...))
		requireInstructionError(t, err, 0, tc.expected)
	}

	mode = ""
	require.NoError(t, env.submit(payer, nil, solana.NewInstruction(programID, nil, accountsWithSystem...)))
	assert.EqualValues(t, startingLamports, env.balance(t, publicKey(payer)))
}

func TestExecutor_InvocationDepth(t *testing.T) {
	env := setup(t)

	var depth int
	programID := env.deployTestProgram(t, func(ctx context.Context, invoker Invoker, programID ed25519.PublicKey, accounts []*AccountInfo, _ []byte) error {
		depth++
		return invoker.Invoke(ctx, toInstruction(programID, accounts, nil))
	})

	payer := env.newFundedKeypair(t)
	err := env.submit(payer, nil, solana.NewInstruction(
		programID,
		nil,
		solana.NewReadonlyAccountMeta(programID, false),
	))
	requireInstructionError(t, err, 0, solana.InstructionErrorCallDepth)
	assert.Equal(t, maxInvocationDepth, depth)
}

func TestExecutor_Reentrancy(t *testing.T) {
	env := setup(t)

	var first, second ed25519.PublicKey
	first = env.deployTestProgram(t, func(ctx context.Context, invoker Invoker, _ ed25519.PublicKey, accounts []*AccountInfo, data []byte) error {
		if len(data) > 0 {
			return nil
		}
		return invoker.Invoke(ctx, toInstruction(second, accounts, nil))
	})
	second = env.deployTestProgram(t, func(ctx context.Context, invoker Invoker, _ ed25519.PublicKey, accounts []*AccountInfo, _ []byte) error {
		return invoker.Invoke(ctx, toInstruction(first, accounts, []byte{1}))
	})

	payer := env.newFundedKeypair(t)
	err := env.submit(payer, nil, solana.NewInstruction(
		first,
		nil,
		solana.NewReadonlyAccountMeta(first, false),
		solana.NewReadonlyAccountMeta(second, false),
	))
	requireInstructionError(t, err, 0, solana.InstructionErrorReentrancyNotAllowed)
}
