package ledger

import (
	"context"
	"crypto/ed25519"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-escrow/pkg/ledger/account"
	"github.com/code-payments/code-escrow/pkg/ledger/account/memory"
	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/system"
	"github.com/code-payments/code-escrow/pkg/solana/token"
	"github.com/code-payments/code-escrow/pkg/testutil"
)

const startingLamports = 1_000_000_000

type testEnv struct {
	ctx    context.Context
	store  account.Store
	ledger *Ledger
	rent   system.Rent
}

func setup(t *testing.T) *testEnv {
	ctx := context.Background()
	store := memory.New()

	l, err := New(ctx, store, WithTestOverrides(&TestOverrides{}))
	require.NoError(t, err)

	rent, err := l.Rent(ctx)
	require.NoError(t, err)

	return &testEnv{
		ctx:    ctx,
		store:  store,
		ledger: l,
		rent:   rent,
	}
}

func (e *testEnv) fund(t *testing.T, key ed25519.PublicKey) {
	require.NoError(t, e.ledger.Airdrop(e.ctx, key, startingLamports))
}

func (e *testEnv) newFundedKeypair(t *testing.T) ed25519.PrivateKey {
	key := testutil.GenerateSolanaKeypair(t)
	e.fund(t, publicKey(key))
	return key
}

func (e *testEnv) submit(payer ed25519.PrivateKey, signers []ed25519.PrivateKey, instructions ...solana.Instruction) error {
	txn := solana.NewTransaction(publicKey(payer), instructions...)
	if err := txn.Sign(append([]ed25519.PrivateKey{payer}, signers...)...); err != nil {
		return err
	}
	return e.ledger.Submit(e.ctx, &txn)
}

func (e *testEnv) balance(t *testing.T, key ed25519.PublicKey) uint64 {
	balance, err := e.ledger.GetBalance(e.ctx, key)
	require.NoError(t, err)
	return balance
}

func publicKey(key ed25519.PrivateKey) ed25519.PublicKey {
	return key.Public().(ed25519.PublicKey)
}

func requireInstructionError(t *testing.T, err error, index int, expected solana.InstructionErrorKey) {
	require.Error(t, err)

	var txErr *solana.TransactionError
	require.ErrorAs(t, err, &txErr)
	require.Equal(t, solana.TransactionErrorInstructionError, txErr.ErrorKey())

	ie := txErr.InstructionError()
	require.NotNil(t, ie)
	assert.Equal(t, index, ie.Index)
	assert.Equal(t, expected, ie.ErrorKey())
}

func requireCustomError(t *testing.T, err error, index int, expected solana.ProgramError) {
	requireInstructionError(t, err, index, solana.InstructionErrorCustom)

	var txErr *solana.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, expected.ProgramError(), *txErr.InstructionError().CustomError())
	assert.ErrorIs(t, err, expected)
}

func requireTransactionError(t *testing.T, err error, expected solana.TransactionErrorKey) {
	require.Error(t, err)

	var txErr *solana.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, expected, txErr.ErrorKey())
	assert.Nil(t, txErr.InstructionError())
}

func TestLedger_Genesis(t *testing.T) {
	env := setup(t)

	for _, program := range []ed25519.PublicKey{system.SystemAccount, token.ProgramKey} {
		acc, err := env.ledger.GetAccount(env.ctx, program)
		require.NoError(t, err)
		assert.True(t, acc.Executable)
		assert.True(t, acc.IsOwnedBy(NativeLoader))
	}

	acc, err := env.ledger.GetAccount(env.ctx, system.RentSysVar)
	require.NoError(t, err)
	assert.True(t, acc.IsOwnedBy(system.SysvarOwner))
	assert.Equal(t, system.DefaultRent(), env.rent)

	// Restarting against the same store keeps the existing state
	_, err = New(env.ctx, env.store, WithTestOverrides(&TestOverrides{}))
	require.NoError(t, err)
}

func TestLedger_RentOverrides(t *testing.T) {
	ctx := context.Background()

	expected := system.Rent{
		LamportsPerByteYear: 10,
		ExemptionThreshold:  1,
		BurnPercent:         10,
	}

	l, err := New(ctx, memory.New(), WithTestOverrides(&TestOverrides{Rent: expected}))
	require.NoError(t, err)

	actual, err := l.Rent(ctx)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
}

func TestLedger_Transfer(t *testing.T) {
	env := setup(t)

	sender := env.newFundedKeypair(t)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	require.NoError(t, env.submit(sender, nil, system.Transfer(publicKey(sender), receiver, 100)))

	assert.EqualValues(t, startingLamports-100, env.balance(t, publicKey(sender)))
	assert.EqualValues(t, 100, env.balance(t, receiver))

	acc, err := env.ledger.GetAccount(env.ctx, receiver)
	require.NoError(t, err)
	assert.True(t, acc.IsOwnedBy(system.SystemAccount))
}

func TestLedger_FailedTransactionIsAtomic(t *testing.T) {
	env := setup(t)

	sender := env.newFundedKeypair(t)
	receivers := testutil.GenerateSolanaKeys(t, 2)

	err := env.submit(
		sender,
		nil,
		system.Transfer(publicKey(sender), receivers[0], 100),
		system.Transfer(publicKey(sender), receivers[1], startingLamports),
	)
	requireCustomError(t, err, 1, system.ErrResultWithNegativeLamports)

	assert.EqualValues(t, startingLamports, env.balance(t, publicKey(sender)))
	assert.EqualValues(t, 0, env.balance(t, receivers[0]))
	assert.EqualValues(t, 0, env.balance(t, receivers[1]))

	_, err = env.ledger.GetAccount(env.ctx, receivers[0])
	assert.Equal(t, ErrAccountNotFound, err)
}

func TestLedger_SanitizeFailure(t *testing.T) {
	env := setup(t)

	sender := env.newFundedKeypair(t)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	txn := solana.NewTransaction(publicKey(sender), system.Transfer(publicKey(sender), receiver, 100))
	txn.Message.Instructions[0].ProgramIndex = byte(len(txn.Message.Accounts))
	require.NoError(t, txn.Sign(sender))

	requireTransactionError(t, env.ledger.Submit(env.ctx, &txn), solana.TransactionErrorSanitizeFailure)
	assert.EqualValues(t, startingLamports, env.balance(t, publicKey(sender)))
}

func TestLedger_SignatureFailure(t *testing.T) {
	env := setup(t)

	sender := env.newFundedKeypair(t)
	other := testutil.GenerateSolanaKeypair(t)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	txn := solana.NewTransaction(publicKey(sender), system.Transfer(publicKey(sender), receiver, 100))
	requireTransactionError(t, env.ledger.Submit(env.ctx, &txn), solana.TransactionErrorSignatureFailure)

	txn = solana.NewTransaction(publicKey(sender), system.Transfer(publicKey(sender), receiver, 100))
	require.NoError(t, txn.Sign(sender))
	txn.Message.Instructions[0].Data[len(txn.Message.Instructions[0].Data)-1] ^= 0xff
	requireTransactionError(t, env.ledger.Submit(env.ctx, &txn), solana.TransactionErrorSignatureFailure)

	require.Error(t, env.submit(sender, []ed25519.PrivateKey{other}, system.Transfer(publicKey(sender), receiver, 100)))

	assert.EqualValues(t, startingLamports, env.balance(t, publicKey(sender)))
}

func TestLedger_UnknownProgram(t *testing.T) {
	env := setup(t)

	payer := env.newFundedKeypair(t)
	unknown := testutil.GenerateSolanaKeys(t, 1)[0]

	err := env.submit(payer, nil, solana.NewInstruction(unknown, []byte{0}))
	requireTransactionError(t, err, solana.TransactionErrorProgramAccountNotFound)

	// Existing accounts that are not programs cannot be executed
	env.fund(t, unknown)
	err = env.submit(payer, nil, solana.NewInstruction(unknown, []byte{0}))
	requireTransactionError(t, err, solana.TransactionErrorInvalidProgramForExecution)
}

func TestLedger_Deploy(t *testing.T) {
	env := setup(t)

	programID := testutil.GenerateSolanaKeys(t, 1)[0]
	var calls int
	program := ProgramFunc(func(_ context.Context, _ Invoker, _ ed25519.PublicKey, _ []*AccountInfo, _ []byte) error {
		calls++
		return nil
	})

	require.NoError(t, env.ledger.Deploy(env.ctx, programID, program))
	assert.Equal(t, ErrProgramAlreadyDeployed, env.ledger.Deploy(env.ctx, programID, program))
	assert.Equal(t, ErrProgramAlreadyDeployed, env.ledger.Deploy(env.ctx, token.ProgramKey, program))

	acc, err := env.ledger.GetAccount(env.ctx, programID)
	require.NoError(t, err)
	assert.True(t, acc.Executable)

	payer := env.newFundedKeypair(t)
	require.NoError(t, env.submit(payer, nil, solana.NewInstruction(programID, nil)))
	assert.Equal(t, 1, calls)

	funded := testutil.GenerateSolanaKeys(t, 1)[0]
	env.fund(t, funded)
	assert.Error(t, env.ledger.Deploy(env.ctx, funded, program))
	assert.Error(t, env.ledger.Deploy(env.ctx, []byte{1, 2, 3}, program))
}

func TestLedger_ZeroLamportAccountsAreRemoved(t *testing.T) {
	env := setup(t)

	sender := env.newFundedKeypair(t)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	require.NoError(t, env.submit(
		sender,
		nil,
		system.Transfer(publicKey(sender), receiver, startingLamports),
	))

	_, err := env.ledger.GetAccount(env.ctx, publicKey(sender))
	assert.Equal(t, ErrAccountNotFound, err)
	assert.EqualValues(t, 0, env.balance(t, publicKey(sender)))
	assert.EqualValues(t, startingLamports, env.balance(t, receiver))
}

func TestLedger_SetAccountAndGetProgramAccounts(t *testing.T) {
	env := setup(t)

	owner := testutil.GenerateSolanaKeys(t, 1)[0]

	accounts, err := env.ledger.GetProgramAccounts(env.ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	keys := testutil.GenerateSolanaKeys(t, 3)
	for i, key := range keys {
		require.NoError(t, env.ledger.SetAccount(env.ctx, &Account{
			PublicKey: key,
			Owner:     owner,
			Lamports:  uint64(i + 1),
			Data:      []byte{byte(i)},
		}))
	}

	accounts, err = env.ledger.GetProgramAccounts(env.ctx, owner)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	for _, acc := range accounts {
		assert.True(t, acc.IsOwnedBy(owner))
		assert.Len(t, acc.Data, 1)
	}

	assert.Error(t, env.ledger.SetAccount(env.ctx, &Account{
		PublicKey:  keys[0],
		Owner:      owner,
		Lamports:   1,
		Executable: true,
	}))
	assert.Error(t, env.ledger.SetAccount(env.ctx, &Account{
		PublicKey: token.ProgramKey,
		Owner:     owner,
		Lamports:  1,
	}))
	assert.Error(t, env.ledger.SetAccount(env.ctx, &Account{
		PublicKey: []byte{1},
		Owner:     owner,
		Lamports:  1,
	}))
}

func TestLedger_ConcurrentSubmits(t *testing.T) {
	env := setup(t)

	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	const senders = 16
	keys := make([]ed25519.PrivateKey, senders)
	for i := range keys {
		keys[i] = env.newFundedKeypair(t)
	}

	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(sender ed25519.PrivateKey) {
			defer wg.Done()

			for i := 0; i < 10; i++ {
				assert.NoError(t, env.submit(sender, nil, system.Transfer(publicKey(sender), receiver, 1)))
			}
		}(key)
	}
	wg.Wait()

	assert.EqualValues(t, senders*10, env.balance(t, receiver))
	for _, key := range keys {
		assert.EqualValues(t, startingLamports-10, env.balance(t, publicKey(key)))
	}
}

// conflictingStore fails the next conflicts commits with a version conflict,
// as if another writer had committed first.
type conflictingStore struct {
	account.Store

	conflicts atomic.Int32
	commits   atomic.Int32
}

func (s *conflictingStore) Commit(ctx context.Context, upserts []*account.Record, deletes []*account.Record) error {
	s.commits.Add(1)
	if s.conflicts.Add(-1) >= 0 {
		return account.ErrStaleVersion
	}
	return s.Store.Commit(ctx, upserts, deletes)
}

func TestLedger_CommitRetriesVersionConflicts(t *testing.T) {
	ctx := context.Background()
	store := &conflictingStore{Store: memory.New()}

	l, err := New(ctx, store, WithTestOverrides(&TestOverrides{}))
	require.NoError(t, err)

	sender := testutil.GenerateSolanaKeypair(t)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]
	require.NoError(t, l.Airdrop(ctx, publicKey(sender), startingLamports))

	transfer := func(lamports uint64) error {
		txn := solana.NewTransaction(publicKey(sender), system.Transfer(publicKey(sender), receiver, lamports))
		require.NoError(t, txn.Sign(sender))
		return l.Submit(ctx, &txn)
	}

	// Conflicts within the attempt limit are absorbed
	store.commits.Store(0)
	store.conflicts.Store(defaultMaxCommitAttempts - 1)
	require.NoError(t, transfer(100))
	assert.EqualValues(t, defaultMaxCommitAttempts, store.commits.Load())

	balance, err := l.GetBalance(ctx, receiver)
	require.NoError(t, err)
	assert.EqualValues(t, 100, balance)

	// Persistent conflicts surface after the last attempt without writing
	store.commits.Store(0)
	store.conflicts.Store(defaultMaxCommitAttempts)
	assert.ErrorIs(t, transfer(200), account.ErrStaleVersion)
	assert.EqualValues(t, defaultMaxCommitAttempts, store.commits.Load())

	balance, err = l.GetBalance(ctx, receiver)
	require.NoError(t, err)
	assert.EqualValues(t, 100, balance)
}

func TestLedger_SubmitRaw(t *testing.T) {
	env := setup(t)

	sender := env.newFundedKeypair(t)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	txn := solana.NewTransaction(publicKey(sender), system.Transfer(publicKey(sender), receiver, 100))
	require.NoError(t, txn.Sign(sender))

	require.NoError(t, env.ledger.SubmitRaw(env.ctx, txn.Marshal()))
	assert.EqualValues(t, 100, env.balance(t, receiver))

	// Truncated and non-canonical encodings never reach execution
	raw := txn.Marshal()
	requireTransactionError(t, env.ledger.SubmitRaw(env.ctx, raw[:len(raw)-1]), solana.TransactionErrorSanitizeFailure)
	requireTransactionError(t, env.ledger.SubmitRaw(env.ctx, append([]byte{0x81, 0x00}, raw[1:]...)), solana.TransactionErrorSanitizeFailure)
	requireTransactionError(t, env.ledger.SubmitRaw(env.ctx, nil), solana.TransactionErrorSanitizeFailure)
	requireTransactionError(t, env.ledger.SubmitRaw(env.ctx, make([]byte, solana.MaxTransactionSize+1)), solana.TransactionErrorSanitizeFailure)

	// No signatures, header of zeros, no accounts, zero blockhash, no instructions
	unsigned := append([]byte{0, 0, 0, 0, 0}, make([]byte, 32)...)
	unsigned = append(unsigned, 0)
	assert.NotPanics(t, func() {
		requireTransactionError(t, env.ledger.SubmitRaw(env.ctx, unsigned), solana.TransactionErrorSanitizeFailure)
	})
	assert.NotPanics(t, func() {
		requireTransactionError(t, env.ledger.Submit(env.ctx, &solana.Transaction{}), solana.TransactionErrorSanitizeFailure)
	})

	assert.EqualValues(t, 100, env.balance(t, receiver))
}
