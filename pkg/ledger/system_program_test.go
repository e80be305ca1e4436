package ledger

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/system"
	"github.com/code-payments/code-escrow/pkg/testutil"
)

func TestSystemProgram_CreateAccount(t *testing.T) {
	env := setup(t)

	funder := env.newFundedKeypair(t)
	created := testutil.GenerateSolanaKeypair(t)
	owner := testutil.GenerateSolanaKeys(t, 1)[0]

	require.NoError(t, env.submit(
		funder,
		[]ed25519.PrivateKey{created},
		system.CreateAccount(publicKey(funder), publicKey(created), owner, 1_000, 64),
	))

	acc, err := env.ledger.GetAccount(env.ctx, publicKey(created))
	require.NoError(t, err)
	assert.True(t, acc.IsOwnedBy(owner))
	assert.EqualValues(t, 1_000, acc.Lamports)
	assert.Equal(t, make([]byte, 64), acc.Data)
	assert.False(t, acc.Executable)
	assert.EqualValues(t, startingLamports-1_000, env.balance(t, publicKey(funder)))

	// The address is now in use
	err = env.submit(
		funder,
		[]ed25519.PrivateKey{created},
		system.CreateAccount(publicKey(funder), publicKey(created), owner, 1_000, 64),
	)
	requireCustomError(t, err, 0, system.ErrAccountAlreadyInUse)
}

func TestSystemProgram_CreateAccountFailures(t *testing.T) {
	env := setup(t)

	funder := env.newFundedKeypair(t)
	created := testutil.GenerateSolanaKeypair(t)
	owner := testutil.GenerateSolanaKeys(t, 1)[0]

	err := env.submit(
		funder,
		[]ed25519.PrivateKey{created},
		system.CreateAccount(publicKey(funder), publicKey(created), owner, startingLamports+1, 0),
	)
	requireCustomError(t, err, 0, system.ErrResultWithNegativeLamports)

	err = env.submit(
		funder,
		[]ed25519.PrivateKey{created},
		system.CreateAccount(publicKey(funder), publicKey(created), owner, 1, system.MaxPermittedDataLength+1),
	)
	requireCustomError(t, err, 0, system.ErrInvalidAccountDataLength)

	ix := system.CreateAccount(publicKey(funder), publicKey(created), owner, 1, 0)
	ix.Accounts[1].IsSigner = false
	err = env.submit(funder, nil, ix)
	requireInstructionError(t, err, 0, solana.InstructionErrorMissingRequiredSignature)

	_, err = env.ledger.GetAccount(env.ctx, publicKey(created))
	assert.Equal(t, ErrAccountNotFound, err)
	assert.EqualValues(t, startingLamports, env.balance(t, publicKey(funder)))
}

func TestSystemProgram_Transfer(t *testing.T) {
	env := setup(t)

	sender := env.newFundedKeypair(t)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	require.NoError(t, env.submit(sender, nil, system.Transfer(publicKey(sender), receiver, 10)))
	require.NoError(t, env.submit(sender, nil, system.Transfer(publicKey(sender), receiver, 15)))
	assert.EqualValues(t, 25, env.balance(t, receiver))

	err := env.submit(sender, nil, system.Transfer(publicKey(sender), receiver, startingLamports))
	requireCustomError(t, err, 0, system.ErrResultWithNegativeLamports)

	// Only the source account may authorize a transfer
	other := env.newFundedKeypair(t)
	ix := system.Transfer(publicKey(other), receiver, 10)
	ix.Accounts[0].IsSigner = false
	err = env.submit(sender, nil, ix)
	requireInstructionError(t, err, 0, solana.InstructionErrorMissingRequiredSignature)

	assert.EqualValues(t, 25, env.balance(t, receiver))
	assert.EqualValues(t, startingLamports, env.balance(t, publicKey(other)))
}

func TestSystemProgram_TransferFromProgramOwnedAccount(t *testing.T) {
	env := setup(t)

	payer := env.newFundedKeypair(t)
	source := testutil.GenerateSolanaKeypair(t)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	require.NoError(t, env.ledger.SetAccount(env.ctx, &Account{
		PublicKey: publicKey(source),
		Owner:     testutil.GenerateSolanaKeys(t, 1)[0],
		Lamports:  100,
	}))

	err := env.submit(payer, []ed25519.PrivateKey{source}, system.Transfer(publicKey(source), receiver, 10))
	requireInstructionError(t, err, 0, solana.InstructionErrorExternalAccountLamportSpend)
	assert.EqualValues(t, 100, env.balance(t, publicKey(source)))
}
