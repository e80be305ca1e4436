package ledger

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58"

	"github.com/code-payments/code-escrow/pkg/ledger/account"
	"github.com/code-payments/code-escrow/pkg/solana/system"
)

// Account is the state of a single address on the ledger.
type Account struct {
	PublicKey  ed25519.PublicKey
	Owner      ed25519.PublicKey
	Lamports   uint64
	Data       []byte
	Executable bool
}

// AccountInfo is an account as presented to a program, along with the
// privileges granted to it by the invoking instruction.
type AccountInfo struct {
	*Account

	IsSigner   bool
	IsWritable bool
}

// NewSystemAccount returns an empty account owned by the system program.
func NewSystemAccount(publicKey ed25519.PublicKey, lamports uint64) *Account {
	return &Account{
		PublicKey: publicKey,
		Owner:     system.SystemAccount,
		Lamports:  lamports,
	}
}

// Address returns the base58 encoded public key of the account.
func (a *Account) Address() string {
	return base58.Encode(a.PublicKey)
}

// IsOwnedBy reports whether program owns the account.
func (a *Account) IsOwnedBy(program ed25519.PublicKey) bool {
	return bytes.Equal(a.Owner, program)
}

func (a *Account) Clone() *Account {
	cloned := &Account{
		PublicKey:  make(ed25519.PublicKey, len(a.PublicKey)),
		Owner:      make(ed25519.PublicKey, len(a.Owner)),
		Lamports:   a.Lamports,
		Executable: a.Executable,
	}
	copy(cloned.PublicKey, a.PublicKey)
	copy(cloned.Owner, a.Owner)
	if a.Data != nil {
		cloned.Data = make([]byte, len(a.Data))
		copy(cloned.Data, a.Data)
	}
	return cloned
}

func (a *Account) toRecord(version uint64) *account.Record {
	return &account.Record{
		Address:    base58.Encode(a.PublicKey),
		Owner:      base58.Encode(a.Owner),
		Lamports:   a.Lamports,
		Data:       a.Data,
		Executable: a.Executable,
		Version:    version,
	}
}

func fromRecord(record *account.Record) (*Account, error) {
	publicKey, err := base58.Decode(record.Address)
	if err != nil {
		return nil, err
	}

	owner, err := base58.Decode(record.Owner)
	if err != nil {
		return nil, err
	}

	acc := &Account{
		PublicKey:  publicKey,
		Owner:      owner,
		Lamports:   record.Lamports,
		Executable: record.Executable,
	}
	if len(record.Data) > 0 {
		acc.Data = make([]byte, len(record.Data))
		copy(acc.Data, record.Data)
	}
	return acc, nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
