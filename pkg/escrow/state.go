package escrow

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/code-payments/code-escrow/pkg/solana/binary"
)

const EscrowAccountSize = (1 + // is_initialized
	ed25519.PublicKeySize + // initializer
	ed25519.PublicKeySize + // custody token account
	ed25519.PublicKeySize + // initializer receive token account
	8) // expected amount

// EscrowAccount is the record an initializer leaves behind describing an
// open trade.
type EscrowAccount struct {
	IsInitialized                  bool
	Initializer                    ed25519.PublicKey
	CustodyTokenAccount            ed25519.PublicKey
	InitializerReceiveTokenAccount ed25519.PublicKey
	ExpectedAmount                 uint64
}

func (a *EscrowAccount) Marshal() []byte {
	data := make([]byte, EscrowAccountSize)

	var offset int
	binary.PutBool(data[offset:], a.IsInitialized, &offset)
	binary.PutKey32(data[offset:], a.Initializer, &offset)
	binary.PutKey32(data[offset:], a.CustodyTokenAccount, &offset)
	binary.PutKey32(data[offset:], a.InitializerReceiveTokenAccount, &offset)
	binary.PutUint64(data[offset:], a.ExpectedAmount, &offset)

	return data
}

// Unmarshal decodes a record without requiring it to be initialized. Data of
// the wrong length, or an initialized flag other than 0 or 1, fails with
// ErrInvalidAccountData.
func (a *EscrowAccount) Unmarshal(data []byte) error {
	if len(data) != EscrowAccountSize {
		return ErrInvalidAccountData
	}

	var offset int
	if err := binary.GetBool(data[offset:], &a.IsInitialized, &offset); err != nil {
		return ErrInvalidAccountData
	}
	binary.GetKey32(data[offset:], &a.Initializer, &offset)
	binary.GetKey32(data[offset:], &a.CustodyTokenAccount, &offset)
	binary.GetKey32(data[offset:], &a.InitializerReceiveTokenAccount, &offset)
	binary.GetUint64(data[offset:], &a.ExpectedAmount, &offset)

	return nil
}

// Matches reports whether the record describes the trade made up of the
// provided initializer, custody and receive accounts.
func (a *EscrowAccount) Matches(initializer, custody, initializerReceive ed25519.PublicKey) bool {
	return bytes.Equal(a.Initializer, initializer) &&
		bytes.Equal(a.CustodyTokenAccount, custody) &&
		bytes.Equal(a.InitializerReceiveTokenAccount, initializerReceive)
}

func (a *EscrowAccount) String() string {
	return fmt.Sprintf(
		"EscrowAccount{is_initialized=%t,initializer=%s,custody=%s,initializer_receive=%s,expected_amount=%d}",
		a.IsInitialized,
		base58.Encode(a.Initializer),
		base58.Encode(a.CustodyTokenAccount),
		base58.Encode(a.InitializerReceiveTokenAccount),
		a.ExpectedAmount,
	)
}
