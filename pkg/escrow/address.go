package escrow

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"

	"github.com/code-payments/code-escrow/pkg/cache"
	"github.com/code-payments/code-escrow/pkg/solana"
)

const authorityCacheBudget = 1024

var (
	authorityPrefix = []byte("escrow")

	authorityCache = cache.New[*derivedAuthority]("escrow_authority", authorityCacheBudget)
)

type derivedAuthority struct {
	address ed25519.PublicKey
	bump    uint8
}

// GetAuthorityAddress derives the program address that takes ownership of
// custody token accounts, along with its canonical bump seed.
func GetAuthorityAddress(program ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	key := base58.Encode(program)
	if cached, ok := authorityCache.Retrieve(key); ok {
		return cloneKey(cached.address), cached.bump, nil
	}

	address, bump, err := solana.FindProgramAddressAndBump(
		program,
		authorityPrefix,
		program,
	)
	if err != nil {
		return nil, 0, err
	}

	// Concurrent derivations for the same program race to insert the same value
	_ = authorityCache.Insert(key, &derivedAuthority{address: cloneKey(address), bump: bump}, 1)

	return address, bump, nil
}

// VerifyAuthorityAddress reports whether address is the authority derived
// for program with the provided bump.
func VerifyAuthorityAddress(address, program ed25519.PublicKey, bump uint8) bool {
	return solana.VerifyProgramAddress(
		address,
		program,
		bump,
		authorityPrefix,
		program,
	)
}

func authoritySignerSeeds(program ed25519.PublicKey, bump uint8) [][]byte {
	return [][]byte{
		authorityPrefix,
		program,
		{bump},
	}
}

func cloneKey(key ed25519.PublicKey) ed25519.PublicKey {
	cloned := make(ed25519.PublicKey, len(key))
	copy(cloned, key)
	return cloned
}
