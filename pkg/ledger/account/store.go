package account

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrStaleVersion    = errors.New("account version is stale")
)

// Record is the persisted state of a single ledger account. Addresses are
// base58 encoded.
type Record struct {
	Id uint64

	Address    string
	Owner      string
	Lamports   uint64
	Data       []byte
	Executable bool

	// Version is incremented on every commit that touches the account. New
	// accounts start at version 0.
	Version uint64
}

type Store interface {
	// Get gets an account by its address
	Get(ctx context.Context, address string) (*Record, error)

	// GetAllByOwner gets all accounts owned by a program, ordered by address.
	//
	// Returns ErrAccountNotFound if no accounts are owned by the program.
	GetAllByOwner(ctx context.Context, owner string) ([]*Record, error)

	// Commit atomically writes the upserted records and removes the deleted
	// ones. Every record must carry the version it was loaded at, otherwise
	// ErrStaleVersion is returned and nothing is written. Deleted records
	// must have been loaded from the store. On success, the versions of the
	// upserted records are incremented.
	Commit(ctx context.Context, upserts []*Record, deletes []*Record) error
}

func (r *Record) Validate() error {
	if len(r.Address) == 0 {
		return errors.New("address is required")
	}

	if len(r.Owner) == 0 {
		return errors.New("owner is required")
	}

	return nil
}

func (r *Record) Clone() Record {
	return Record{
		Id:         r.Id,
		Address:    r.Address,
		Owner:      r.Owner,
		Lamports:   r.Lamports,
		Data:       cloneBytes(r.Data),
		Executable: r.Executable,
		Version:    r.Version,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id
	dst.Address = r.Address
	dst.Owner = r.Owner
	dst.Lamports = r.Lamports
	dst.Data = cloneBytes(r.Data)
	dst.Executable = r.Executable
	dst.Version = r.Version
}

// Equals reports whether two records hold the same account state, ignoring
// storage metadata.
func (r *Record) Equals(other *Record) bool {
	return r.Address == other.Address &&
		r.Owner == other.Owner &&
		r.Lamports == other.Lamports &&
		bytes.Equal(r.Data, other.Data) &&
		r.Executable == other.Executable
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	cloned := make([]byte, len(b))
	copy(cloned, b)
	return cloned
}
