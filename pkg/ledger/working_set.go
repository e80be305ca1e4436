package ledger

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/code-escrow/pkg/ledger/account"
)

// workingSet holds the mutable copies of every account a transaction may
// touch, along with the committed records they were loaded from.
type workingSet struct {
	order    []string
	accounts map[string]*Account
	original map[string]*account.Record
}

func (l *Ledger) loadWorkingSet(ctx context.Context, keys []ed25519.PublicKey) (*workingSet, error) {
	ws := &workingSet{
		accounts: make(map[string]*Account, len(keys)),
		original: make(map[string]*account.Record, len(keys)),
	}

	for _, key := range keys {
		address := base58.Encode(key)
		if _, ok := ws.accounts[address]; ok {
			continue
		}

		record, err := l.store.Get(ctx, address)
		switch err {
		case nil:
			acc, err := fromRecord(record)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid stored account %s", address)
			}

			ws.accounts[address] = acc
			ws.original[address] = record
		case account.ErrAccountNotFound:
			ws.accounts[address] = NewSystemAccount(key, 0)
		default:
			return nil, errors.Wrapf(err, "error loading account %s", address)
		}

		ws.order = append(ws.order, address)
	}

	return ws, nil
}

func (ws *workingSet) get(key ed25519.PublicKey) *Account {
	return ws.accounts[base58.Encode(key)]
}

func (ws *workingSet) exists(key ed25519.PublicKey) bool {
	_, ok := ws.original[base58.Encode(key)]
	return ok
}

// commit writes every changed account to the store. Accounts left with no
// lamports are removed.
func (ws *workingSet) commit(ctx context.Context, store account.Store) error {
	var upserts, deletes []*account.Record
	for _, address := range ws.order {
		acc := ws.accounts[address]
		original, existed := ws.original[address]

		if acc.Lamports == 0 && !acc.Executable {
			if existed {
				deletes = append(deletes, original)
			}
			continue
		}

		var version uint64
		if existed {
			version = original.Version
		}

		record := acc.toRecord(version)
		if existed && original.Equals(record) {
			continue
		}
		upserts = append(upserts, record)
	}

	if len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}
	return store.Commit(ctx, upserts, deletes)
}
