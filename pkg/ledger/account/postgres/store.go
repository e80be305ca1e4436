package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/code-escrow/pkg/ledger/account"
	pgutil "github.com/code-payments/code-escrow/pkg/database/postgres"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed account.Store
func New(db *sql.DB) account.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Get implements account.Store.Get
func (s *store) Get(ctx context.Context, address string) (*account.Record, error) {
	model, err := dbGet(ctx, s.db, address)
	if err != nil {
		return nil, err
	}

	return fromModel(model), nil
}

// GetAllByOwner implements account.Store.GetAllByOwner
func (s *store) GetAllByOwner(ctx context.Context, owner string) ([]*account.Record, error) {
	models, err := dbGetAllByOwner(ctx, s.db, owner)
	if err != nil {
		return nil, err
	}

	res := make([]*account.Record, len(models))
	for i, model := range models {
		res[i] = fromModel(model)
	}
	return res, nil
}

// Commit implements account.Store.Commit
func (s *store) Commit(ctx context.Context, upserts []*account.Record, deletes []*account.Record) error {
	models := make([]*model, len(upserts))
	for i, record := range upserts {
		obj, err := toModel(record)
		if err != nil {
			return err
		}
		models[i] = obj
	}

	err := pgutil.ExecuteInTx(ctx, s.db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		for _, record := range deletes {
			if err := dbDelete(ctx, tx, record.Address, record.Version); err != nil {
				return err
			}
		}

		for _, obj := range models {
			var err error
			if obj.Version == 0 {
				err = obj.dbInsert(ctx, tx)
			} else {
				err = obj.dbUpdate(ctx, tx)
			}
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	for i, obj := range models {
		fromModel(obj).CopyTo(upserts[i])
	}
	for _, record := range deletes {
		record.Version = 0
	}
	return nil
}
