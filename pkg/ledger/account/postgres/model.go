package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/code-escrow/pkg/ledger/account"
	pgutil "github.com/code-payments/code-escrow/pkg/database/postgres"
)

const (
	tableName = "ledger__core_account"
)

type model struct {
	Id         sql.NullInt64 `db:"id"`
	Address    string        `db:"address"`
	Owner      string        `db:"owner"`
	Lamports   int64         `db:"lamports"`
	Data       []byte        `db:"data"`
	Executable bool          `db:"executable"`
	Version    int64         `db:"version"`
}

func toModel(obj *account.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	data := obj.Data
	if data == nil {
		data = []byte{}
	}

	return &model{
		Id:         sql.NullInt64{Int64: int64(obj.Id), Valid: obj.Id > 0},
		Address:    obj.Address,
		Owner:      obj.Owner,
		Lamports:   int64(obj.Lamports),
		Data:       data,
		Executable: obj.Executable,
		Version:    int64(obj.Version),
	}, nil
}

func fromModel(obj *model) *account.Record {
	return &account.Record{
		Id:         uint64(obj.Id.Int64),
		Address:    obj.Address,
		Owner:      obj.Owner,
		Lamports:   uint64(obj.Lamports),
		Data:       obj.Data,
		Executable: obj.Executable,
		Version:    uint64(obj.Version),
	}
}

func (m *model) dbInsert(ctx context.Context, tx *sqlx.Tx) error {
	query := `INSERT INTO ` + tableName + `
		(address, owner, lamports, data, executable, version)
		VALUES ($1, $2, $3, $4, $5, 1)

		RETURNING id, address, owner, lamports, data, executable, version
	`

	err := tx.QueryRowxContext(
		ctx,
		query,
		m.Address,
		m.Owner,
		m.Lamports,
		m.Data,
		m.Executable,
	).StructScan(m)

	return pgutil.CheckUniqueViolation(err, account.ErrStaleVersion)
}

func (m *model) dbUpdate(ctx context.Context, tx *sqlx.Tx) error {
	query := `UPDATE ` + tableName + `
		SET owner = $2, lamports = $3, data = $4, executable = $5, version = version + 1
		WHERE address = $1 AND version = $6

		RETURNING id, address, owner, lamports, data, executable, version
	`

	err := tx.QueryRowxContext(
		ctx,
		query,
		m.Address,
		m.Owner,
		m.Lamports,
		m.Data,
		m.Executable,
		m.Version,
	).StructScan(m)

	return pgutil.CheckNoRows(err, account.ErrStaleVersion)
}

func dbDelete(ctx context.Context, tx *sqlx.Tx, address string, version uint64) error {
	query := `DELETE FROM ` + tableName + `
		WHERE address = $1 AND version = $2
	`

	res, err := tx.ExecContext(ctx, query, address, int64(version))
	if err != nil {
		return err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	} else if rowsAffected == 0 {
		return account.ErrStaleVersion
	}
	return nil
}

func dbGet(ctx context.Context, db *sqlx.DB, address string) (*model, error) {
	var res model
	query := `SELECT id, address, owner, lamports, data, executable, version FROM ` + tableName + `
		WHERE address = $1
	`

	err := db.GetContext(ctx, &res, query, address)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, account.ErrAccountNotFound)
	}
	return &res, nil
}

func dbGetAllByOwner(ctx context.Context, db *sqlx.DB, owner string) ([]*model, error) {
	var res []*model
	query := `SELECT id, address, owner, lamports, data, executable, version FROM ` + tableName + `
		WHERE owner = $1
		ORDER BY address ASC
	`

	err := db.SelectContext(ctx, &res, query, owner)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, account.ErrAccountNotFound)
	}

	if len(res) == 0 {
		return nil, account.ErrAccountNotFound
	}
	return res, nil
}
