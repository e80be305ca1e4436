package tests

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-escrow/pkg/ledger/account"
)

func RunTests(t *testing.T, s account.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s account.Store){
		testHappyPath,
		testGetAllByOwner,
		testStaleVersion,
		testCommitIsAtomic,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s account.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.Get(ctx, "address")
		assert.Equal(t, account.ErrAccountNotFound, err)

		record := &account.Record{
			Address:  "address",
			Owner:    "owner",
			Lamports: 1_000_000,
			Data:     []byte{1, 2, 3},
		}
		cloned := record.Clone()

		require.NoError(t, s.Commit(ctx, []*account.Record{record}, nil))
		assert.True(t, record.Id > 0)
		assert.EqualValues(t, 1, record.Version)

		actual, err := s.Get(ctx, "address")
		require.NoError(t, err)
		assert.Equal(t, record.Id, actual.Id)
		assert.EqualValues(t, 1, actual.Version)
		assertEquivalentRecords(t, &cloned, actual)

		actual.Lamports = 5
		actual.Data = []byte{4, 5, 6, 7}
		actual.Owner = "other"
		actual.Executable = true
		cloned = actual.Clone()
		require.NoError(t, s.Commit(ctx, []*account.Record{actual}, nil))
		assert.EqualValues(t, 2, actual.Version)

		actual, err = s.Get(ctx, "address")
		require.NoError(t, err)
		assert.Equal(t, record.Id, actual.Id)
		assert.EqualValues(t, 2, actual.Version)
		assertEquivalentRecords(t, &cloned, actual)

		require.NoError(t, s.Commit(ctx, nil, []*account.Record{actual}))
		assert.EqualValues(t, 0, actual.Version)

		_, err = s.Get(ctx, "address")
		assert.Equal(t, account.ErrAccountNotFound, err)
	})
}

func testGetAllByOwner(t *testing.T, s account.Store) {
	t.Run("testGetAllByOwner", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.GetAllByOwner(ctx, "program1")
		assert.Equal(t, account.ErrAccountNotFound, err)

		var records []*account.Record
		for i := 0; i < 10; i++ {
			owner := "program1"
			if i%2 == 1 {
				owner = "program2"
			}

			records = append(records, &account.Record{
				Address:  fmt.Sprintf("address%d", 9-i),
				Owner:    owner,
				Lamports: uint64(i),
			})
		}
		require.NoError(t, s.Commit(ctx, records, nil))

		for _, owner := range []string{"program1", "program2"} {
			actual, err := s.GetAllByOwner(ctx, owner)
			require.NoError(t, err)
			require.Len(t, actual, 5)

			for i, record := range actual {
				assert.Equal(t, owner, record.Owner)
				if i > 0 {
					assert.True(t, actual[i-1].Address < record.Address)
				}
			}
		}

		_, err = s.GetAllByOwner(ctx, "program3")
		assert.Equal(t, account.ErrAccountNotFound, err)
	})
}

func testStaleVersion(t *testing.T, s account.Store) {
	t.Run("testStaleVersion", func(t *testing.T) {
		ctx := context.Background()

		record := &account.Record{
			Address:  "address",
			Owner:    "owner",
			Lamports: 10,
		}
		require.NoError(t, s.Commit(ctx, []*account.Record{record}, nil))

		first, err := s.Get(ctx, "address")
		require.NoError(t, err)
		second, err := s.Get(ctx, "address")
		require.NoError(t, err)

		first.Lamports = 20
		require.NoError(t, s.Commit(ctx, []*account.Record{first}, nil))

		second.Lamports = 30
		assert.Equal(t, account.ErrStaleVersion, s.Commit(ctx, []*account.Record{second}, nil))
		assert.Equal(t, account.ErrStaleVersion, s.Commit(ctx, nil, []*account.Record{second}))

		// Creating an account that already exists is also stale
		duplicate := &account.Record{
			Address:  "address",
			Owner:    "owner",
			Lamports: 40,
		}
		assert.Equal(t, account.ErrStaleVersion, s.Commit(ctx, []*account.Record{duplicate}, nil))

		actual, err := s.Get(ctx, "address")
		require.NoError(t, err)
		assert.EqualValues(t, 20, actual.Lamports)
		assert.EqualValues(t, 2, actual.Version)
	})
}

func testCommitIsAtomic(t *testing.T, s account.Store) {
	t.Run("testCommitIsAtomic", func(t *testing.T) {
		ctx := context.Background()

		existing := &account.Record{
			Address:  "existing",
			Owner:    "owner",
			Lamports: 10,
		}
		require.NoError(t, s.Commit(ctx, []*account.Record{existing}, nil))

		stale := existing.Clone()
		stale.Version = 5
		created := &account.Record{
			Address:  "created",
			Owner:    "owner",
			Lamports: 10,
		}
		assert.Equal(t, account.ErrStaleVersion, s.Commit(ctx, []*account.Record{created, &stale}, nil))

		_, err := s.Get(ctx, "created")
		assert.Equal(t, account.ErrAccountNotFound, err)

		actual, err := s.Get(ctx, "existing")
		require.NoError(t, err)
		assert.EqualValues(t, 1, actual.Version)

		invalid := &account.Record{
			Address: "invalid",
		}
		assert.Error(t, s.Commit(ctx, []*account.Record{invalid}, nil))
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *account.Record) {
	assert.Equal(t, obj1.Address, obj2.Address)
	assert.Equal(t, obj1.Owner, obj2.Owner)
	assert.Equal(t, obj1.Lamports, obj2.Lamports)
	assert.Equal(t, obj1.Data, obj2.Data)
	assert.Equal(t, obj1.Executable, obj2.Executable)
}
