package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/code-payments/code-escrow/pkg/ledger/account"
)

type store struct {
	mu      sync.Mutex
	last    uint64
	records map[string]*account.Record
}

// New returns a new in memory account.Store
func New() account.Store {
	return &store{
		records: make(map[string]*account.Record),
	}
}

// Get implements account.Store.Get
func (s *store) Get(_ context.Context, address string) (*account.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.records[address]
	if !ok {
		return nil, account.ErrAccountNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

// GetAllByOwner implements account.Store.GetAllByOwner
func (s *store) GetAllByOwner(_ context.Context, owner string) ([]*account.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []*account.Record
	for _, item := range s.records {
		if item.Owner == owner {
			cloned := item.Clone()
			res = append(res, &cloned)
		}
	}

	if len(res) == 0 {
		return nil, account.ErrAccountNotFound
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].Address < res[j].Address
	})
	return res, nil
}

// Commit implements account.Store.Commit
func (s *store) Commit(_ context.Context, upserts []*account.Record, deletes []*account.Record) error {
	for _, record := range upserts {
		if err := record.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, records := range [][]*account.Record{upserts, deletes} {
		for _, record := range records {
			if s.versionOf(record.Address) != record.Version {
				return account.ErrStaleVersion
			}
		}
	}

	for _, record := range deletes {
		delete(s.records, record.Address)
		record.Version = 0
	}

	for _, record := range upserts {
		item, ok := s.records[record.Address]
		if !ok {
			s.last++
			item = &account.Record{Id: s.last}
			s.records[record.Address] = item
		}

		id := item.Id
		record.CopyTo(item)
		item.Id = id
		item.Version++

		item.CopyTo(record)
	}

	return nil
}

func (s *store) versionOf(address string) uint64 {
	item, ok := s.records[address]
	if !ok {
		return 0
	}
	return item.Version
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = 0
	s.records = make(map[string]*account.Record)
}
