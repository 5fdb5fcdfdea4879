package test

import (
	"context"
	"sync"

	"github.com/muzima/registration-worker/mapping"
)

// Store is an in-memory mapping store with the same create-if-absent semantics as the database backends
type Store struct {
	records map[string]mapping.Record
	// LookupErr is returned by Lookup when set
	LookupErr error
	mu        sync.Mutex
}

var _ mapping.Store = &Store{}

func NewStore() *Store {
	return &Store{records: make(map[string]mapping.Record)}
}

func (s *Store) Lookup(_ context.Context, temporaryUuid string) (*mapping.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.LookupErr != nil {
		return nil, s.LookupErr
	}
	record, ok := s.records[temporaryUuid]
	if !ok {
		return nil, mapping.ErrNotFound
	}
	return &record, nil
}

func (s *Store) Record(_ context.Context, record mapping.Record) (*mapping.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[record.TemporaryUuid]; ok {
		return &existing, false, nil
	}
	s.records[record.TemporaryUuid] = record
	return &record, true, nil
}

func (s *Store) Release(_ context.Context, temporaryUuid, assignedUuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[temporaryUuid]; ok && existing.AssignedUuid == assignedUuid {
		delete(s.records, temporaryUuid)
	}
	return nil
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}
