package test

import (
	"context"
	"sort"
	"sync"

	"github.com/muzima/registration-worker/queuedata"
)

// ErrorStore keeps failed submissions in memory
type ErrorStore struct {
	Records map[string]queuedata.ErrorRecord
	SaveErr error
	mu      sync.Mutex
}

var _ queuedata.ErrorStore = &ErrorStore{}

func NewErrorStore() *ErrorStore {
	return &ErrorStore{Records: make(map[string]queuedata.ErrorRecord)}
}

func (e *ErrorStore) Save(_ context.Context, record queuedata.ErrorRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.SaveErr != nil {
		return e.SaveErr
	}
	e.Records[record.SubmissionId] = record
	return nil
}

func (e *ErrorStore) List(_ context.Context, discriminator string, limit int64) ([]queuedata.ErrorRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var records []queuedata.ErrorRecord
	for _, record := range e.Records {
		if discriminator == "" || record.Discriminator == discriminator {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].FailedTime.Before(records[j].FailedTime)
	})
	if limit > 0 && int64(len(records)) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (e *ErrorStore) Delete(_ context.Context, submissionId string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.Records, submissionId)
	return nil
}
