package services

import (
	"context"
	"fmt"
	"sync"

	"order-forecast-api/pkg/airtable"
	"order-forecast-api/pkg/models"
)

// fakeStore is an in-memory DataStore.
type fakeStore struct {
	mu        sync.Mutex
	tables    map[string][]airtable.Record
	fetches   map[string]int
	updates   []string
	failFetch map[string]bool
	failWrite map[string]bool // record ids whose update fails
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables:    make(map[string][]airtable.Record),
		fetches:   make(map[string]int),
		failFetch: make(map[string]bool),
		failWrite: make(map[string]bool),
	}
}

func (s *fakeStore) add(table, id string, fields map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append(s.tables[table], airtable.Record{ID: id, Fields: fields})
}

func (s *fakeStore) field(table, id, name string) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.tables[table] {
		if r.ID == id {
			return r.Fields[name]
		}
	}
	return nil
}

func (s *fakeStore) FetchAll(ctx context.Context, table string) ([]airtable.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches[table]++
	if s.failFetch[table] {
		return nil, &models.DataFetchError{Op: "fetch", Table: table, StatusCode: 503, Body: "unavailable"}
	}
	out := make([]airtable.Record, len(s.tables[table]))
	copy(out, s.tables[table])
	return out, nil
}

func (s *fakeStore) Create(ctx context.Context, table string, fields map[string]interface{}) (*airtable.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := airtable.Record{ID: fmt.Sprintf("recNew%d", len(s.tables[table])), Fields: fields}
	s.tables[table] = append(s.tables[table], r)
	return &r, nil
}

func (s *fakeStore) Update(ctx context.Context, table, id string, fields map[string]interface{}) (*airtable.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite[id] {
		return nil, &models.DataFetchError{Op: "update", Table: table, StatusCode: 422, Body: "rejected"}
	}
	for i, r := range s.tables[table] {
		if r.ID != id {
			continue
		}
		merged := make(map[string]interface{}, len(r.Fields)+len(fields))
		for k, v := range r.Fields {
			merged[k] = v
		}
		for k, v := range fields {
			merged[k] = v
		}
		s.tables[table][i].Fields = merged
		s.updates = append(s.updates, id)
		return &airtable.Record{ID: id, Fields: merged}, nil
	}
	return nil, &models.DataFetchError{Op: "update", Table: table, StatusCode: 404, Body: "not found"}
}
