package permission

import (
	"sort"
	"sync"
	"sync/atomic"
)

// snapshot is one published generation of the store. It is never mutated after publish.
type snapshot struct {
	generation uint64
	records    map[Identity]Record
}

func (s *snapshot) clone() map[Identity]Record {
	out := make(map[Identity]Record, len(s.records)+1)
	for id, rec := range s.records {
		out[id] = rec
	}

	return out
}

// Store is a concurrency-safe mapping from Identity to Record.
//
// Get is lock free. Put, Merge, ReplaceAll and Clear serialize against each other
// and each publishes a complete new snapshot.
type Store struct {
	mu      sync.Mutex // serializes writers
	current atomic.Pointer[snapshot]
}

// NewStore creates an empty store.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&snapshot{records: map[Identity]Record{}})

	return s
}

// Get returns the record of identity. Unknown identities yield a record without capabilities;
// nothing is inserted into the store.
func (s *Store) Get(identity Identity) Record {
	if rec, ok := s.current.Load().records[identity]; ok {
		return rec
	}

	return Record{Identity: identity}
}

// Put inserts or fully replaces the record for rec.Identity.
func (s *Store) Put(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.current.Load().clone()
	records[rec.Identity] = rec

	s.publish(records)
}

// Merge adds capabilities to the identity's existing set. It never removes anything
// and keeps the current login.
func (s *Store) Merge(identity Identity, capabilities CapabilitySet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.current.Load().clone()

	rec, ok := records[identity]
	if !ok {
		rec = Record{Identity: identity}
	}

	rec.Capabilities = rec.Capabilities.Union(capabilities)
	records[identity] = rec

	s.publish(records)
}

// ReplaceAll discards the current mapping and installs records as the new one.
// Readers observe either the old or the new mapping, never a mix.
// If records holds the same identity twice, the later entry wins.
func (s *Store) ReplaceAll(records []Record) {
	next := make(map[Identity]Record, len(records))
	for _, rec := range records {
		next[rec.Identity] = rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.publish(next)
}

// Clear removes every record.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.publish(map[Identity]Record{})
}

// All returns every record sorted by identity.
func (s *Store) All() []Record {
	snap := s.current.Load()

	out := make([]Record, 0, len(snap.records))
	for _, rec := range snap.records {
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })

	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.current.Load().records)
}

// Generation returns a counter incremented on every write.
func (s *Store) Generation() uint64 {
	return s.current.Load().generation
}

// publish must be called with mu held.
func (s *Store) publish(records map[Identity]Record) {
	s.current.Store(&snapshot{
		generation: s.current.Load().generation + 1,
		records:    records,
	})
}
