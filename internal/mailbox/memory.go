package mailbox

import (
	"context"
	"errors"
	"sync"
	"time"
)

type Options struct {
	MaxRecords int
	Now        func() time.Time
}

// MemoryStore keeps mailboxes in process. Used by the bot and by tests.
type MemoryStore struct {
	mu         sync.Mutex
	mailboxes  map[string][]Record
	maxRecords int
	now        func() time.Time
}

func NewMemoryStore(opts Options) *MemoryStore {
	maxRecords := opts.MaxRecords
	if maxRecords <= 0 {
		maxRecords = MaxRecords
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &MemoryStore{
		mailboxes:  make(map[string][]Record),
		maxRecords: maxRecords,
		now:        now,
	}
}

func (s *MemoryStore) Send(_ context.Context, recipientFID, ipfsHash string) (Record, error) {
	fid, err := normalizeFID(recipientFID)
	if err != nil {
		return Record{}, err
	}
	if ipfsHash == "" {
		return Record{}, errors.New("ipfs hash is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := newRecord(s.now(), ipfsHash)
	list := append([]Record{rec}, s.mailboxes[fid]...)
	if len(list) > s.maxRecords {
		list = list[:s.maxRecords]
	}
	s.mailboxes[fid] = list
	return rec, nil
}

func (s *MemoryStore) List(_ context.Context, userFID string) ([]Record, error) {
	fid, err := normalizeFID(userFID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.mailboxes[fid]
	out := make([]Record, len(list))
	copy(out, list)
	return out, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, userFID string, hashes []string) (int, error) {
	fid, err := normalizeFID(userFID)
	if err != nil {
		return 0, err
	}
	set := hashSet(hashes)

	s.mu.Lock()
	defer s.mu.Unlock()

	marked := 0
	list := s.mailboxes[fid]
	for i := range list {
		if _, ok := set[list[i].IPFSHash]; ok {
			list[i].Read = true
			marked++
		}
	}
	return marked, nil
}
