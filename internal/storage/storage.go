// Package storage persists agent state that has to survive a restart.
package storage

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/keshon/datastore"

	"github.com/keshon/moonz/internal/mind"
)

// Store keeps one Record per account in a JSON file.
type Store struct {
	ds      *datastore.DataStore
	account string
	mu      sync.Mutex
}

type Record struct {
	LastMentionID string               `json:"last_mention_id"`
	Cooldowns     map[string]time.Time `json:"cooldowns"`
	Followed      map[string]time.Time `json:"followed"`
}

var _ mind.StateStore = (*Store)(nil)

// New opens (or creates) filePath. account separates the state of different
// identities sharing one file, e.g. "discord:moonz".
func New(filePath, account string) (*Store, error) {
	if account == "" {
		return nil, fmt.Errorf("storage: empty account key")
	}
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, fmt.Errorf("open datastore %s: %w", filePath, err)
	}
	return &Store{ds: ds, account: account}, nil
}

func (s *Store) Close() error {
	return s.ds.Close()
}

// record loads the account record. Values read back from disk are generic
// maps, so they go through a JSON round trip.
func (s *Store) record() (*Record, error) {
	data, exists := s.ds.Get(s.account)
	if !exists {
		return &Record{Cooldowns: map[string]time.Time{}, Followed: map[string]time.Time{}}, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error marshalling record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("error unmarshalling to *Record: %w", err)
	}
	if rec.Cooldowns == nil {
		rec.Cooldowns = map[string]time.Time{}
	}
	if rec.Followed == nil {
		rec.Followed = map[string]time.Time{}
	}
	return &rec, nil
}

func (s *Store) update(fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.record()
	if err != nil {
		return err
	}
	fn(rec)
	s.ds.Add(s.account, rec)
	if err := s.ds.SaveToFile(); err != nil {
		return fmt.Errorf("flush datastore: %w", err)
	}
	return nil
}

func (s *Store) read() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record()
}

func (s *Store) LastMentionID() (string, error) {
	rec, err := s.read()
	if err != nil {
		return "", err
	}
	return rec.LastMentionID, nil
}

func (s *Store) SetLastMentionID(id string) error {
	return s.update(func(r *Record) { r.LastMentionID = id })
}

func (s *Store) Cooldowns() (mind.CooldownState, error) {
	rec, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(mind.CooldownState, len(rec.Cooldowns))
	for k, t := range rec.Cooldowns {
		out[mind.ActionKind(k)] = t
	}
	return out, nil
}

func (s *Store) SaveCooldowns(c mind.CooldownState) error {
	return s.update(func(r *Record) {
		r.Cooldowns = make(map[string]time.Time, len(c))
		for k, t := range c {
			r.Cooldowns[string(k)] = t
		}
	})
}

func (s *Store) Followed(userID string) (bool, error) {
	rec, err := s.read()
	if err != nil {
		return false, err
	}
	_, ok := rec.Followed[userID]
	return ok, nil
}

func (s *Store) MarkFollowed(userID string) error {
	return s.update(func(r *Record) { r.Followed[userID] = time.Now().UTC() })
}
