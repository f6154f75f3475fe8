// Package store persists account credentials per site in a flat JSON
// file next to the binary. Read-only during a run; mutated only
// through the accounts commands.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Account is one login for one site.
type Account struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Store is a mutex-guarded JSON file mapping site id to accounts.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a store backed by path; the file is created lazily on
// the first write.
func New(path string) *Store {
	return &Store{path: path}
}

// List returns the accounts saved for siteID, empty when none.
func (s *Store) List(siteID string) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.read()
	if err != nil {
		return nil, err
	}
	return all[siteID], nil
}

// Add appends an account under siteID.
func (s *Store) Add(siteID string, account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.read()
	if err != nil {
		return err
	}
	all[siteID] = append(all[siteID], account)
	return s.write(all)
}

// Remove deletes the account at index under siteID.
func (s *Store) Remove(siteID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.read()
	if err != nil {
		return err
	}
	accounts := all[siteID]
	if index < 0 || index >= len(accounts) {
		return fmt.Errorf("store: no account %d for site %s", index, siteID)
	}
	all[siteID] = append(accounts[:index], accounts[index+1:]...)
	return s.write(all)
}

func (s *Store) read() (map[string][]Account, error) {
	all := map[string][]Account{}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return all, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", s.path, err)
	}
	return all, nil
}

func (s *Store) write(all map[string][]Account) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("store: write %s: %w", s.path, err)
	}
	return nil
}
