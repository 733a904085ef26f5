// Package memory implements the repositories on in-process maps, optionally
// persisted to a JSON state file.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lbx/models"

	log "github.com/sirupsen/logrus"
)

// DefaultSaveDelay is the debounce applied to state file writes
const DefaultSaveDelay = 500 * time.Millisecond

// Options configures a Store
type Options struct {
	// Path of the JSON state file. Empty keeps state in memory only.
	Path string
	// SaveDelay debounces writes after a mutation
	SaveDelay time.Duration
}

type accountRecord struct {
	models.Account
	Ledger []models.LedgerEntry `json:"ledger"`
}

type state struct {
	Accounts     map[string]*accountRecord          `json:"accounts"`
	Jackpots     map[string]*models.JackpotPeriod   `json:"jackpots"`
	Promos       map[string]*models.PromoCode       `json:"promos"`
	Redemptions  map[string]*models.PromoRedemption `json:"redemptions"`
	StreamEvents map[string]*models.StreamEvent     `json:"streamEvents"`
	Orders       map[string]*models.RechargeOrder   `json:"orders"`
	Rules        *models.EventRules                 `json:"rules,omitempty"`
}

func newState() *state {
	return &state{
		Accounts:     make(map[string]*accountRecord),
		Jackpots:     make(map[string]*models.JackpotPeriod),
		Promos:       make(map[string]*models.PromoCode),
		Redemptions:  make(map[string]*models.PromoRedemption),
		StreamEvents: make(map[string]*models.StreamEvent),
		Orders:       make(map[string]*models.RechargeOrder),
	}
}

// Store holds all in-memory state. One mutex serializes every operation.
type Store struct {
	mu    sync.Mutex
	state *state
	// redemptionKeys indexes redemption IDs by code|username|seq
	redemptionKeys map[string]string

	path      string
	saveDelay time.Duration
	timer     *time.Timer
	closed    bool

	writeMu sync.Mutex
	now     func() time.Time
}

// NewStore creates a store, loading the state file when one exists
func NewStore(opts Options) (*Store, error) {
	if opts.SaveDelay <= 0 {
		opts.SaveDelay = DefaultSaveDelay
	}

	s := &Store{
		state:          newState(),
		redemptionKeys: make(map[string]string),
		path:           opts.Path,
		saveDelay:      opts.SaveDelay,
		now:            time.Now,
	}

	if s.path != "" {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Persistent reports whether the store writes a state file
func (s *Store) Persistent() bool {
	return s.path != ""
}

// Path returns the state file path, empty when not persistent
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state file %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil
	}

	loaded := newState()
	if err := json.Unmarshal(data, loaded); err != nil {
		return fmt.Errorf("failed to parse state file %s: %w", s.path, err)
	}
	fillNilMaps(loaded)

	s.state = loaded
	for id, r := range loaded.Redemptions {
		s.redemptionKeys[redemptionKey(r.Code, r.Username, r.Seq)] = id
	}

	log.WithFields(log.Fields{
		"path":     s.path,
		"accounts": len(loaded.Accounts),
		"promos":   len(loaded.Promos),
	}).Info("Loaded state file")
	return nil
}

func fillNilMaps(st *state) {
	fresh := newState()
	if st.Accounts == nil {
		st.Accounts = fresh.Accounts
	}
	if st.Jackpots == nil {
		st.Jackpots = fresh.Jackpots
	}
	if st.Promos == nil {
		st.Promos = fresh.Promos
	}
	if st.Redemptions == nil {
		st.Redemptions = fresh.Redemptions
	}
	if st.StreamEvents == nil {
		st.StreamEvents = fresh.StreamEvents
	}
	if st.Orders == nil {
		st.Orders = fresh.Orders
	}
}

// changed schedules a debounced save. Callers hold mu.
func (s *Store) changed() {
	if s.path == "" || s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.saveDelay, func() {
		if err := s.Flush(); err != nil {
			log.WithError(err).Error("Failed to save state file")
		}
	})
}

// Flush writes the current state to the state file immediately
func (s *Store) Flush() error {
	if s.path == "" {
		return nil
	}

	s.mu.Lock()
	data, err := json.MarshalIndent(s.state, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return writeFileAtomic(s.path, data)
}

// Close cancels any pending save and performs a final flush
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	return s.Flush()
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Writable reports whether a state file can be created at path
func Writable(path string) bool {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	tmp, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return false
	}
	name := tmp.Name()
	tmp.Close()
	os.Remove(name)
	return true
}

func redemptionKey(code, username string, seq int) string {
	return fmt.Sprintf("%s|%s|%d", code, username, seq)
}

func streamEventKey(provider, eventID string) string {
	return provider + "|" + eventID
}
