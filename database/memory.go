package database

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/dnldd/dojo/shared"
	"github.com/rs/zerolog"
)

// MemoryStore is an in-process journal and reward store.
type MemoryStore struct {
	entries  map[string][]shared.JournalEntry
	balances map[string]int64
	logger   *zerolog.Logger
	mtx      sync.RWMutex
}

var (
	// Ensure the memory store implements the JournalStorer interface.
	_ shared.JournalStorer = (*MemoryStore)(nil)
	// Ensure the memory store implements the RewardCrediter interface.
	_ shared.RewardCrediter = (*MemoryStore)(nil)
)

// NewMemoryStore initializes a new in-memory store.
func NewMemoryStore(logger *zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string][]shared.JournalEntry),
		balances: make(map[string]int64),
		logger:   logger,
	}
}

// SaveJournalEntry stores the provided journal entry.
func (m *MemoryStore) SaveJournalEntry(ctx context.Context, entry *shared.JournalEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("journal entry cannot be nil")
	}

	stored := *entry
	stored.RuleHits = maps.Clone(entry.RuleHits)

	m.mtx.Lock()
	m.entries[entry.DrillID] = append(m.entries[entry.DrillID], stored)
	m.mtx.Unlock()

	if m.logger != nil {
		m.logger.Info().Msgf("saved journal entry %s for drill %s", entry.ID, entry.DrillID)
	}

	return nil
}

// Entries returns the journal entries of the provided drill in the order they were saved.
func (m *MemoryStore) Entries(drillID string) []shared.JournalEntry {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	entries := make([]shared.JournalEntry, len(m.entries[drillID]))
	copy(entries, m.entries[drillID])

	return entries
}

// CreditReward credits the provided amount to the profile.
func (m *MemoryStore) CreditReward(ctx context.Context, profile string, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if profile == "" {
		return fmt.Errorf("profile cannot be an empty string")
	}
	if amount < 0 {
		return fmt.Errorf("reward amount cannot be negative, got %d", amount)
	}

	m.mtx.Lock()
	m.balances[profile] += amount
	balance := m.balances[profile]
	m.mtx.Unlock()

	if m.logger != nil {
		m.logger.Info().Msgf("credited %d to profile %s, balance %d", amount, profile, balance)
	}

	return nil
}

// Balance returns the credit balance of the provided profile.
func (m *MemoryStore) Balance(profile string) int64 {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return m.balances[profile]
}
