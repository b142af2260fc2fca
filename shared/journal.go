package shared

import (
	"time"

	"github.com/google/uuid"
)

// JournalEntry represents a persisted record of a played session.
type JournalEntry struct {
	ID        string
	Timestamp time.Time
	DrillID   string
	PNL       float64
	Score     int
	Notes     string
	RuleHits  map[string]uint32
}

// NewJournalEntry initializes a new journal entry stamped with the provided time.
func NewJournalEntry(drillID string, pnl float64, score int, notes string, ruleHits map[string]uint32, now time.Time) *JournalEntry {
	hits := make(map[string]uint32, len(ruleHits))
	for k, v := range ruleHits {
		hits[k] = v
	}

	return &JournalEntry{
		ID:        "journal_" + uuid.New().String(),
		Timestamp: now,
		DrillID:   drillID,
		PNL:       pnl,
		Score:     score,
		Notes:     notes,
		RuleHits:  hits,
	}
}
