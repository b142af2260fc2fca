package shared

import (
	"context"
	"time"
)

// CandleSource defines the requirements for fetching multi-timeframe candle data.
type CandleSource interface {
	// GetAllCandles returns candle data for every timeframe for the provided symbol, ending at the
	// anchor date.
	GetAllCandles(ctx context.Context, symbol string, anchor time.Time) (AllCandleData, error)
}

// JournalStorer defines the requirements for persisting session journal entries.
type JournalStorer interface {
	// SaveJournalEntry stores the provided journal entry.
	SaveJournalEntry(ctx context.Context, entry *JournalEntry) error
}

// RewardCrediter defines the requirements for crediting in-game currency to a profile.
type RewardCrediter interface {
	// CreditReward credits the provided amount to the profile.
	CreditReward(ctx context.Context, profile string, amount int64) error
}
