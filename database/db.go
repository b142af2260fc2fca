package database

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dnldd/dojo/shared"
	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"
)

const (
	// SQL statements.
	createJournalTableSQL  = "CREATE TABLE IF NOT EXISTS journal (id TEXT PRIMARY KEY, drillid TEXT, pnl REAL, score INTEGER, notes TEXT, createdon INTEGER)"
	createRuleHitTableSQL  = "CREATE TABLE IF NOT EXISTS rulehit (journalid TEXT, rule TEXT, count INTEGER, PRIMARY KEY (journalid, rule))"
	createMetadataTableSQL = "CREATE TABLE IF NOT EXISTS metadata (id TEXT PRIMARY KEY, drillid TEXT, total INTEGER, wins INTEGER, losses INTEGER, totalscore INTEGER, createdon INTEGER)"
	createProfileTableSQL  = "CREATE TABLE IF NOT EXISTS profile (id TEXT PRIMARY KEY, credits INTEGER, sessions INTEGER, updatedon INTEGER)"
	findJournalSQL         = "SELECT id FROM journal WHERE id = ?"
	persistJournalSQL      = "INSERT INTO journal(id, drillid, pnl, score, notes, createdon) VALUES(?,?,?,?,?,?)"
	persistRuleHitSQL      = "INSERT INTO rulehit(journalid, rule, count) VALUES(?,?,?)"
	upsertMetadataSQL      = "INSERT INTO metadata(id, drillid, total, wins, losses, totalscore, createdon) VALUES(?,?,1,?,?,?,?) ON CONFLICT(id) DO UPDATE SET total = total + 1, wins = wins + excluded.wins, losses = losses + excluded.losses, totalscore = totalscore + excluded.totalscore"
	creditProfileSQL       = "INSERT INTO profile(id, credits, sessions, updatedon) VALUES(?,?,1,?) ON CONFLICT(id) DO UPDATE SET credits = credits + excluded.credits, sessions = sessions + 1, updatedon = excluded.updatedon"
)

// DatabaseConfig is the configuration for the database.
type DatabaseConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// Timeout bounds every database request. Defaults to five seconds.
	Timeout time.Duration
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *DatabaseConfig) Validate() error {
	var errs error
	if cfg.Endpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("database endpoint cannot be an empty string"))
	}
	if cfg.Timeout < 0 {
		errs = errors.Join(errs, fmt.Errorf("database timeout cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Database represents the database connection.
type Database struct {
	cfg    *DatabaseConfig
	client *rqlitehttp.Client
}

var (
	// Ensure the database implements the JournalStorer interface.
	_ shared.JournalStorer = (*Database)(nil)
	// Ensure the database implements the RewardCrediter interface.
	_ shared.RewardCrediter = (*Database)(nil)
)

// NewDatabase initializes a new database connection.
func NewDatabase(ctx context.Context, cfg *DatabaseConfig) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating database config: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = time.Second * 5
	}

	httpc := &http.Client{Timeout: timeout}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	if cfg.User != "" {
		client.SetBasicAuth(cfg.User, cfg.Pass)
	}

	db := &Database{
		cfg:    cfg,
		client: client,
	}

	err = db.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return db, nil
}

// execute runs the provided statements in a single transaction.
func (db *Database) execute(ctx context.Context, statements rqlitehttp.SQLStatements) error {
	resp, err := db.client.Execute(ctx, statements, &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return err
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("statement %d: %s", idx, errStr)
	}

	return nil
}

// exists checks whether the provided query returns any rows.
func (db *Database) exists(ctx context.Context, query string, args ...any) (bool, error) {
	resp, err := db.client.QuerySingle(ctx, query, args...)
	if err != nil {
		return false, err
	}

	has, idx, errStr := resp.HasError()
	if has {
		return false, fmt.Errorf("statement %d: %s", idx, errStr)
	}

	results, ok := resp.Results.([]rqlitehttp.QueryResult)
	if !ok || len(results) == 0 {
		return false, nil
	}

	return len(results[0].Values) > 0, nil
}

// bootstrap initializes the database.
func (db *Database) bootstrap(ctx context.Context) error {
	return db.execute(ctx, rqlitehttp.SQLStatements{
		{SQL: createJournalTableSQL},
		{SQL: createRuleHitTableSQL},
		{SQL: createMetadataTableSQL},
		{SQL: createProfileTableSQL},
	})
}

// generateMetadataID generates deterministic ids for metadata using the
// month, week and drill of the provided time.
func generateMetadataID(currentTime time.Time, drillID string) string {
	month := currentTime.Month().String()
	week := currentTime.Day() / 7

	id := fmt.Sprintf("%s-Week-%d-%s", month, week, drillID)
	return id
}

// journalStatements returns the statements persisting the provided entry and its rule hits.
func journalStatements(entry *shared.JournalEntry) rqlitehttp.SQLStatements {
	statements := rqlitehttp.SQLStatements{
		{
			SQL: persistJournalSQL,
			PositionalParams: []any{entry.ID, entry.DrillID, entry.PNL, entry.Score, entry.Notes,
				entry.Timestamp.Unix()},
		},
	}

	rules := make([]string, 0, len(entry.RuleHits))
	for rule := range entry.RuleHits {
		rules = append(rules, rule)
	}
	sort.Strings(rules)

	for _, rule := range rules {
		statements = append(statements, rqlitehttp.SQLStatements{
			{
				SQL:              persistRuleHitSQL,
				PositionalParams: []any{entry.ID, rule, entry.RuleHits[rule]},
			},
		}...)
	}

	return statements
}

// metadataStatement returns the statement counting the provided entry into the weekly metadata of
// its drill.
func (db *Database) metadataStatement(entry *shared.JournalEntry) rqlitehttp.SQLStatements {
	var win, loss int
	switch {
	case entry.PNL > 0:
		win++
	case entry.PNL < 0:
		loss++
	default:
		db.cfg.Logger.Debug().Msgf("flat journal entry, metadata win/loss unchanged: %s", spew.Sdump(entry))
	}

	id := generateMetadataID(entry.Timestamp, entry.DrillID)
	return rqlitehttp.SQLStatements{
		{
			SQL:              upsertMetadataSQL,
			PositionalParams: []any{id, entry.DrillID, win, loss, entry.Score, entry.Timestamp.Unix()},
		},
	}
}

// SaveJournalEntry stores the provided journal entry with its rule hits and counts it into the
// weekly metadata of its drill, in one transaction. Saving an entry already stored is a no-op.
func (db *Database) SaveJournalEntry(ctx context.Context, entry *shared.JournalEntry) error {
	if entry == nil {
		return fmt.Errorf("journal entry cannot be nil")
	}

	exists, err := db.exists(ctx, findJournalSQL, entry.ID)
	if err != nil {
		return fmt.Errorf("finding journal entry %s: %w", entry.ID, err)
	}
	if exists {
		db.cfg.Logger.Warn().Msgf("journal entry %s already saved", entry.ID)
		return nil
	}

	statements := journalStatements(entry)
	statements = append(statements, db.metadataStatement(entry)...)

	err = db.execute(ctx, statements)
	if err != nil {
		return fmt.Errorf("persisting journal entry %s: %w", entry.ID, err)
	}

	db.cfg.Logger.Info().Msgf("saved journal entry %s for drill %s", entry.ID, entry.DrillID)

	return nil
}

// CreditReward credits the provided amount to the profile, creating it when absent.
func (db *Database) CreditReward(ctx context.Context, profile string, amount int64) error {
	if profile == "" {
		return fmt.Errorf("profile cannot be an empty string")
	}
	if amount < 0 {
		return fmt.Errorf("reward amount cannot be negative, got %d", amount)
	}

	err := db.execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL:              creditProfileSQL,
			PositionalParams: []any{profile, amount, time.Now().Unix()},
		},
	})
	if err != nil {
		return fmt.Errorf("crediting profile %s: %w", profile, err)
	}

	db.cfg.Logger.Info().Msgf("credited %d to profile %s", amount, profile)

	return nil
}
