package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/sk3pz/anglerbot/internal/fish"
	"github.com/sk3pz/anglerbot/internal/ledger"
	"github.com/sk3pz/anglerbot/internal/rarity"
	"github.com/sk3pz/anglerbot/internal/shop"
	_ "modernc.org/sqlite"
)

var errNotInitialized = errors.New("store not initialized")

type SQLiteStore struct {
	db             *sql.DB
	insertStmt     *sql.Stmt
	topStmt        *sql.Stmt
	topSpeciesStmt *sql.Stmt
}

func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db path: %w", err)
	}

	// DSN notes:
	// - _pragma=busy_timeout sets a lock wait
	// - _pragma=journal_mode(WAL) enables the write-ahead log
	// - _pragma=synchronous(NORMAL) sets the disk synchronizing
	//	 mode to NORMAL (recommended with WAL enabled)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", filepath.Clean(dbPath))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	ins, err := db.Prepare(`
		INSERT INTO catches (guild_id, user_id, species, rarity, weight_tenths, value, caught_at)
		VALUES (?,?,?,?,?,?,?)
	`)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	top, err := db.Prepare(`
		SELECT id, guild_id, user_id, species, rarity, weight_tenths, value, caught_at
		FROM catches
		WHERE guild_id = ?
		ORDER BY weight_tenths DESC, id DESC
		LIMIT ?
	`)
	if err != nil {
		_ = ins.Close()
		_ = db.Close()
		return nil, err
	}

	topSpecies, err := db.Prepare(`
		SELECT id, guild_id, user_id, species, rarity, weight_tenths, value, caught_at
		FROM catches
		WHERE guild_id = ? AND species = ?
		ORDER BY weight_tenths DESC, id DESC
		LIMIT ?
	`)
	if err != nil {
		_ = ins.Close()
		_ = top.Close()
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, insertStmt: ins, topStmt: top, topSpeciesStmt: topSpecies}, nil
}

func (s *SQLiteStore) Close() error {
	if s.insertStmt != nil {
		_ = s.insertStmt.Close()
	}
	if s.topStmt != nil {
		_ = s.topStmt.Close()
	}
	if s.topSpeciesStmt != nil {
		_ = s.topSpeciesStmt.Close()
	}

	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ledgers (
			guild_id    TEXT    NOT NULL,
			user_id     TEXT    NOT NULL,
			doc         TEXT    NOT NULL,
			casting     INTEGER NOT NULL DEFAULT 0,
			updated_at  INTEGER NOT NULL,
			PRIMARY KEY (guild_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_ledgers_casting
			ON ledgers (casting) WHERE casting = 1;

		CREATE TABLE IF NOT EXISTS pending_casts (
			guild_id    TEXT    NOT NULL,
			user_id     TEXT    NOT NULL,
			cast_id     TEXT    NOT NULL,
			doc         TEXT    NOT NULL,
			created_at  INTEGER NOT NULL,
			PRIMARY KEY (guild_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS shop_state (
			id   INTEGER PRIMARY KEY CHECK (id = 1),
			doc  TEXT    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS catches (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id      TEXT    NOT NULL,
			user_id       TEXT    NOT NULL,
			species       TEXT    NOT NULL,
			rarity        INTEGER NOT NULL,
			weight_tenths INTEGER NOT NULL,
			value         INTEGER NOT NULL,
			caught_at     INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_leader_all
			ON catches (guild_id, weight_tenths DESC, id DESC);

		CREATE INDEX IF NOT EXISTS idx_leader_species
			ON catches (guild_id, species, weight_tenths DESC, id DESC);
	`)
	return err
}

func (s *SQLiteStore) GetLedger(ctx context.Context, key ledger.Key) (ledger.Ledger, bool, error) {
	if s == nil || s.db == nil {
		return ledger.Ledger{}, false, errNotInitialized
	}

	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM ledgers WHERE guild_id = ? AND user_id = ?`,
		key.Guild, key.User,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Ledger{}, false, nil
	}
	if err != nil {
		return ledger.Ledger{}, false, err
	}

	var l ledger.Ledger
	if err := json.Unmarshal([]byte(doc), &l); err != nil {
		return ledger.Ledger{}, false, fmt.Errorf("corrupt ledger %s: %w", key, err)
	}
	return l, true, nil
}

func (s *SQLiteStore) PutLedger(ctx context.Context, key ledger.Key, l ledger.Ledger) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}

	doc, err := json.Marshal(l)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ledgers (guild_id, user_id, doc, casting, updated_at)
		VALUES (?,?,?,?,?)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET
			doc = excluded.doc,
			casting = excluded.casting,
			updated_at = excluded.updated_at
	`, key.Guild, key.User, string(doc), boolInt(l.Casting), time.Now().Unix())
	return err
}

func (s *SQLiteStore) CastingLedgers(ctx context.Context) ([]ledger.Key, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialized
	}
	return s.keys(ctx, `SELECT guild_id, user_id FROM ledgers WHERE casting = 1 ORDER BY guild_id, user_id`)
}

func (s *SQLiteStore) PutPending(ctx context.Context, key ledger.Key, castID string, doc []byte) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_casts (guild_id, user_id, cast_id, doc, created_at)
		VALUES (?,?,?,?,?)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET
			cast_id = excluded.cast_id,
			doc = excluded.doc,
			created_at = excluded.created_at
	`, key.Guild, key.User, castID, string(doc), time.Now().Unix())
	return err
}

func (s *SQLiteStore) GetPending(ctx context.Context, key ledger.Key) (string, []byte, bool, error) {
	if s == nil || s.db == nil {
		return "", nil, false, errNotInitialized
	}

	var castID, doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT cast_id, doc FROM pending_casts WHERE guild_id = ? AND user_id = ?`,
		key.Guild, key.User,
	).Scan(&castID, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, err
	}
	return castID, []byte(doc), true, nil
}

func (s *SQLiteStore) DeletePending(ctx context.Context, key ledger.Key) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_casts WHERE guild_id = ? AND user_id = ?`,
		key.Guild, key.User)
	return err
}

func (s *SQLiteStore) PendingKeys(ctx context.Context) ([]ledger.Key, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialized
	}
	return s.keys(ctx, `SELECT guild_id, user_id FROM pending_casts ORDER BY guild_id, user_id`)
}

func (s *SQLiteStore) keys(ctx context.Context, query string) ([]ledger.Key, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Key
	for rows.Next() {
		var k ledger.Key
		if err := rows.Scan(&k.Guild, &k.User); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LoadShop(ctx context.Context) (shop.State, bool, error) {
	if s == nil || s.db == nil {
		return shop.State{}, false, errNotInitialized
	}

	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM shop_state WHERE id = 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return shop.State{}, false, nil
	}
	if err != nil {
		return shop.State{}, false, err
	}

	var st shop.State
	if err := json.Unmarshal([]byte(doc), &st); err != nil {
		return shop.State{}, false, fmt.Errorf("corrupt shop state: %w", err)
	}
	return st, true, nil
}

func (s *SQLiteStore) SaveShop(ctx context.Context, st shop.State) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}

	doc, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shop_state (id, doc) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET doc = excluded.doc
	`, string(doc))
	return err
}

func (s *SQLiteStore) AddCatch(ctx context.Context, c fish.Catch) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}

	if c.CaughtAt.IsZero() {
		c.CaughtAt = time.Now()
	}

	weightTenths := int64(math.Round(c.Weight * 10.0))
	_, err := s.insertStmt.ExecContext(ctx,
		c.GuildId,
		c.UserId,
		c.SpeciesKey,
		int(c.Rarity),
		weightTenths,
		int64(c.Value),
		c.CaughtAt.Unix(),
	)
	return err
}

func (s *SQLiteStore) TopByWeight(ctx context.Context, guildId string, limit int) ([]fish.Catch, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialized
	}

	if limit <= 0 {
		limit = 10
	}

	rows, err := s.topStmt.QueryContext(ctx, guildId, limit)
	if err != nil {
		return nil, err
	}
	return scanCatches(rows, limit)
}

func (s *SQLiteStore) TopByWeightSpecies(ctx context.Context, guildId, species string, limit int) ([]fish.Catch, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialized
	}

	if limit <= 0 {
		limit = 10
	}

	rows, err := s.topSpeciesStmt.QueryContext(ctx, guildId, species, limit)
	if err != nil {
		return nil, err
	}
	return scanCatches(rows, limit)
}

func scanCatches(rows *sql.Rows, limit int) ([]fish.Catch, error) {
	defer rows.Close()

	out := make([]fish.Catch, 0, limit)
	for rows.Next() {
		var (
			id           int64
			gid, uid     string
			species      string
			tier         int
			weightTenths int64
			value        int64
			caughtUnix   int64
		)
		if err := rows.Scan(&id, &gid, &uid, &species, &tier, &weightTenths, &value, &caughtUnix); err != nil {
			return nil, err
		}

		out = append(out, fish.Catch{
			Id:         id,
			GuildId:    gid,
			UserId:     uid,
			SpeciesKey: species,
			Rarity:     rarity.Tier(tier),
			Weight:     float64(weightTenths) / 10.0,
			Value:      uint(value),
			CaughtAt:   time.Unix(caughtUnix, 0).UTC(),
		})
	}

	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
