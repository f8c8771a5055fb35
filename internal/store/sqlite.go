package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/containerd/errdefs"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/study-coach/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		// Monotonic entropy keeps ids ordered within a millisecond; turn
		// windows rely on id order.
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS materials (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		content    TEXT NOT NULL,
		topics     TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_materials_created ON materials(created_at DESC);

	CREATE TABLE IF NOT EXISTS items (
		id               TEXT PRIMARY KEY,
		material_id      TEXT NOT NULL REFERENCES materials(id),
		kind             TEXT NOT NULL,
		payload          TEXT NOT NULL,
		topic            TEXT,
		difficulty       TEXT,
		adversarial      INTEGER NOT NULL DEFAULT 0,
		adversarial_type TEXT,
		state            TEXT NOT NULL DEFAULT 'active',
		created_at       TEXT NOT NULL,
		updated_at       TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_items_material ON items(material_id);
	CREATE INDEX IF NOT EXISTS idx_items_state ON items(material_id, state);

	CREATE TABLE IF NOT EXISTS feedback (
		id                TEXT PRIMARY KEY,
		item_id           TEXT NOT NULL REFERENCES items(id),
		user_id           TEXT NOT NULL,
		correct           INTEGER NOT NULL,
		helpful           INTEGER NOT NULL,
		difficulty_rating INTEGER,
		comment           TEXT,
		created_at        TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_item ON feedback(item_id);

	CREATE TABLE IF NOT EXISTS changelog (
		id         TEXT PRIMARY KEY,
		item_id    TEXT NOT NULL,
		action     TEXT NOT NULL,
		rationale  TEXT NOT NULL,
		before     TEXT,
		after      TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_changelog_item ON changelog(item_id, created_at);

	CREATE TABLE IF NOT EXISTS turns (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		role            TEXT NOT NULL,
		content         TEXT NOT NULL,
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_conv ON turns(conversation_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) PutMaterial(ctx context.Context, m *model.StudyMaterial) error {
	if m.ID == "" {
		m.ID = s.newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	var topicsJSON *string
	if len(m.Topics) > 0 {
		b, _ := json.Marshal(m.Topics)
		t := string(b)
		topicsJSON = &t
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO materials (id, title, content, topics, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.Content, topicsJSON, m.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert material: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMaterial(ctx context.Context, id string) (*model.StudyMaterial, error) {
	var m model.StudyMaterial
	var topicsJSON sql.NullString
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, topics, created_at FROM materials WHERE id = ?`, id).
		Scan(&m.ID, &m.Title, &m.Content, &topicsJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("material %s: %w", id, errdefs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if topicsJSON.Valid {
		json.Unmarshal([]byte(topicsJSON.String), &m.Topics)
	}
	return &m, nil
}

func (s *SQLiteStore) ListMaterials(ctx context.Context) ([]model.StudyMaterial, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, topics, created_at FROM materials ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StudyMaterial
	for rows.Next() {
		var m model.StudyMaterial
		var topicsJSON sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Title, &m.Content, &topicsJSON, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if topicsJSON.Valid {
			json.Unmarshal([]byte(topicsJSON.String), &m.Topics)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) InsertItem(ctx context.Context, item *model.GeneratedItem, rationale string) error {
	if item.ID == "" {
		item.ID = s.newID()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.State == "" {
		item.State = model.StateActive
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO items (id, material_id, kind, payload, topic, difficulty, adversarial, adversarial_type, state, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.MaterialID, string(item.Kind), item.Payload, item.Topic, item.Difficulty,
		boolInt(item.Adversarial), item.AdversarialType, string(item.State),
		item.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}

	if err := s.appendChange(ctx, tx, item.ID, model.ActionCreated, rationale, nil, item); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*model.GeneratedItem, error) {
	row := s.db.QueryRowContext(ctx, itemSelect+` WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item %s: %w", id, errdefs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *SQLiteStore) QueryItems(ctx context.Context, f ItemFilter) ([]model.GeneratedItem, error) {
	where := []string{"1=1"}
	var args []interface{}
	if f.MaterialID != "" {
		where = append(where, "material_id = ?")
		args = append(args, f.MaterialID)
	}
	if f.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(f.State))
	}
	if f.Adversarial != nil {
		where = append(where, "adversarial = ?")
		args = append(args, boolInt(*f.Adversarial))
	}
	query := itemSelect + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at ASC, id ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.GeneratedItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ReplaceItem(ctx context.Context, item *model.GeneratedItem, rationale string) error {
	before, err := s.GetItem(ctx, item.ID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	item.UpdatedAt = &now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE items SET material_id = ?, kind = ?, payload = ?, topic = ?, difficulty = ?,
		        adversarial = ?, adversarial_type = ?, state = ?, updated_at = ?
		 WHERE id = ?`,
		item.MaterialID, string(item.Kind), item.Payload, item.Topic, item.Difficulty,
		boolInt(item.Adversarial), item.AdversarialType, string(item.State),
		now.Format(time.RFC3339), item.ID)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}

	if err := s.appendChange(ctx, tx, item.ID, model.ActionUpdated, rationale, before, item); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) RetireItem(ctx context.Context, id, rationale string) error {
	before, err := s.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if before.State == model.StateRetired {
		return fmt.Errorf("item %s already retired: %w", id, errdefs.ErrConflict)
	}

	now := time.Now().UTC()
	after := *before
	after.State = model.StateRetired
	after.UpdatedAt = &now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE items SET state = ?, updated_at = ? WHERE id = ?`,
		string(model.StateRetired), now.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("retire item: %w", err)
	}

	if err := s.appendChange(ctx, tx, id, model.ActionRemoved, rationale, before, &after); err != nil {
		return err
	}
	return tx.Commit()
}

// appendChange writes the audit row inside the caller's transaction so the
// mutation and its log entry commit together.
func (s *SQLiteStore) appendChange(ctx context.Context, tx *sql.Tx, itemID string,
	action model.ChangeAction, rationale string, before, after *model.GeneratedItem) error {

	var beforeJSON, afterJSON *string
	if before != nil {
		b, _ := json.Marshal(before)
		v := string(b)
		beforeJSON = &v
	}
	if after != nil {
		b, _ := json.Marshal(after)
		v := string(b)
		afterJSON = &v
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO changelog (id, item_id, action, rationale, before, after, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.newID(), itemID, string(action), rationale, beforeJSON, afterJSON,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("append changelog: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListChanges(ctx context.Context, itemID string) ([]model.ChangeLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, action, rationale, before, after, created_at
		 FROM changelog WHERE item_id = ? ORDER BY created_at ASC, id ASC`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ChangeLogEntry
	for rows.Next() {
		var e model.ChangeLogEntry
		var before, after sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.ItemID, &e.Action, &e.Rationale, &before, &after, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if before.Valid {
			e.Before = before.String
		}
		if after.Valid {
			e.After = after.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LastChangeAt(ctx context.Context, itemID string) (time.Time, error) {
	var createdAt sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM changelog WHERE item_id = ?`, itemID).Scan(&createdAt)
	if err != nil || !createdAt.Valid {
		return time.Time{}, err
	}
	t, _ := time.Parse(time.RFC3339, createdAt.String)
	return t, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const itemSelect = `SELECT id, material_id, kind, payload, topic, difficulty,
	adversarial, adversarial_type, state, created_at, updated_at FROM items`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row scanner) (model.GeneratedItem, error) {
	var item model.GeneratedItem
	var topic, difficulty, advType, updatedAt sql.NullString
	var adversarial int
	var createdAt string

	err := row.Scan(
		&item.ID, &item.MaterialID, &item.Kind, &item.Payload, &topic, &difficulty,
		&adversarial, &advType, &item.State, &createdAt, &updatedAt,
	)
	if err != nil {
		return item, err
	}

	item.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	item.Adversarial = adversarial != 0
	if topic.Valid {
		item.Topic = topic.String
	}
	if difficulty.Valid {
		item.Difficulty = difficulty.String
	}
	if advType.Valid {
		item.AdversarialType = advType.String
	}
	if updatedAt.Valid {
		t, _ := time.Parse(time.RFC3339, updatedAt.String)
		item.UpdatedAt = &t
	}
	return item, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
