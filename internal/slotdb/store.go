// Package slotdb persists script slot values in SQLite, keyed by object and
// script name so they survive restarts that reassign object IDs.
package slotdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/plus3/scripthost/script"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS script_slots (
  object     TEXT    NOT NULL,
  script     TEXT    NOT NULL,
  slot       TEXT    NOT NULL,
  kind       TEXT    NOT NULL,
  value      TEXT    NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (object, script, slot)
);`

// Store persists slot values in SQLite. Values found in the database take
// precedence over the fallback source, which usually comes from the scene file.
type Store struct {
	sqlDB    *sql.DB
	objects  script.ObjectResolver
	fallback script.SlotSource
}

// Open opens the database at path and creates the schema if needed.
func Open(path string, objects script.ObjectResolver, fallback script.SlotSource) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if objects == nil {
		return nil, fmt.Errorf("object resolver is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, objects: objects, fallback: fallback}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load returns the stored values for one script.
func (s *Store) Load(ctx context.Context, objectName, scriptName string) (map[string]script.SlotValue, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT slot, kind, value FROM script_slots WHERE object = ? AND script = ?`,
		objectName, scriptName)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	values := make(map[string]script.SlotValue)
	for rows.Next() {
		var slot, kind, raw string
		if err := rows.Scan(&slot, &kind, &raw); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		v, err := decodeValue(kind, raw)
		if err != nil {
			return nil, fmt.Errorf("slot %s/%s/%s: %w", objectName, scriptName, slot, err)
		}
		values[slot] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}
	return values, nil
}

// Save replaces the stored values for one script.
func (s *Store) Save(ctx context.Context, objectName, scriptName string, values map[string]script.SlotValue) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM script_slots WHERE object = ? AND script = ?`, objectName, scriptName); err != nil {
		return fmt.Errorf("clear slots: %w", err)
	}

	now := time.Now().UTC().UnixMilli()
	for slot, v := range values {
		raw, err := encodeValue(v)
		if err != nil {
			return fmt.Errorf("slot %s: %w", slot, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO script_slots (object, script, slot, kind, value, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			objectName, scriptName, slot, v.Kind.String(), raw, now); err != nil {
			return fmt.Errorf("insert slot %s: %w", slot, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadSlots merges stored values over the fallback source.
func (s *Store) LoadSlots(object script.ObjectID, scriptName string) (map[string]script.SlotValue, error) {
	values := make(map[string]script.SlotValue)
	if s.fallback != nil {
		base, err := s.fallback.LoadSlots(object, scriptName)
		if err != nil {
			return nil, err
		}
		for k, v := range base {
			values[k] = v
		}
	}

	name, ok := s.objects.ObjectName(object)
	if !ok {
		return values, nil
	}
	stored, err := s.Load(context.Background(), name, scriptName)
	if err != nil {
		return values, err
	}
	for k, v := range stored {
		values[k] = v
	}
	return values, nil
}

// SaveSlots persists values under the object's current name.
func (s *Store) SaveSlots(object script.ObjectID, scriptName string, values map[string]script.SlotValue) error {
	name, ok := s.objects.ObjectName(object)
	if !ok {
		return fmt.Errorf("save slots: object %s has no name", object)
	}
	return s.Save(context.Background(), name, scriptName, values)
}

func encodeValue(v script.SlotValue) (string, error) {
	switch v.Kind {
	case script.SlotBool:
		return strconv.FormatBool(v.Bool), nil
	case script.SlotInt:
		return strconv.FormatInt(v.Int, 10), nil
	case script.SlotFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64), nil
	case script.SlotChar:
		return string(v.Char), nil
	case script.SlotRef:
		data, err := json.Marshal(v.Ref)
		return string(data), err
	default:
		return "", fmt.Errorf("unknown slot kind %d", v.Kind)
	}
}

func decodeValue(kind, raw string) (script.SlotValue, error) {
	switch kind {
	case script.SlotBool.String():
		b, err := strconv.ParseBool(raw)
		return script.BoolValue(b), err
	case script.SlotInt.String():
		i, err := strconv.ParseInt(raw, 10, 64)
		return script.IntValue(i), err
	case script.SlotFloat.String():
		f, err := strconv.ParseFloat(raw, 64)
		return script.FloatValue(f), err
	case script.SlotChar.String():
		r, size := utf8.DecodeRuneInString(raw)
		if size == 0 || size != len(raw) {
			return script.SlotValue{}, fmt.Errorf("bad char value %q", raw)
		}
		return script.CharValue(r), nil
	case script.SlotRef.String():
		var ref script.RefValue
		if err := json.Unmarshal([]byte(raw), &ref); err != nil {
			return script.SlotValue{}, err
		}
		return script.RefTo(ref.Object, ref.Script), nil
	default:
		return script.SlotValue{}, errors.New("unknown slot kind " + kind)
	}
}
