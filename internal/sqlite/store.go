// Package sqlite implements the SQLite-backed patch store. One database
// file holds any number of named patches; the store is the backing store,
// loader, and saver collaborator consumed by the patch core.
package sqlite

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/geostack/patchwork/pkg/features"
	"github.com/geostack/patchwork/pkg/patch"
)

//go:embed schema.sql
var schemaSQL string

// Store errors.
var (
	ErrPatchNotFound = errors.New("patch not found")
	ErrEntryNotFound = errors.New("entry not found")
	ErrFeatureExists = errors.New("feature already saved")
)

// Store holds patches in a single SQLite database file.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// Compile-time collaborator contract checks.
var (
	_ patch.BackingStore = (*Store)(nil)
	_ patch.Loader       = (*Store)(nil)
	_ patch.Saver        = (*Store)(nil)
)

// newUUID generates a UUID v7 string, used as the opaque entry descriptor.
func newUUID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Open opens (creating if needed) the store at path and initializes the
// schema. The parent directory is created if it does not exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database handle. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// ListPatches returns the stored patch names in lexical order.
func (s *Store) ListPatches() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT name FROM patches ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeletePatch removes a stored patch and all its entries.
func (s *Store) DeletePatch(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM patches WHERE name = ?", name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrPatchNotFound, name)
	}
	return nil
}

// Resolve implements patch.BackingStore: it decodes the payload addressed
// by an entry descriptor.
func (s *Store) Resolve(ref string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var kindStr string
	var payload []byte
	err := s.db.QueryRow("SELECT kind, payload FROM entries WHERE entry_id = ?", ref).
		Scan(&kindStr, &payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: descriptor %q", ErrEntryNotFound, ref)
	}
	if err != nil {
		return nil, err
	}
	kind, err := features.Parse(kindStr)
	if err != nil {
		return nil, fmt.Errorf("%w: kind %q", ErrBadPayload, kindStr)
	}
	return decodeValue(kind, payload)
}

// LoadPatch implements patch.Loader. Metadata entries are decoded eagerly;
// every other selected entry comes back as a resolvable placeholder.
func (s *Store) LoadPatch(location string, sel features.Selection) (*patch.LoadResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var patchID string
	var bboxCol, tsCol sql.NullString
	err := s.db.QueryRow("SELECT patch_id, bbox, timestamps FROM patches WHERE name = ?", location).
		Scan(&patchID, &bboxCol, &tsCol)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %q", ErrPatchNotFound, location)
	}
	if err != nil {
		return nil, err
	}

	result := &patch.LoadResult{Entries: map[features.Ref]*patch.Deferred{}}
	if bboxCol.Valid && sel.Contains(features.KindBBox, "") {
		if result.BBox, err = decodeBBox([]byte(bboxCol.String)); err != nil {
			return nil, err
		}
	}
	if tsCol.Valid && sel.Contains(features.KindTimestamps, "") {
		if result.Timestamps, err = decodeTimestamps([]byte(tsCol.String)); err != nil {
			return nil, err
		}
	}

	rows, err := s.db.Query("SELECT entry_id, kind, name, payload FROM entries WHERE patch_id = ? ORDER BY rowid", patchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var entryID, kindStr, name string
		var payload []byte
		if err := rows.Scan(&entryID, &kindStr, &name, &payload); err != nil {
			return nil, err
		}
		kind, err := features.Parse(kindStr)
		if err != nil {
			return nil, fmt.Errorf("%w: kind %q", ErrBadPayload, kindStr)
		}
		if !sel.Contains(kind, name) {
			continue
		}
		if kind == features.KindMetaInfo {
			value, err := decodeValue(kind, payload)
			if err != nil {
				return nil, err
			}
			if result.MetaInfo == nil {
				result.MetaInfo = map[string]any{}
			}
			result.MetaInfo[name] = value
			continue
		}
		result.Entries[features.Ref{Kind: kind, Name: name}] = patch.NewDeferred(s, entryID)
	}
	return result, rows.Err()
}

// SavePatch implements patch.Saver. Entries are materialized as they are
// written. AddOnly refuses to touch any already stored selected feature;
// OverwriteFeatures upserts only the selection; OverwritePatch drops the
// stored patch first.
func (s *Store) SavePatch(p *patch.Patch, location string, sel features.Selection, mode patch.SaveMode) error {
	// Materialize before taking the write lock: a lazily loaded entry may
	// resolve through this very store.
	values := map[features.Ref]any{}
	for _, ref := range p.Features() {
		if !sel.Contains(ref.Kind, ref.Name) || ref.Kind.IsScalarValued() {
			continue
		}
		value, err := p.GetEntry(ref.Kind, ref.Name)
		if err != nil {
			return err
		}
		values[ref] = value
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if mode == patch.OverwritePatch {
		if _, err := tx.Exec("DELETE FROM patches WHERE name = ?", location); err != nil {
			return err
		}
	}

	patchID, existed, err := findOrCreatePatch(tx, location)
	if err != nil {
		return err
	}

	for _, ref := range p.Features() {
		if !sel.Contains(ref.Kind, ref.Name) {
			continue
		}
		switch ref.Kind {
		case features.KindBBox:
			if mode == patch.AddOnly && existed {
				if taken, err := columnSet(tx, patchID, "bbox"); err != nil {
					return err
				} else if taken {
					return fmt.Errorf("%w: bbox of %q", ErrFeatureExists, location)
				}
			}
			column, err := encodeBBox(p.BBox())
			if err != nil {
				return err
			}
			if err := updatePatchColumn(tx, patchID, "bbox", column); err != nil {
				return err
			}

		case features.KindTimestamps:
			if mode == patch.AddOnly && existed {
				if taken, err := columnSet(tx, patchID, "timestamps"); err != nil {
					return err
				} else if taken {
					return fmt.Errorf("%w: timestamps of %q", ErrFeatureExists, location)
				}
			}
			column, err := encodeTimestamps(p.Timestamps())
			if err != nil {
				return err
			}
			if err := updatePatchColumn(tx, patchID, "timestamps", column); err != nil {
				return err
			}

		default:
			if mode == patch.AddOnly {
				var one int
				err := tx.QueryRow("SELECT 1 FROM entries WHERE patch_id = ? AND kind = ? AND name = ?",
					patchID, string(ref.Kind), ref.Name).Scan(&one)
				if err == nil {
					return fmt.Errorf("%w: (%s, %s) of %q", ErrFeatureExists, ref.Kind, ref.Name, location)
				}
				if err != sql.ErrNoRows {
					return err
				}
			}
			payload, err := encodeValue(ref.Kind, values[ref])
			if err != nil {
				return err
			}
			_, err = tx.Exec(`INSERT INTO entries (entry_id, patch_id, kind, name, payload)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (patch_id, kind, name) DO UPDATE SET payload = excluded.payload`,
				newUUID(), patchID, string(ref.Kind), ref.Name, string(payload))
			if err != nil {
				return err
			}
		}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.Exec("UPDATE patches SET updated_at = ? WHERE patch_id = ?", now, patchID); err != nil {
		return err
	}
	return tx.Commit()
}

func findOrCreatePatch(tx *sql.Tx, name string) (patchID string, existed bool, err error) {
	err = tx.QueryRow("SELECT patch_id FROM patches WHERE name = ?", name).Scan(&patchID)
	if err == nil {
		return patchID, true, nil
	}
	if err != sql.ErrNoRows {
		return "", false, err
	}
	patchID = newUUID()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.Exec("INSERT INTO patches (patch_id, name, created_at, updated_at) VALUES (?, ?, ?, ?)",
		patchID, name, now, now)
	return patchID, false, err
}

func columnSet(tx *sql.Tx, patchID, column string) (bool, error) {
	var value sql.NullString
	// column is one of the fixed names "bbox" or "timestamps".
	err := tx.QueryRow("SELECT "+column+" FROM patches WHERE patch_id = ?", patchID).Scan(&value)
	if err != nil {
		return false, err
	}
	return value.Valid, nil
}

func updatePatchColumn(tx *sql.Tx, patchID, column string, value any) error {
	_, err := tx.Exec("UPDATE patches SET "+column+" = ? WHERE patch_id = ?", value, patchID)
	return err
}
