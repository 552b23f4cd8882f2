// ABOUTME: Badger key-value storage implementation for sessions and completions
// ABOUTME: Embedded alternative backend, selectable in config and via migrate

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/harper/courserun/internal/models"
)

// Key layout:
//
//	session/<id>             session JSON
//	active                   active session id
//	completion/<id>          completion JSON
//	completion-session/<sid> completion id
const (
	sessionPrefix           = "session/"
	completionPrefix        = "completion/"
	completionSessionPrefix = "completion-session/"
	activeKey               = "active"
)

// BadgerDB implements Repository on an embedded Badger store.
type BadgerDB struct {
	db   *badger.DB
	path string
}

// Compile-time check that BadgerDB implements Repository.
var _ Repository = (*BadgerDB)(nil)

// NewBadgerDB opens (or creates) a Badger store in dir.
func NewBadgerDB(dir string) (*BadgerDB, error) {
	if err := os.MkdirAll(dir, 0750); err != nil { //nolint:gosec // 0750 is appropriate for user data directory
		return nil, fmt.Errorf("create directory: %w", err)
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerDB{db: db, path: dir}, nil
}

// Close closes the store.
func (b *BadgerDB) Close() error {
	return b.db.Close()
}

// Reset removes every key.
func (b *BadgerDB) Reset() error {
	return b.db.DropAll()
}

func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return txn.Set([]byte(key), data)
}

func getString(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return string(val), nil
}

// scanPrefix decodes every value under prefix with decode.
func scanPrefix(txn *badger.Txn, prefix string, decode func([]byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		if err := it.Item().Value(decode); err != nil {
			return err
		}
	}
	return nil
}

// PutSession stores a session without changing the active pointer.
func (b *BadgerDB) PutSession(sess *models.TrackingSession) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, sessionPrefix+sess.ID.String(), sess)
	})
}

// SaveActiveSession stores the session and marks it active.
func (b *BadgerDB) SaveActiveSession(sess *models.TrackingSession) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, sessionPrefix+sess.ID.String(), sess); err != nil {
			return err
		}
		return txn.Set([]byte(activeKey), []byte(sess.ID.String()))
	})
}

// LoadActiveSession returns the session the active pointer names.
func (b *BadgerDB) LoadActiveSession() (*models.TrackingSession, error) {
	var sess models.TrackingSession
	err := b.db.View(func(txn *badger.Txn) error {
		id, err := getString(txn, activeKey)
		if err != nil {
			return err
		}
		return getJSON(txn, sessionPrefix+id, &sess)
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// ClearActiveSession drops the active pointer and deletes the session unless
// a completion references it.
func (b *BadgerDB) ClearActiveSession() error {
	return b.db.Update(func(txn *badger.Txn) error {
		id, err := getString(txn, activeKey)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete([]byte(activeKey)); err != nil {
			return fmt.Errorf("clear active session: %w", err)
		}
		_, err = getString(txn, completionSessionPrefix+id)
		if errors.Is(err, ErrNotFound) {
			return txn.Delete([]byte(sessionPrefix + id))
		}
		return err
	})
}

// GetSession retrieves a session by its UUID.
func (b *BadgerDB) GetSession(id uuid.UUID) (*models.TrackingSession, error) {
	var sess models.TrackingSession
	err := b.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, sessionPrefix+id.String(), &sess)
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListSessions returns all sessions, newest first.
func (b *BadgerDB) ListSessions() ([]*models.TrackingSession, error) {
	var sessions []*models.TrackingSession
	err := b.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, sessionPrefix, func(val []byte) error {
			var sess models.TrackingSession
			if err := json.Unmarshal(val, &sess); err != nil {
				return fmt.Errorf("decode session: %w", err)
			}
			sessions = append(sessions, &sess)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})
	return sessions, nil
}

// RecordCompletion stores the completion together with its track.
func (b *BadgerDB) RecordCompletion(c *models.Completion, track *models.TrackingSession) error {
	if track == nil || track.ID != c.Summary.SessionID {
		return fmt.Errorf("record completion: track does not match session %s", c.Summary.SessionID)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		sid := track.ID.String()
		_, err := getString(txn, completionSessionPrefix+sid)
		if err == nil {
			return fmt.Errorf("session %s: %w", sid, ErrAlreadyRecorded)
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := setJSON(txn, sessionPrefix+sid, track); err != nil {
			return err
		}
		if err := setJSON(txn, completionPrefix+c.ID.String(), c); err != nil {
			return err
		}
		return txn.Set([]byte(completionSessionPrefix+sid), []byte(c.ID.String()))
	})
}

// GetCompletion retrieves a completion by its UUID.
func (b *BadgerDB) GetCompletion(id uuid.UUID) (*models.Completion, error) {
	var c models.Completion
	err := b.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, completionPrefix+id.String(), &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCompletionBySession retrieves the completion recorded for a session.
func (b *BadgerDB) GetCompletionBySession(sessionID uuid.UUID) (*models.Completion, error) {
	var c models.Completion
	err := b.db.View(func(txn *badger.Txn) error {
		id, err := getString(txn, completionSessionPrefix+sessionID.String())
		if err != nil {
			return err
		}
		return getJSON(txn, completionPrefix+id, &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCompletions returns all completions, newest first.
func (b *BadgerDB) ListCompletions() ([]*models.Completion, error) {
	var completions []*models.Completion
	err := b.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, completionPrefix, func(val []byte) error {
			var c models.Completion
			if err := json.Unmarshal(val, &c); err != nil {
				return fmt.Errorf("decode completion: %w", err)
			}
			completions = append(completions, &c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(completions, func(i, j int) bool {
		return completions[i].RecordedAt.After(completions[j].RecordedAt)
	})
	return completions, nil
}

// DeleteCompletion removes a completion. Its track stays.
func (b *BadgerDB) DeleteCompletion(id uuid.UUID) error {
	return b.db.Update(func(txn *badger.Txn) error {
		var c models.Completion
		if err := getJSON(txn, completionPrefix+id.String(), &c); err != nil {
			return err
		}
		if err := txn.Delete([]byte(completionPrefix + id.String())); err != nil {
			return err
		}
		return txn.Delete([]byte(completionSessionPrefix + c.Summary.SessionID.String()))
	})
}
