// ABOUTME: Behavior tests shared by every Repository implementation
// ABOUTME: Runs the same scenarios against SQLite and Badger backends

package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

// testBadger opens a temporary Badger store.
func testBadger(t *testing.T) *BadgerDB {
	t.Helper()
	db, err := NewBadgerDB(filepath.Join(t.TempDir(), "badger"))
	if err != nil {
		t.Fatalf("failed to open badger: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func forEachBackend(t *testing.T, fn func(t *testing.T, repo Repository)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) { fn(t, testDB(t)) })
	t.Run("badger", func(t *testing.T) { fn(t, testBadger(t)) })
}

func TestActiveSession_RoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		sess := testSession("river", 5)
		if err := repo.SaveActiveSession(sess); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		got, err := repo.LoadActiveSession()
		if err != nil {
			t.Fatalf("failed to load: %v", err)
		}
		if got.ID != sess.ID || got.CourseID != sess.CourseID {
			t.Errorf("got %s/%s, want %s/%s", got.ID, got.CourseID, sess.ID, sess.CourseID)
		}
		if !got.StartTime.Equal(sess.StartTime) {
			t.Errorf("start time %v, want %v", got.StartTime, sess.StartTime)
		}
		if got.IsActive != sess.IsActive {
			t.Errorf("is_active %v, want %v", got.IsActive, sess.IsActive)
		}
		if len(got.Fixes) != len(sess.Fixes) {
			t.Fatalf("got %d fixes, want %d", len(got.Fixes), len(sess.Fixes))
		}
		for i := range sess.Fixes {
			want, have := sess.Fixes[i], got.Fixes[i]
			if want.Lat != have.Lat || want.Lng != have.Lng || want.Accuracy != have.Accuracy {
				t.Errorf("fix %d: got %+v, want %+v", i, have, want)
			}
			if !want.Timestamp.Equal(have.Timestamp) {
				t.Errorf("fix %d timestamp: got %v, want %v", i, have.Timestamp, want.Timestamp)
			}
			if have.Speed == nil || *have.Speed != *want.Speed {
				t.Errorf("fix %d speed not preserved", i)
			}
			if have.Heading != nil {
				t.Errorf("fix %d heading should stay nil", i)
			}
		}
	})
}

func TestActiveSession_Overwrite(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		sess := testSession("river", 2)
		if err := repo.SaveActiveSession(sess); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		sess.Fixes = append(sess.Fixes, sess.Fixes[0])
		end := t0.Add(time.Hour)
		sess.EndTime = &end
		sess.IsActive = false
		if err := repo.SaveActiveSession(sess); err != nil {
			t.Fatalf("failed to save again: %v", err)
		}

		got, err := repo.LoadActiveSession()
		if err != nil {
			t.Fatalf("failed to load: %v", err)
		}
		if len(got.Fixes) != 3 {
			t.Errorf("got %d fixes, want 3", len(got.Fixes))
		}
		if got.IsActive {
			t.Error("expected inactive session")
		}
		if got.EndTime == nil || !got.EndTime.Equal(end) {
			t.Errorf("end time %v, want %v", got.EndTime, end)
		}

		sessions, err := repo.ListSessions()
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(sessions) != 1 {
			t.Errorf("got %d sessions, want 1", len(sessions))
		}
	})
}

func TestLoadActiveSession_NotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		_, err := repo.LoadActiveSession()
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})
}

func TestClearActiveSession(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		if err := repo.ClearActiveSession(); err != nil {
			t.Fatalf("clear on empty store: %v", err)
		}

		sess := testSession("river", 2)
		if err := repo.SaveActiveSession(sess); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		if err := repo.ClearActiveSession(); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}

		if _, err := repo.LoadActiveSession(); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
		if _, err := repo.GetSession(sess.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("unrecorded session should be deleted, got %v", err)
		}
	})
}

func TestClearActiveSession_KeepsRecordedTrack(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		sess := testSession("river", 4)
		if err := repo.SaveActiveSession(sess); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		c := testCompletion(sess, t0.Add(time.Hour))
		if err := repo.RecordCompletion(c, sess); err != nil {
			t.Fatalf("failed to record: %v", err)
		}
		if err := repo.ClearActiveSession(); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}

		if _, err := repo.LoadActiveSession(); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
		track, err := repo.GetSession(sess.ID)
		if err != nil {
			t.Fatalf("recorded track should remain: %v", err)
		}
		if len(track.Fixes) != 4 {
			t.Errorf("got %d fixes, want 4", len(track.Fixes))
		}
	})
}

func TestRecordCompletion(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		sess := testSession("river", 4)
		c := testCompletion(sess, t0.Add(time.Hour))
		if err := repo.RecordCompletion(c, sess); err != nil {
			t.Fatalf("failed to record: %v", err)
		}

		got, err := repo.GetCompletion(c.ID)
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if got.Summary.SessionID != sess.ID {
			t.Errorf("session id %s, want %s", got.Summary.SessionID, sess.ID)
		}
		if got.Result.Recommendation != c.Result.Recommendation {
			t.Errorf("recommendation %s, want %s", got.Result.Recommendation, c.Result.Recommendation)
		}
		if got.Summary.Elapsed != 30*time.Minute {
			t.Errorf("elapsed %s, want 30m", got.Summary.Elapsed)
		}

		bySession, err := repo.GetCompletionBySession(sess.ID)
		if err != nil {
			t.Fatalf("failed to get by session: %v", err)
		}
		if bySession.ID != c.ID {
			t.Errorf("got completion %s, want %s", bySession.ID, c.ID)
		}

		if _, err := repo.GetSession(sess.ID); err != nil {
			t.Errorf("track should be stored with completion: %v", err)
		}
	})
}

func TestRecordCompletion_Duplicate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		sess := testSession("river", 2)
		if err := repo.RecordCompletion(testCompletion(sess, t0), sess); err != nil {
			t.Fatalf("failed to record: %v", err)
		}
		err := repo.RecordCompletion(testCompletion(sess, t0), sess)
		if !errors.Is(err, ErrAlreadyRecorded) {
			t.Errorf("got %v, want ErrAlreadyRecorded", err)
		}
	})
}

func TestRecordCompletion_TrackMismatch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		sess := testSession("river", 2)
		other := testSession("river", 2)
		if err := repo.RecordCompletion(testCompletion(sess, t0), other); err == nil {
			t.Error("expected error for mismatched track")
		}
	})
}

func TestListCompletions_NewestFirst(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		var ids []uuid.UUID
		for i := 0; i < 3; i++ {
			sess := testSession("river", 2)
			c := testCompletion(sess, t0.Add(time.Duration(i)*time.Hour))
			if err := repo.RecordCompletion(c, sess); err != nil {
				t.Fatalf("failed to record: %v", err)
			}
			ids = append(ids, c.ID)
		}

		list, err := repo.ListCompletions()
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(list) != 3 {
			t.Fatalf("got %d completions, want 3", len(list))
		}
		if list[0].ID != ids[2] || list[2].ID != ids[0] {
			t.Error("completions not sorted newest first")
		}
	})
}

func TestDeleteCompletion(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		sess := testSession("river", 2)
		c := testCompletion(sess, t0)
		if err := repo.RecordCompletion(c, sess); err != nil {
			t.Fatalf("failed to record: %v", err)
		}
		if err := repo.DeleteCompletion(c.ID); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := repo.GetCompletion(c.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
		if _, err := repo.GetCompletionBySession(sess.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
		if err := repo.DeleteCompletion(c.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("second delete: got %v, want ErrNotFound", err)
		}
		// The session may be recorded again once its completion is gone.
		if err := repo.RecordCompletion(testCompletion(sess, t0), sess); err != nil {
			t.Errorf("re-record after delete: %v", err)
		}
	})
}

func TestGetCompletion_NotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		if _, err := repo.GetCompletion(uuid.New()); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
		if _, err := repo.GetSession(uuid.New()); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})
}

func TestReset(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		sess := testSession("river", 2)
		if err := repo.SaveActiveSession(sess); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		if err := repo.RecordCompletion(testCompletion(sess, t0), sess); err != nil {
			t.Fatalf("failed to record: %v", err)
		}

		if err := repo.Reset(); err != nil {
			t.Fatalf("failed to reset: %v", err)
		}

		sessions, err := repo.ListSessions()
		if err != nil {
			t.Fatalf("failed to list sessions: %v", err)
		}
		completions, err := repo.ListCompletions()
		if err != nil {
			t.Fatalf("failed to list completions: %v", err)
		}
		if len(sessions) != 0 || len(completions) != 0 {
			t.Errorf("got %d sessions and %d completions after reset", len(sessions), len(completions))
		}
		if _, err := repo.LoadActiveSession(); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})
}

func TestImplementsRepository(t *testing.T) {
	var _ Repository = (*SQLiteDB)(nil)
	var _ Repository = (*BadgerDB)(nil)
}
