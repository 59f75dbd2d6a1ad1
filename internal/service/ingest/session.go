package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"assetdrop/internal/domain"
	models "assetdrop/internal/domain/models/ingest"
)

// session is one user's in-progress batch. The batch is only touched while mu is held.
type session struct {
	mu       sync.Mutex
	batch    *models.Batch
	notes    *Collector
	lastUsed time.Time

	// guarded by SessionStore.mu
	cancel     context.CancelFunc // set while a submit is running
	submitting bool
	closed     bool
}

// SessionStore keeps the process-local batches. Nothing in here is persisted.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[models.BatchID]*session
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessionStore creates an empty store.
func NewSessionStore(logger *slog.Logger) *SessionStore {
	return &SessionStore{
		sessions: make(map[models.BatchID]*session),
		logger:   logger,
		now:      time.Now,
	}
}

func (s *SessionStore) open(batch *models.Batch, notes *Collector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[batch.ID] = &session{
		batch:    batch,
		notes:    notes,
		lastUsed: s.now(),
	}
	activeSessions.Inc()
}

// acquire returns the user's session locked. The caller must call release.
// A session in the middle of a submit reports ErrBatchBusy instead of blocking.
func (s *SessionStore) acquire(batchID models.BatchID, userID string) (*session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[batchID]
	if !ok || sess.closed || sess.batch.UserID != userID {
		s.mu.Unlock()
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("batch %s not found", batchID)}
	}
	busy := sess.submitting
	s.mu.Unlock()

	if busy || !sess.mu.TryLock() {
		return nil, fmt.Errorf("batch %s: %w", batchID, domain.ErrBatchBusy)
	}

	// Discard may have won the race between the lookup and the lock.
	s.mu.Lock()
	closed := sess.closed
	s.mu.Unlock()
	if closed {
		sess.mu.Unlock()
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("batch %s not found", batchID)}
	}
	return sess, nil
}

func (s *SessionStore) release(sess *session) {
	sess.lastUsed = s.now()
	sess.mu.Unlock()
}

// beginSubmit marks the session as submitting and registers its cancel func.
func (s *SessionStore) beginSubmit(sess *session, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.submitting = true
	sess.cancel = cancel
}

func (s *SessionStore) endSubmit(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.submitting = false
	sess.cancel = nil
}

func (s *SessionStore) isClosed(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.closed
}

// detach removes a session from the store, cancels a running submit and
// returns the session. It returns nil if the session is unknown or not the user's.
// An empty userID skips the ownership check (janitor).
func (s *SessionStore) detach(batchID models.BatchID, userID string) *session {
	s.mu.Lock()
	sess, ok := s.sessions[batchID]
	if !ok || (userID != "" && sess.batch.UserID != userID) {
		s.mu.Unlock()
		return nil
	}
	delete(s.sessions, batchID)
	sess.closed = true
	cancel := sess.cancel
	s.mu.Unlock()

	activeSessions.Dec()
	if cancel != nil {
		cancel()
	}
	return sess
}

// close drops a session whose batch has been fully committed.
// The caller holds sess.mu.
func (s *SessionStore) close(sess *session) {
	s.mu.Lock()
	if _, ok := s.sessions[sess.batch.ID]; ok {
		delete(s.sessions, sess.batch.ID)
		activeSessions.Dec()
	}
	sess.closed = true
	s.mu.Unlock()
}

// idle returns the ids of sessions unused since before cutoff and not submitting.
func (s *SessionStore) idle(cutoff time.Time) []models.BatchID {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []models.BatchID
	for id, sess := range s.sessions {
		if sess.submitting {
			continue
		}
		if !sess.mu.TryLock() {
			continue
		}
		if sess.lastUsed.Before(cutoff) {
			ids = append(ids, id)
		}
		sess.mu.Unlock()
	}
	return ids
}

// Len returns the number of open sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// discard detaches a session and releases every payload it still holds.
// A running submit is cancelled first; discard waits for it to return.
func (s *SessionStore) discard(batchID models.BatchID, userID string) bool {
	sess := s.detach(batchID, userID)
	if sess == nil {
		return false
	}
	sess.mu.Lock()
	releaseAll(sess.batch.Nodes(), s.logger)
	sess.mu.Unlock()
	return true
}

// ExpireIdle discards sessions unused for longer than timeout and returns how many.
func (s *SessionStore) ExpireIdle(timeout time.Duration) int {
	expired := 0
	for _, id := range s.idle(s.now().Add(-timeout)) {
		if s.discard(id, "") {
			expired++
			s.logger.Info("batch session expired", "batch_id", id)
		}
	}
	return expired
}

// RunJanitor expires idle sessions every interval until ctx is done.
func (s *SessionStore) RunJanitor(ctx context.Context, interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ExpireIdle(timeout)
		}
	}
}
