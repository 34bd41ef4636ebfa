package service

import (
	"context"

	"conceptforge/internal/cache"
	"conceptforge/internal/logger"
	"conceptforge/internal/model"
	"conceptforge/internal/repository"
)

// SessionService persists wizard sessions for cross-device resume: mongo for
// the durable record, redis for the hot blob. Saves are last-writer-wins;
// there is no merge for concurrent edits under the same key.
type SessionService struct {
	repo  repository.SessionRepo
	cache cache.SessionCache
	log   *logger.Logger
}

// NewSessionService creates a new session service
func NewSessionService(repo repository.SessionRepo, sessionCache cache.SessionCache, log *logger.Logger) *SessionService {
	return &SessionService{
		repo:  repo,
		cache: sessionCache,
		log:   log.With("component", "sessions"),
	}
}

// Save mirrors the full session state. Status is derived from the wizard
// state: a completed wizard closes the record.
func (s *SessionService) Save(ctx context.Context, sess *model.WizardSession) error {
	status := model.SessionActive
	if sess.State == model.StateComplete {
		status = model.SessionCompleted
	}

	rec := &model.SessionRecord{
		Key:         sess.Key,
		ConceptName: sess.ConceptName,
		Stage:       string(sess.State),
		Status:      status,
		State:       *sess,
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return err
	}

	if status == model.SessionActive {
		if err := s.cache.Set(ctx, sess); err != nil {
			s.log.Warn("session cache set failed", "key", sess.Key, "error", err)
		}
	} else {
		if err := s.cache.Delete(ctx, sess.Key); err != nil {
			s.log.Warn("session cache delete failed", "key", sess.Key, "error", err)
		}
	}
	return nil
}

// Get loads a session, preferring the cache. Reads touch the record's
// last-access timestamp.
func (s *SessionService) Get(ctx context.Context, key string) (*model.WizardSession, error) {
	if sess, err := s.cache.Get(ctx, key); err == nil && sess != nil {
		if err := s.repo.TouchAccess(ctx, key); err != nil {
			s.log.Warn("session touch failed", "key", key, "error", err)
		}
		return sess, nil
	}

	rec, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	if err := s.repo.TouchAccess(ctx, key); err != nil {
		s.log.Warn("session touch failed", "key", key, "error", err)
	}

	sess := rec.State
	if rec.Status == model.SessionActive {
		if err := s.cache.Set(ctx, &sess); err != nil {
			s.log.Warn("session cache backfill failed", "key", key, "error", err)
		}
	}
	return &sess, nil
}

// Abandon closes an active session without a concept draft.
func (s *SessionService) Abandon(ctx context.Context, key string) error {
	if err := s.repo.SetStatus(ctx, key, model.SessionAbandoned); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		s.log.Warn("session cache delete failed", "key", key, "error", err)
	}
	return nil
}
