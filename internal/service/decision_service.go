package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"conceptforge/internal/logger"
	"conceptforge/internal/model"
	"conceptforge/internal/repository"
	"conceptforge/internal/resolver"
)

// ErrFragmentGone means the submitted fragment is no longer pending: the
// queue changed since the client loaded it. Handlers surface it as a
// conflict so the client reloads instead of assuming success.
var ErrFragmentGone = errors.New("fragment is no longer pending")

// DecisionService owns the pending-queue semantics: positional fetch,
// all-or-nothing application of an interpretation's structural changes, and
// defer-on-skip.
type DecisionService struct {
	pending repository.PendingRepo
	records repository.RecordRepo
	log     *logger.Logger
}

// NewDecisionService creates a new decision service
func NewDecisionService(pending repository.PendingRepo, records repository.RecordRepo, log *logger.Logger) *DecisionService {
	return &DecisionService{
		pending: pending,
		records: records,
		log:     log.With("component", "decisions"),
	}
}

// PendingAt returns the fragment at the 0-based queue position together with
// the queue length. Fragment is nil when index is past the end.
func (s *DecisionService) PendingAt(ctx context.Context, conceptID string, index int) (*resolver.PendingItem, error) {
	total, err := s.pending.CountPending(ctx, conceptID)
	if err != nil {
		return nil, err
	}
	item := &resolver.PendingItem{Index: index, Total: total}
	if total == 0 || index >= total {
		return item, nil
	}

	p, err := s.pending.GetAt(ctx, conceptID, index)
	if err != nil {
		return nil, err
	}
	if p == nil {
		// the queue shrank between count and fetch
		item.Total, err = s.pending.CountPending(ctx, conceptID)
		return item, err
	}
	item.Fragment = &p.Fragment
	item.Interpretations = p.Interpretations
	return item, nil
}

// Submit applies a decision. The chosen interpretation is applied in full:
// the accepted set must be exactly its change ids, and every structural
// change lands before the fragment is consumed. Partial application is not a
// valid state, so all changes are validated before the first one is applied.
func (s *DecisionService) Submit(ctx context.Context, conceptID string, d model.Decision) error {
	p, err := s.pending.GetByFragmentID(ctx, conceptID, d.FragmentID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrFragmentGone
	}

	var chosen *model.Interpretation
	for i := range p.Interpretations {
		if p.Interpretations[i].ID == d.InterpretationID {
			chosen = &p.Interpretations[i]
			break
		}
	}
	if chosen == nil {
		return fmt.Errorf("interpretation %q does not belong to fragment %s", d.InterpretationID, d.FragmentID)
	}
	if len(d.RejectedChangeIDs) != 0 {
		return fmt.Errorf("partial acceptance is not supported: %d changes rejected", len(d.RejectedChangeIDs))
	}
	if !sameIDSet(d.AcceptedChangeIDs, chosen.ChangeIDs()) {
		return fmt.Errorf("accepted change ids do not cover interpretation %q", chosen.ID)
	}

	if err := s.applyChanges(ctx, conceptID, chosen.Changes); err != nil {
		return err
	}

	d.DecidedAt = time.Now()
	if err := s.pending.MarkDecided(ctx, conceptID, d.FragmentID, d); err != nil {
		return err
	}
	s.log.Info("decision recorded",
		"concept", conceptID, "fragment", d.FragmentID,
		"interpretation", d.InterpretationID, "changes", len(chosen.Changes))
	return nil
}

// Skip defers the fragment to the queue tail.
func (s *DecisionService) Skip(ctx context.Context, conceptID, fragmentID string) error {
	p, err := s.pending.GetByFragmentID(ctx, conceptID, fragmentID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrFragmentGone
	}
	return s.pending.Defer(ctx, conceptID, fragmentID)
}

// applyChanges validates every change against the current record, then
// applies them in interpretation order.
func (s *DecisionService) applyChanges(ctx context.Context, conceptID string, changes []model.StructuralChange) error {
	for _, c := range changes {
		entry, err := s.records.Get(ctx, conceptID, c.Target)
		if err != nil {
			return err
		}
		if c.Before != "" && entry != nil && entry.Content != c.Before {
			return fmt.Errorf("change %s: record entry %q diverged from expected content", c.ID, c.Target)
		}
	}

	for _, c := range changes {
		switch c.Type {
		case model.ChangeRetireEntry:
			if err := s.records.Retire(ctx, conceptID, c.Target); err != nil {
				return err
			}
		default:
			entry := &model.RecordEntry{
				ConceptID: conceptID,
				Target:    c.Target,
				Content:   c.After,
			}
			if err := s.records.Put(ctx, entry); err != nil {
				return err
			}
		}
	}
	return nil
}

func sameIDSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			return false
		}
	}
	return true
}
