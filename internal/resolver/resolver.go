// Package resolver implements the cursor over a server-held queue of
// ambiguous evidence fragments. Each fragment offers mutually exclusive
// interpretations; exactly one is applied, whole, or the fragment is
// deferred. The queue is indexed by position, not identity: consuming a
// fragment shifts everything behind it forward.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"conceptforge/internal/logger"
	"conceptforge/internal/model"
)

// State is the resolver's position in its lifecycle
type State string

const (
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateSubmitting State = "submitting"
	StateExhausted  State = "exhausted" // terminal: nothing pending
)

// ConflictError means the queue changed between load and submit/skip. The
// resolver reloads the current index; the user decides again.
type ConflictError struct {
	FragmentID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("pending queue changed since fragment %s was loaded", e.FragmentID)
}

// ErrNoSelection is returned by Submit when no interpretation is selected.
var ErrNoSelection = errors.New("no interpretation selected")

// ErrExhausted is returned by operations invoked after the queue emptied.
var ErrExhausted = errors.New("pending queue exhausted")

// PendingItem is one positional fetch result. Fragment is nil when the
// requested index fell outside the queue.
type PendingItem struct {
	Index           int
	Total           int
	Fragment        *model.EvidenceFragment
	Interpretations []model.Interpretation
}

// DecisionAPI is the server collaborator behind the resolver.
type DecisionAPI interface {
	PendingAt(ctx context.Context, conceptID string, index int) (*PendingItem, error)
	SubmitDecision(ctx context.Context, conceptID string, d model.Decision) error
	SkipFragment(ctx context.Context, conceptID, fragmentID string) error
}

// Resolver works through one concept's pending queue.
type Resolver struct {
	mu  sync.Mutex
	api DecisionAPI
	log *logger.Logger

	conceptID string
	state     State
	index     int
	total     int
	fragment  *model.EvidenceFragment
	interps   []model.Interpretation
	selected  string
	lastErr   error
}

func New(conceptID string, api DecisionAPI, log *logger.Logger) *Resolver {
	return &Resolver{
		api:       api,
		log:       log.With("component", "resolver", "concept", conceptID),
		conceptID: conceptID,
		state:     StateLoading,
	}
}

// State returns the resolver's current state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Position returns the 0-based cursor and the queue length as of the last
// load. Displays render this as index+1 "of total".
func (r *Resolver) Position() (index, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index, r.total
}

// Fragment returns the loaded fragment, or nil.
func (r *Resolver) Fragment() *model.EvidenceFragment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fragment
}

// Interpretations returns the loaded fragment's competing interpretations.
func (r *Resolver) Interpretations() []model.Interpretation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interps
}

// Selected returns the currently selected interpretation id, if any.
func (r *Resolver) Selected() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected
}

// Err returns the error surfaced by the most recent failed operation.
func (r *Resolver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Load fetches the fragment at index, clamped into the queue's bounds. An
// empty queue yields the terminal Exhausted state.
func (r *Resolver) Load(ctx context.Context, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateExhausted {
		return ErrExhausted
	}
	return r.loadLocked(ctx, index, true)
}

// Select records a local interpretation choice. No network effect.
func (r *Resolver) Select(interpretationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateReady {
		return fmt.Errorf("select not valid in state %q", r.state)
	}
	for _, in := range r.interps {
		if in.ID == interpretationID {
			r.selected = interpretationID
			return nil
		}
	}
	return fmt.Errorf("unknown interpretation %q", interpretationID)
}

// Submit applies the selected interpretation in full: every one of its
// change ids is accepted, none rejected. On success the fragment is consumed
// server-side and the resolver reloads the same index of the shifted queue.
func (r *Resolver) Submit(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateReady {
		return fmt.Errorf("submit not valid in state %q", r.state)
	}
	if r.selected == "" {
		return ErrNoSelection
	}
	var chosen *model.Interpretation
	for i := range r.interps {
		if r.interps[i].ID == r.selected {
			chosen = &r.interps[i]
			break
		}
	}
	if chosen == nil {
		return fmt.Errorf("selected interpretation %q no longer present", r.selected)
	}

	d := model.Decision{
		FragmentID:        r.fragment.ID,
		InterpretationID:  chosen.ID,
		AcceptedChangeIDs: chosen.ChangeIDs(),
		RejectedChangeIDs: []string{},
	}
	r.state = StateSubmitting
	if err := r.api.SubmitDecision(ctx, r.conceptID, d); err != nil {
		return r.settleFailureLocked(ctx, err)
	}

	r.selected = ""
	r.lastErr = nil
	return r.loadLocked(ctx, r.index, false)
}

// Skip defers the current fragment without applying anything; it moves to
// the queue tail and will come around again.
func (r *Resolver) Skip(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateReady {
		return fmt.Errorf("skip not valid in state %q", r.state)
	}
	r.state = StateSubmitting
	if err := r.api.SkipFragment(ctx, r.conceptID, r.fragment.ID); err != nil {
		return r.settleFailureLocked(ctx, err)
	}

	r.selected = ""
	r.lastErr = nil
	return r.loadLocked(ctx, r.index, false)
}

// Prev moves the cursor back one position, clamped. Pure navigation.
func (r *Resolver) Prev(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateReady {
		return fmt.Errorf("prev not valid in state %q", r.state)
	}
	return r.loadLocked(ctx, r.index-1, true)
}

// Next moves the cursor forward one position, clamped. Pure navigation.
func (r *Resolver) Next(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateReady {
		return fmt.Errorf("next not valid in state %q", r.state)
	}
	return r.loadLocked(ctx, r.index+1, true)
}

// settleFailureLocked leaves the resolver safe to retry: Ready, selection
// preserved, fragment unchanged. A conflict additionally reloads the current
// index because the queue has demonstrably moved underneath us.
func (r *Resolver) settleFailureLocked(ctx context.Context, err error) error {
	r.state = StateReady
	r.lastErr = err

	var conflict *ConflictError
	if errors.As(err, &conflict) {
		r.log.Warn("decision conflict, reloading", "index", r.index)
		if loadErr := r.loadLocked(ctx, r.index, true); loadErr != nil {
			return err
		}
		r.lastErr = err
	}
	return err
}

// loadLocked fetches a position. clamp controls out-of-range handling:
// navigation clamps into bounds, while the reload after a consume treats an
// index beyond the shrunken queue as exhaustion.
func (r *Resolver) loadLocked(ctx context.Context, index int, clamp bool) error {
	if index < 0 {
		index = 0
	}
	r.state = StateLoading

	item, err := r.api.PendingAt(ctx, r.conceptID, index)
	if err != nil {
		r.state = StateReady
		r.lastErr = err
		return err
	}
	if item.Total == 0 {
		r.becomeExhaustedLocked()
		return nil
	}
	if item.Fragment == nil {
		// index past the end of a non-empty queue
		if !clamp {
			r.becomeExhaustedLocked()
			return nil
		}
		item, err = r.api.PendingAt(ctx, r.conceptID, item.Total-1)
		if err != nil {
			r.state = StateReady
			r.lastErr = err
			return err
		}
		if item.Total == 0 || item.Fragment == nil {
			r.becomeExhaustedLocked()
			return nil
		}
	}

	r.index = item.Index
	r.total = item.Total
	r.fragment = item.Fragment
	r.interps = item.Interpretations
	r.selected = ""
	r.state = StateReady
	r.lastErr = nil
	return nil
}

func (r *Resolver) becomeExhaustedLocked() {
	r.state = StateExhausted
	r.fragment = nil
	r.interps = nil
	r.selected = ""
	r.total = 0
	r.index = 0
}
