package coordinator

import (
	"context"
	"maps"
	"sync"

	"go.uber.org/zap"

	"github.com/kingrea/roster/internal/employee"
)

// Confirmation is the action waiting for the user's yes/no.
type Confirmation int

const (
	ConfirmNone Confirmation = iota
	ConfirmSave
	ConfirmDelete
)

func (c Confirmation) String() string {
	switch c {
	case ConfirmSave:
		return "save"
	case ConfirmDelete:
		return "delete"
	default:
		return "none"
	}
}

// FormState is a snapshot of the form for rendering.
type FormState struct {
	Draft       employee.Draft
	FieldErrors employee.Errors
	Saving      bool
	LastError   string
	Pending     Confirmation
}

// Editing reports whether the draft belongs to a saved record.
func (s FormState) Editing() bool {
	return s.Draft.ID != nil
}

// Form owns the draft being edited and drives the store's mutating calls
// behind a confirmation step.
type Form struct {
	store  Store
	guard  *mutationGuard
	logger *zap.Logger

	mu          sync.Mutex
	draft       employee.Draft
	fieldErrors employee.Errors
	// saving counts mutating calls in flight; Saving is true while any runs.
	saving      int
	lastError   string
	pending     Confirmation
	// generation changes on every ResetFor so a call that finishes after the
	// draft was replaced does not write its outcome onto the new draft.
	generation uint64

	onSuccess func(context.Context)
	onDeleted func(context.Context)
	subs      observers
}

func newForm(store Store, guard *mutationGuard, logger *zap.Logger) *Form {
	return &Form{
		store:  store,
		guard:  guard,
		logger: logger,
		draft:  employee.NewDraft(),
	}
}

// State returns a copy of the current form state.
func (f *Form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FormState{
		Draft:       f.draft.Clone(),
		FieldErrors: maps.Clone(f.fieldErrors),
		Saving:      f.saving > 0,
		LastError:   f.lastError,
		Pending:     f.pending,
	}
}

// Subscribe registers fn to run after every form transition.
func (f *Form) Subscribe(fn func()) func() {
	return f.subs.subscribe(fn)
}

// SetField updates one draft field and clears that field's error.
func (f *Form) SetField(field employee.Field, value string) error {
	f.mu.Lock()
	if err := f.draft.Set(field, value); err != nil {
		f.mu.Unlock()
		return err
	}
	delete(f.fieldErrors, field)
	f.mu.Unlock()
	f.subs.notify()
	return nil
}

// RequestSave validates the draft and, when it passes, asks for confirmation.
func (f *Form) RequestSave() error {
	f.mu.Lock()
	f.lastError = ""
	if errs := employee.Validate(f.draft); len(errs) > 0 {
		f.fieldErrors = errs
		f.mu.Unlock()
		f.subs.notify()
		return &ValidationError{Fields: maps.Clone(errs)}
	}
	f.fieldErrors = nil
	f.pending = ConfirmSave
	f.mu.Unlock()
	f.subs.notify()
	return nil
}

// RequestDelete asks for confirmation to delete the record being edited.
func (f *Form) RequestDelete() error {
	f.mu.Lock()
	if f.draft.ID == nil {
		f.mu.Unlock()
		return ErrNotEditing
	}
	f.lastError = ""
	f.pending = ConfirmDelete
	f.mu.Unlock()
	f.subs.notify()
	return nil
}

// DismissConfirmation drops the pending action without side effects.
func (f *Form) DismissConfirmation() {
	f.mu.Lock()
	f.pending = ConfirmNone
	f.mu.Unlock()
	f.subs.notify()
}

// ResetFor replaces the draft with a copy of rec, or an empty draft when rec
// is nil, and clears errors and any pending confirmation.
func (f *Form) ResetFor(rec *employee.Record) {
	f.mu.Lock()
	if rec == nil {
		f.draft = employee.NewDraft()
	} else {
		f.draft = employee.DraftFrom(*rec)
	}
	f.fieldErrors = nil
	f.lastError = ""
	f.pending = ConfirmNone
	f.generation++
	f.mu.Unlock()
	f.subs.notify()
}

// Confirm runs the pending action against the store. On failure the error is
// kept in LastError and the confirmation stays pending so the user can retry.
func (f *Form) Confirm(ctx context.Context) error {
	f.mu.Lock()
	switch f.pending {
	case ConfirmSave:
		return f.confirmSave(ctx)
	case ConfirmDelete:
		return f.confirmDelete(ctx)
	default:
		f.mu.Unlock()
		return ErrNothingPending
	}
}

// confirmSave is entered with f.mu held.
func (f *Form) confirmSave(ctx context.Context) error {
	payload, err := f.draft.Payload()
	if err != nil {
		errs := employee.Validate(f.draft)
		f.fieldErrors = errs
		f.pending = ConfirmNone
		f.mu.Unlock()
		f.subs.notify()
		return &ValidationError{Fields: maps.Clone(errs)}
	}
	draft := f.draft.Clone()
	key := guardKey(draft.ID)
	if !f.guard.acquire(key) {
		f.mu.Unlock()
		return ErrMutationInFlight
	}
	gen := f.begin()

	var callErr error
	if draft.ID != nil {
		callErr = f.store.Update(ctx, *draft.ID, payload)
	} else {
		callErr = f.store.Create(ctx, payload)
	}
	f.guard.release(key)

	if callErr != nil {
		f.logger.Warn("save failed", zap.String("record", key), zap.Error(callErr))
		f.finish(gen, callErr)
		return callErr
	}
	f.logger.Info("record saved", zap.String("record", key), zap.String("name", payload.Name))
	f.finish(gen, nil)
	if f.onSuccess != nil {
		f.onSuccess(ctx)
	}
	return nil
}

// confirmDelete is entered with f.mu held.
func (f *Form) confirmDelete(ctx context.Context) error {
	if f.draft.ID == nil {
		f.pending = ConfirmNone
		f.mu.Unlock()
		f.subs.notify()
		return ErrNotEditing
	}
	id := *f.draft.ID
	key := guardKey(&id)
	if !f.guard.acquire(key) {
		f.mu.Unlock()
		return ErrMutationInFlight
	}
	gen := f.begin()

	callErr := f.store.Delete(ctx, id)
	f.guard.release(key)

	if callErr != nil {
		f.logger.Warn("delete failed", zap.Int("id", id), zap.Error(callErr))
		f.finish(gen, callErr)
		return callErr
	}
	f.logger.Info("record deleted", zap.Int("id", id))
	f.finish(gen, nil)
	if f.onDeleted != nil {
		f.onDeleted(ctx)
	}
	return nil
}

// begin marks the form busy, releases f.mu, and returns the draft generation
// the call belongs to.
func (f *Form) begin() uint64 {
	f.saving++
	f.lastError = ""
	gen := f.generation
	f.mu.Unlock()
	f.subs.notify()
	return gen
}

// finish releases the call's share of the busy flag and records the
// outcome. Outcomes of calls whose draft has since been replaced are only
// logged by the caller.
func (f *Form) finish(gen uint64, callErr error) {
	f.mu.Lock()
	f.saving--
	if gen == f.generation {
		if callErr != nil {
			f.lastError = callErr.Error()
		} else {
			f.pending = ConfirmNone
		}
	}
	f.mu.Unlock()
	f.subs.notify()
}
