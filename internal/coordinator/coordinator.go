// Package coordinator holds the roster's selection-driven CRUD state: the
// record list with its filter and selection, the edit form with its
// validation and confirmation step, and the wiring between them.
//
// Presentation layers read snapshots and forward user intents; they never
// mutate records directly. Every successful create, update, or delete
// reloads the list from the store and clears the selection.
package coordinator

import (
	"context"

	"go.uber.org/zap"

	"github.com/kingrea/roster/internal/employee"
)

// Store is the remote list the coordinator reads and writes.
type Store interface {
	List(ctx context.Context) ([]employee.Record, error)
	Create(ctx context.Context, p employee.Payload) error
	Update(ctx context.Context, id int, p employee.Payload) error
	Delete(ctx context.Context, id int) error
}

// Snapshot is everything a presentation layer renders.
type Snapshot struct {
	List ListState
	Form FormState
}

// Coordinator wires a List and a Form together: selecting a record seeds the
// form, and a successful mutation refreshes the list and clears the selection.
type Coordinator struct {
	list   *List
	form   *Form
	logger *zap.Logger
}

// Option customizes coordinator construction.
type Option func(*Coordinator)

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// New builds a coordinator over store.
func New(store Store, opts ...Option) *Coordinator {
	c := &Coordinator{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.list = newList(store, c.logger.Named("list"))
	c.form = newForm(store, newMutationGuard(), c.logger.Named("form"))

	c.list.onSelect = c.form.ResetFor
	c.form.onSuccess = c.list.OnMutationSuccess
	c.form.onDeleted = c.list.OnMutationSuccess
	return c
}

// List returns the list coordinator.
func (c *Coordinator) List() *List {
	return c.list
}

// Form returns the form coordinator.
func (c *Coordinator) Form() *Form {
	return c.form
}

// Mount performs the initial load.
func (c *Coordinator) Mount(ctx context.Context) error {
	return c.list.Refresh(ctx)
}

// Snapshot returns the combined list and form state.
func (c *Coordinator) Snapshot() Snapshot {
	return Snapshot{List: c.list.State(), Form: c.form.State()}
}

// Subscribe registers fn to run after any list or form transition.
func (c *Coordinator) Subscribe(fn func()) func() {
	unsubList := c.list.Subscribe(fn)
	unsubForm := c.form.Subscribe(fn)
	return func() {
		unsubList()
		unsubForm()
	}
}

// NewRecord clears the selection so the form starts an empty draft.
func (c *Coordinator) NewRecord() {
	_ = c.list.Select(nil)
}
