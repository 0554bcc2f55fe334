package coordinator

import (
	"context"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kingrea/roster/internal/employee"
)

// ListState is a snapshot of the list for rendering.
type ListState struct {
	Records   []employee.Record
	Filter    string
	Filtered  []employee.Record
	Loading   bool
	LoadError string
	Selected  *employee.Record
}

// List owns the authoritative record set, the name filter, and the single
// selection.
type List struct {
	store  Store
	logger *zap.Logger

	mu        sync.Mutex
	records   []employee.Record
	filter    string
	filtered  []employee.Record
	inFlight  int
	loadError string
	// selected refers into records by ID; it is never a copy that could drift.
	selected    int
	hasSelected bool

	onSelect func(*employee.Record)
	subs     observers
}

func newList(store Store, logger *zap.Logger) *List {
	return &List{store: store, logger: logger}
}

// State returns a copy of the current list state.
func (l *List) State() ListState {
	l.mu.Lock()
	defer l.mu.Unlock()
	state := ListState{
		Records:   slices.Clone(l.records),
		Filter:    l.filter,
		Filtered:  slices.Clone(l.filtered),
		Loading:   l.inFlight > 0,
		LoadError: l.loadError,
	}
	if rec, ok := l.lookup(l.selected); ok && l.hasSelected {
		state.Selected = &rec
	}
	return state
}

// Subscribe registers fn to run after every list transition.
func (l *List) Subscribe(fn func()) func() {
	return l.subs.subscribe(fn)
}

// Refresh reloads the records from the store. Overlapping refreshes are not
// coalesced; the last one to finish decides the records.
func (l *List) Refresh(ctx context.Context) error {
	l.mu.Lock()
	l.inFlight++
	l.mu.Unlock()
	l.subs.notify()

	records, err := l.store.List(ctx)

	l.mu.Lock()
	l.inFlight--
	dropped := false
	if err != nil {
		l.loadError = err.Error()
	} else {
		l.records = records
		l.loadError = ""
		l.applyFilter()
		if l.hasSelected {
			if _, ok := l.lookup(l.selected); !ok {
				l.hasSelected = false
				dropped = true
			}
		}
	}
	onSelect := l.onSelect
	l.mu.Unlock()

	if err != nil {
		l.logger.Warn("refresh failed", zap.Error(err))
	} else {
		l.logger.Debug("refreshed", zap.Int("records", len(records)))
	}
	if dropped && onSelect != nil {
		onSelect(nil)
	}
	l.subs.notify()
	return err
}

// Select makes rec the current selection, or clears it when rec is nil. The
// record must be part of the current collection.
func (l *List) Select(rec *employee.Record) error {
	if rec == nil {
		l.setSelection(0, false)
		return nil
	}
	return l.SelectByID(rec.ID)
}

// SelectByID selects the record with the given ID.
func (l *List) SelectByID(id int) error {
	l.mu.Lock()
	_, ok := l.lookup(id)
	l.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	l.setSelection(id, true)
	return nil
}

func (l *List) setSelection(id int, has bool) {
	l.mu.Lock()
	l.selected = id
	l.hasSelected = has
	var chosen *employee.Record
	if has {
		if rec, ok := l.lookup(id); ok {
			chosen = &rec
		}
	}
	onSelect := l.onSelect
	l.mu.Unlock()

	if onSelect != nil {
		onSelect(chosen)
	}
	l.subs.notify()
}

// OnMutationSuccess reloads the list and then clears the selection so the
// form returns to create mode.
func (l *List) OnMutationSuccess(ctx context.Context) {
	_ = l.Refresh(ctx)
	l.setSelection(0, false)
}

// SetFilter narrows the visible records by a case-insensitive name match. It
// never changes the selection.
func (l *List) SetFilter(text string) {
	l.mu.Lock()
	l.filter = text
	l.applyFilter()
	l.mu.Unlock()
	l.subs.notify()
}

// applyFilter recomputes filtered; l.mu must be held.
func (l *List) applyFilter() {
	needle := strings.ToLower(l.filter)
	if needle == "" {
		l.filtered = slices.Clone(l.records)
		return
	}
	out := make([]employee.Record, 0, len(l.records))
	for _, rec := range l.records {
		if strings.Contains(strings.ToLower(rec.Name), needle) {
			out = append(out, rec)
		}
	}
	l.filtered = out
}

// lookup finds id in records; l.mu must be held.
func (l *List) lookup(id int) (employee.Record, bool) {
	for _, rec := range l.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return employee.Record{}, false
}
