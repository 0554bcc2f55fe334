package coordinator

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kingrea/roster/internal/employee"
	"github.com/kingrea/roster/internal/store"
)

type call struct {
	Op      string
	ID      int
	Payload employee.Payload
}

type fakeStore struct {
	mu        sync.Mutex
	records   []employee.Record
	calls     []call
	listErr   error
	createErr error
	updateErr error
	deleteErr error
	// block, when set, holds mutating calls until it is closed.
	block chan struct{}
	// gates hold mutating calls of one op ("create", "update", "delete")
	// until the op's channel is closed.
	gates   map[string]chan struct{}
	started chan struct{}
}

func (s *fakeStore) record(c call) {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
}

func (s *fakeStore) wait(op string) {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	if gate, ok := s.gates[op]; ok {
		<-gate
	}
}

func (s *fakeStore) List(context.Context) ([]employee.Record, error) {
	s.record(call{Op: "list"})
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]employee.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *fakeStore) Create(_ context.Context, p employee.Payload) error {
	s.record(call{Op: "create", Payload: p})
	s.wait("create")
	return s.createErr
}

func (s *fakeStore) Update(_ context.Context, id int, p employee.Payload) error {
	s.record(call{Op: "update", ID: id, Payload: p})
	s.wait("update")
	return s.updateErr
}

func (s *fakeStore) Delete(_ context.Context, id int) error {
	s.record(call{Op: "delete", ID: id})
	s.wait("delete")
	return s.deleteErr
}

func (s *fakeStore) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (s *fakeStore) mutations() []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []call
	for _, c := range s.calls {
		if c.Op != "list" {
			out = append(out, c)
		}
	}
	return out
}

func ann() employee.Record {
	return employee.Record{ID: 1, Name: "Ann", HireDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), JobDescription: "Eng"}
}

func newMounted(t *testing.T, fs *fakeStore) *Coordinator {
	t.Helper()
	c := New(fs)
	if err := c.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	return c
}

func TestRefreshAndFilter(t *testing.T) {
	fs := &fakeStore{records: []employee.Record{ann()}}
	c := newMounted(t, fs)
	state := c.List().State()
	if len(state.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(state.Records))
	}
	if state.Loading {
		t.Fatalf("loading should be cleared after refresh")
	}

	c.List().SetFilter("an")
	if got := len(c.List().State().Filtered); got != 1 {
		t.Fatalf("filtered(an) = %d, want 1", got)
	}
	c.List().SetFilter("zz")
	if got := len(c.List().State().Filtered); got != 0 {
		t.Fatalf("filtered(zz) = %d, want 0", got)
	}
	c.List().SetFilter("")
	state = c.List().State()
	if diff := cmp.Diff(state.Records, state.Filtered); diff != "" {
		t.Fatalf("empty filter should show every record (-records +filtered):\n%s", diff)
	}
}

func TestFilterIsCaseInsensitiveAndKeepsSelection(t *testing.T) {
	bob := employee.Record{ID: 2, Name: "Bob Stone", HireDate: time.Date(2019, 3, 4, 0, 0, 0, 0, time.UTC), JobDescription: "Ops"}
	fs := &fakeStore{records: []employee.Record{ann(), bob}}
	c := newMounted(t, fs)
	if err := c.List().SelectByID(1); err != nil {
		t.Fatalf("select: %v", err)
	}
	c.List().SetFilter("STONE")
	state := c.List().State()
	if len(state.Filtered) != 1 || state.Filtered[0].ID != 2 {
		t.Fatalf("filtered = %+v", state.Filtered)
	}
	if state.Selected == nil || state.Selected.ID != 1 {
		t.Fatalf("selection must survive filtering, got %+v", state.Selected)
	}
}

func TestRefreshFailureSetsLoadError(t *testing.T) {
	fs := &fakeStore{listErr: &store.TransportError{Op: store.OpList, Status: http.StatusInternalServerError, Body: "boom"}}
	c := New(fs)
	if err := c.Mount(context.Background()); err == nil {
		t.Fatalf("expected mount error")
	}
	state := c.List().State()
	if state.Loading {
		t.Fatalf("loading must be cleared on failure")
	}
	if state.LoadError != "HTTP 500: boom" {
		t.Fatalf("load error = %q", state.LoadError)
	}
	fs.listErr = nil
	fs.records = []employee.Record{ann()}
	if err := c.List().Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if c.List().State().LoadError != "" {
		t.Fatalf("load error should clear after a successful refresh")
	}
}

func TestSelectSeedsDraftAndClearsFormState(t *testing.T) {
	fs := &fakeStore{records: []employee.Record{ann()}}
	c := newMounted(t, fs)
	form := c.Form()

	if err := form.RequestSave(); err == nil {
		t.Fatalf("empty draft should not validate")
	}
	if len(form.State().FieldErrors) == 0 {
		t.Fatalf("expected field errors")
	}

	if err := c.List().SelectByID(1); err != nil {
		t.Fatalf("select: %v", err)
	}
	state := form.State()
	if diff := cmp.Diff(employee.DraftFrom(ann()), state.Draft); diff != "" {
		t.Fatalf("draft mismatch (-want +got):\n%s", diff)
	}
	if len(state.FieldErrors) != 0 || state.LastError != "" || state.Pending != ConfirmNone {
		t.Fatalf("selection must clear form state: %+v", state)
	}
	if !state.Editing() {
		t.Fatalf("expected editing mode")
	}

	if err := form.SetField(employee.FieldName, "Annie"); err != nil {
		t.Fatalf("set field: %v", err)
	}
	if got := c.List().State().Records[0].Name; got != "Ann" {
		t.Fatalf("listed record mutated through draft: %q", got)
	}
	if err := c.List().SelectByID(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("select missing = %v, want ErrNotFound", err)
	}
}

func TestInvalidDraftNeverReachesStore(t *testing.T) {
	drafts := []employee.Draft{
		{HireDate: "2021-06-01", JobDescription: "QA"},
		{Name: "Bo", JobDescription: "QA"},
		{Name: "Bo", HireDate: "2021-06-01"},
		{Name: "Bo", HireDate: "not a date", JobDescription: "QA"},
	}
	for _, d := range drafts {
		fs := &fakeStore{}
		c := newMounted(t, fs)
		form := c.Form()
		for _, f := range employee.Fields {
			if err := form.SetField(f, d.Get(f)); err != nil {
				t.Fatalf("set %s: %v", f, err)
			}
		}
		err := form.RequestSave()
		var verr *ValidationError
		if !errors.As(err, &verr) || len(verr.Fields) == 0 {
			t.Fatalf("RequestSave(%+v) = %v, want ValidationError", d, err)
		}
		if form.State().Pending != ConfirmNone {
			t.Fatalf("invalid draft must not prompt")
		}
		if err := form.Confirm(context.Background()); !errors.Is(err, ErrNothingPending) {
			t.Fatalf("Confirm = %v, want ErrNothingPending", err)
		}
		if got := fs.mutations(); len(got) != 0 {
			t.Fatalf("invalid draft issued calls: %+v", got)
		}
	}
}

func TestSetFieldClearsThatFieldsError(t *testing.T) {
	c := newMounted(t, &fakeStore{})
	form := c.Form()
	_ = form.RequestSave()
	if err := form.SetField(employee.FieldName, "Bo"); err != nil {
		t.Fatalf("set field: %v", err)
	}
	errs := form.State().FieldErrors
	if _, ok := errs[employee.FieldName]; ok {
		t.Fatalf("name error should be cleared")
	}
	if _, ok := errs[employee.FieldHireDate]; !ok {
		t.Fatalf("other errors must remain")
	}
	if err := form.SetField(employee.Field("salary"), "1"); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestCreateFlowRefreshesAndDeselects(t *testing.T) {
	fs := &fakeStore{records: []employee.Record{ann()}}
	c := newMounted(t, fs)
	form := c.Form()
	_ = form.SetField(employee.FieldName, "Bo")
	_ = form.SetField(employee.FieldHireDate, "2021-06-01T00:00:00Z")
	_ = form.SetField(employee.FieldJobDescription, "QA")

	if err := form.RequestSave(); err != nil {
		t.Fatalf("request save: %v", err)
	}
	if got := form.State().Pending; got != ConfirmSave {
		t.Fatalf("pending = %s, want save", got)
	}
	listsBefore := fs.count("list")
	if err := form.Confirm(context.Background()); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	want := []call{{Op: "create", Payload: employee.Payload{Title: "Bo", Name: "Bo", HireDate: "2021-06-01T00:00:00Z", JobDescription: "QA"}}}
	if diff := cmp.Diff(want, fs.mutations()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if got := fs.count("list") - listsBefore; got != 1 {
		t.Fatalf("refreshes after create = %d, want 1", got)
	}
	snap := c.Snapshot()
	if snap.List.Selected != nil {
		t.Fatalf("selection should be cleared")
	}
	if snap.Form.Saving || snap.Form.Pending != ConfirmNone || snap.Form.Draft.Name != "" {
		t.Fatalf("form should return to an empty create draft: %+v", snap.Form)
	}
}

func TestUpdateFlowIssuesExactlyOneUpdate(t *testing.T) {
	fs := &fakeStore{records: []employee.Record{ann()}}
	c := newMounted(t, fs)
	if err := c.List().SelectByID(1); err != nil {
		t.Fatalf("select: %v", err)
	}
	form := c.Form()
	_ = form.SetField(employee.FieldJobDescription, "Staff Eng")
	if err := form.RequestSave(); err != nil {
		t.Fatalf("request save: %v", err)
	}
	listsBefore := fs.count("list")
	if err := form.Confirm(context.Background()); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	calls := fs.mutations()
	if len(calls) != 1 || calls[0].Op != "update" || calls[0].ID != 1 {
		t.Fatalf("calls = %+v, want one update of 1", calls)
	}
	if calls[0].Payload.JobDescription != "Staff Eng" || calls[0].Payload.Title != "Ann" {
		t.Fatalf("payload = %+v", calls[0].Payload)
	}
	if got := fs.count("list") - listsBefore; got != 1 {
		t.Fatalf("refreshes after update = %d, want 1", got)
	}
	if c.List().State().Selected != nil {
		t.Fatalf("selection should be cleared after update")
	}
}

func TestUpdateFailureKeepsFormOpen(t *testing.T) {
	fs := &fakeStore{
		records:   []employee.Record{ann()},
		updateErr: &store.TransportError{Op: store.OpUpdate, Status: http.StatusPreconditionFailed, Body: "stale"},
	}
	c := newMounted(t, fs)
	_ = c.List().SelectByID(1)
	form := c.Form()
	if err := form.RequestSave(); err != nil {
		t.Fatalf("request save: %v", err)
	}
	listsBefore := fs.count("list")
	if err := form.Confirm(context.Background()); err == nil {
		t.Fatalf("expected confirm to fail")
	}
	state := form.State()
	if state.Saving {
		t.Fatalf("saving must be cleared on failure")
	}
	if state.Pending != ConfirmSave {
		t.Fatalf("pending = %s, want save", state.Pending)
	}
	for _, want := range []string{"412", "stale"} {
		if !strings.Contains(state.LastError, want) {
			t.Fatalf("last error %q missing %q", state.LastError, want)
		}
	}
	if fs.count("list") != listsBefore {
		t.Fatalf("failed update must not refresh")
	}
	if c.List().State().Selected == nil {
		t.Fatalf("failed update must keep the selection")
	}

	fs.mu.Lock()
	fs.updateErr = nil
	fs.mu.Unlock()
	if err := form.Confirm(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if form.State().LastError != "" {
		t.Fatalf("retry should clear the error")
	}
}

func TestDeleteFlow(t *testing.T) {
	seven := employee.Record{ID: 7, Name: "Gus", HireDate: time.Date(2018, 5, 1, 0, 0, 0, 0, time.UTC), JobDescription: "PM"}
	fs := &fakeStore{records: []employee.Record{ann(), seven}}
	c := newMounted(t, fs)
	form := c.Form()

	if err := form.RequestDelete(); !errors.Is(err, ErrNotEditing) {
		t.Fatalf("delete without selection = %v, want ErrNotEditing", err)
	}
	if err := c.List().SelectByID(7); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := form.RequestDelete(); err != nil {
		t.Fatalf("request delete: %v", err)
	}
	if got := form.State().Pending; got != ConfirmDelete {
		t.Fatalf("pending = %s, want delete", got)
	}
	fs.mu.Lock()
	fs.records = []employee.Record{ann()}
	fs.mu.Unlock()
	if err := form.Confirm(context.Background()); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if diff := cmp.Diff([]call{{Op: "delete", ID: 7}}, fs.mutations()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	snap := c.Snapshot()
	if snap.List.Selected != nil || len(snap.List.Records) != 1 {
		t.Fatalf("list after delete: %+v", snap.List)
	}
}

func TestDeleteFailureSetsLastError(t *testing.T) {
	fs := &fakeStore{
		records:   []employee.Record{ann()},
		deleteErr: &store.TransportError{Op: store.OpDelete, Status: http.StatusForbidden, Body: "denied"},
	}
	c := newMounted(t, fs)
	_ = c.List().SelectByID(1)
	form := c.Form()
	_ = form.RequestDelete()
	if err := form.Confirm(context.Background()); err == nil {
		t.Fatalf("expected failure")
	}
	state := form.State()
	if state.Saving || state.LastError != "Delete failed (HTTP 403): denied" || state.Pending != ConfirmDelete {
		t.Fatalf("unexpected state after failed delete: %+v", state)
	}
}

func TestDismissConfirmation(t *testing.T) {
	fs := &fakeStore{records: []employee.Record{ann()}}
	c := newMounted(t, fs)
	_ = c.List().SelectByID(1)
	form := c.Form()
	_ = form.RequestDelete()
	form.DismissConfirmation()
	if form.State().Pending != ConfirmNone {
		t.Fatalf("pending should be cleared")
	}
	if err := form.Confirm(context.Background()); !errors.Is(err, ErrNothingPending) {
		t.Fatalf("confirm after dismiss = %v", err)
	}
	if len(fs.mutations()) != 0 {
		t.Fatalf("dismiss must not call the store")
	}
	if form.State().Draft.Name != "Ann" {
		t.Fatalf("dismiss must keep the draft")
	}
}

func TestSecondConfirmWhileInFlightIsRejected(t *testing.T) {
	fs := &fakeStore{
		records: []employee.Record{ann()},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	c := newMounted(t, fs)
	_ = c.List().SelectByID(1)
	form := c.Form()
	_ = form.RequestSave()

	done := make(chan error, 1)
	go func() { done <- form.Confirm(context.Background()) }()
	<-fs.started
	if !form.State().Saving {
		t.Fatalf("saving should be set while the call is in flight")
	}
	if err := form.Confirm(context.Background()); !errors.Is(err, ErrMutationInFlight) {
		t.Fatalf("second confirm = %v, want ErrMutationInFlight", err)
	}
	close(fs.block)
	if err := <-done; err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if got := fs.count("update"); got != 1 {
		t.Fatalf("updates = %d, want 1", got)
	}
}

func TestRefreshDropsVanishedSelection(t *testing.T) {
	fs := &fakeStore{records: []employee.Record{ann()}}
	c := newMounted(t, fs)
	_ = c.List().SelectByID(1)
	fs.mu.Lock()
	fs.records = nil
	fs.mu.Unlock()
	if err := c.List().Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	snap := c.Snapshot()
	if snap.List.Selected != nil {
		t.Fatalf("selection should be dropped when the record vanishes")
	}
	if snap.Form.Editing() {
		t.Fatalf("form should return to create mode")
	}
}

func TestSubscribersSeeTransitions(t *testing.T) {
	fs := &fakeStore{records: []employee.Record{ann()}}
	c := New(fs)
	var mu sync.Mutex
	count := 0
	unsubscribe := c.Subscribe(func() {
		mu.Lock()
		count++
		mu.Unlock()
	})
	if err := c.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	c.List().SetFilter("a")
	mu.Lock()
	seen := count
	mu.Unlock()
	if seen < 3 {
		t.Fatalf("expected notifications for refresh start, finish, and filter; got %d", seen)
	}
	unsubscribe()
	c.List().SetFilter("b")
	mu.Lock()
	defer mu.Unlock()
	if count != seen {
		t.Fatalf("unsubscribed observer still notified")
	}
}

// gatedList holds each List call until its gate is closed and then returns
// the records scripted for that call.
type gatedList struct {
	*fakeStore
	mu      sync.Mutex
	calls   int
	gates   []chan struct{}
	results [][]employee.Record
	started chan int
}

func (g *gatedList) List(context.Context) ([]employee.Record, error) {
	g.mu.Lock()
	idx := g.calls
	g.calls++
	g.mu.Unlock()
	g.started <- idx
	<-g.gates[idx]
	return g.results[idx], nil
}

func TestOverlappingRefreshLastCompletionWins(t *testing.T) {
	bob := employee.Record{ID: 2, Name: "Bob", HireDate: time.Date(2019, 3, 4, 0, 0, 0, 0, time.UTC), JobDescription: "Ops"}
	g := &gatedList{
		fakeStore: &fakeStore{},
		gates:     []chan struct{}{make(chan struct{}), make(chan struct{})},
		results:   [][]employee.Record{{ann()}, {bob}},
		started:   make(chan int, 2),
	}
	c := New(g)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- c.List().Refresh(ctx) }()
	if idx := <-g.started; idx != 0 {
		t.Fatalf("first refresh started as call %d", idx)
	}
	second := make(chan error, 1)
	go func() { second <- c.List().Refresh(ctx) }()
	if idx := <-g.started; idx != 1 {
		t.Fatalf("second refresh started as call %d", idx)
	}

	close(g.gates[1])
	if err := <-second; err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	state := c.List().State()
	if !state.Loading {
		t.Fatalf("loading must stay set while the first refresh is in flight")
	}
	if diff := cmp.Diff([]employee.Record{bob}, state.Records); diff != "" {
		t.Fatalf("records after second refresh (-want +got):\n%s", diff)
	}

	close(g.gates[0])
	if err := <-first; err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	state = c.List().State()
	if state.Loading {
		t.Fatalf("loading must clear once every refresh finished")
	}
	if diff := cmp.Diff([]employee.Record{ann()}, state.Records); diff != "" {
		t.Fatalf("last completion should win (-want +got):\n%s", diff)
	}
}

func TestLateFailureDoesNotTouchNewDraft(t *testing.T) {
	fs := &fakeStore{
		records:   []employee.Record{ann()},
		updateErr: &store.TransportError{Op: store.OpUpdate, Status: http.StatusPreconditionFailed, Body: "stale"},
		block:     make(chan struct{}),
		started:   make(chan struct{}, 1),
	}
	c := newMounted(t, fs)
	if err := c.List().SelectByID(1); err != nil {
		t.Fatalf("select: %v", err)
	}
	form := c.Form()
	if err := form.RequestSave(); err != nil {
		t.Fatalf("request save: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- form.Confirm(context.Background()) }()
	<-fs.started
	c.NewRecord()
	close(fs.block)
	if err := <-done; !store.IsStatus(err, http.StatusPreconditionFailed) {
		t.Fatalf("confirm = %v, want the 412 to reach the caller", err)
	}

	state := form.State()
	if state.LastError != "" || state.Saving || state.Pending != ConfirmNone {
		t.Fatalf("late failure leaked onto the new draft: %+v", state)
	}
	if state.Editing() || state.Draft.Name != "" {
		t.Fatalf("draft should stay the empty create draft: %+v", state.Draft)
	}
}

func TestSavingStaysSetUntilEveryMutationFinishes(t *testing.T) {
	fs := &fakeStore{
		records: []employee.Record{ann()},
		gates: map[string]chan struct{}{
			"create": make(chan struct{}),
			"delete": make(chan struct{}),
		},
		started: make(chan struct{}, 2),
	}
	c := newMounted(t, fs)
	form := c.Form()
	ctx := context.Background()

	_ = form.SetField(employee.FieldName, "Bo")
	_ = form.SetField(employee.FieldHireDate, "2021-06-01")
	_ = form.SetField(employee.FieldJobDescription, "QA")
	if err := form.RequestSave(); err != nil {
		t.Fatalf("request save: %v", err)
	}
	created := make(chan error, 1)
	go func() { created <- form.Confirm(ctx) }()
	<-fs.started

	if err := c.List().SelectByID(1); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := form.RequestDelete(); err != nil {
		t.Fatalf("request delete: %v", err)
	}
	deleted := make(chan error, 1)
	go func() { deleted <- form.Confirm(ctx) }()
	<-fs.started

	close(fs.gates["create"])
	if err := <-created; err != nil {
		t.Fatalf("create: %v", err)
	}
	if !form.State().Saving {
		t.Fatalf("saving must stay set while the delete is in flight")
	}

	close(fs.gates["delete"])
	if err := <-deleted; err != nil {
		t.Fatalf("delete: %v", err)
	}
	if form.State().Saving {
		t.Fatalf("saving must clear once both calls finished")
	}
	if diff := cmp.Diff([]string{"create", "delete"}, []string{fs.mutations()[0].Op, fs.mutations()[1].Op}); diff != "" {
		t.Fatalf("mutations (-want +got):\n%s", diff)
	}
}
