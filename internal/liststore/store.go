// Package liststore is an in-memory stand-in for a SharePoint list, served
// over the same REST surface the roster client speaks. It backs local
// development and the client's integration tests.
package liststore

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/kingrea/roster/internal/employee"
)

var (
	ErrItemNotFound         = errors.New("liststore: item not found")
	ErrVersionMismatch      = errors.New("liststore: version mismatch")
	ErrPreconditionRequired = errors.New("liststore: if-match required")
)

// FieldError reports a payload the list refuses to store.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Patch carries a MERGE body. Absent fields stay untouched.
type Patch struct {
	Title          *string `json:"Title"`
	Name           *string `json:"Name"`
	HireDate       *string `json:"HireDate"`
	JobDescription *string `json:"JobDescription"`
}

// PatchFrom converts a full write body into a patch touching every field.
func PatchFrom(p employee.Payload) Patch {
	return Patch{Title: &p.Title, Name: &p.Name, HireDate: &p.HireDate, JobDescription: &p.JobDescription}
}

type entry struct {
	item    employee.Item
	version int
}

// Store holds the items of one list.
type Store struct {
	title string

	mu     sync.RWMutex
	items  []*entry
	nextID int
}

// NewStore creates an empty list with the given title.
func NewStore(title string) *Store {
	return &Store{
		title:  strings.TrimSpace(title),
		nextID: 1,
	}
}

// Title is the list's display name, matched case-insensitively by GetByTitle.
func (s *Store) Title() string {
	return s.title
}

// Matches reports whether title addresses this list.
func (s *Store) Matches(title string) bool {
	return strings.EqualFold(strings.TrimSpace(title), s.title)
}

// Len reports the number of items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// List returns every item in ID order.
func (s *Store) List() []employee.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]employee.Item, 0, len(s.items))
	for _, e := range s.items {
		out = append(out, e.item)
	}
	return out
}

// Get returns one item and its ETag.
func (s *Store) Get(id int) (employee.Item, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, _ := s.find(id)
	if e == nil {
		return employee.Item{}, "", ErrItemNotFound
	}
	return e.item, etag(e.version), nil
}

// Create appends a new item and assigns it the next ID.
func (s *Store) Create(p employee.Payload) (employee.Item, string, error) {
	item := employee.Item{Title: p.Title, Name: p.Name, HireDate: p.HireDate, JobDescription: p.JobDescription}
	if err := normalizeItem(&item); err != nil {
		return employee.Item{}, "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.nextID
	s.nextID++
	e := &entry{item: item, version: 1}
	s.items = append(s.items, e)
	return e.item, etag(e.version), nil
}

// Merge applies patch to item id when ifMatch is "*" or the item's current
// ETag. Every successful merge bumps the version.
func (s *Store) Merge(id int, patch Patch, ifMatch string) (employee.Item, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, _ := s.find(id)
	if e == nil {
		return employee.Item{}, "", ErrItemNotFound
	}
	if err := checkIfMatch(ifMatch, e.version); err != nil {
		return employee.Item{}, "", err
	}
	next := e.item
	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.HireDate != nil {
		next.HireDate = *patch.HireDate
	}
	if patch.JobDescription != nil {
		next.JobDescription = *patch.JobDescription
	}
	if err := normalizeItem(&next); err != nil {
		return employee.Item{}, "", err
	}
	e.item = next
	e.version++
	return e.item, etag(e.version), nil
}

// Delete removes item id under the same IF-MATCH rules as Merge.
func (s *Store) Delete(id int, ifMatch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, idx := s.find(id)
	if e == nil {
		return ErrItemNotFound
	}
	if err := checkIfMatch(ifMatch, e.version); err != nil {
		return err
	}
	s.items = slices.Delete(s.items, idx, idx+1)
	return nil
}

// Seed replaces the list contents with payloads, numbering from 1.
func (s *Store) Seed(payloads []employee.Payload) error {
	items := make([]*entry, 0, len(payloads))
	for i, p := range payloads {
		item := employee.Item{ID: i + 1, Title: p.Title, Name: p.Name, HireDate: p.HireDate, JobDescription: p.JobDescription}
		if err := normalizeItem(&item); err != nil {
			return fmt.Errorf("liststore: seed item %d: %w", i+1, err)
		}
		items = append(items, &entry{item: item, version: 1})
	}
	s.mu.Lock()
	s.items = items
	s.nextID = len(items) + 1
	s.mu.Unlock()
	return nil
}

// find locates id; s.mu must be held.
func (s *Store) find(id int) (*entry, int) {
	for idx, e := range s.items {
		if e.item.ID == id {
			return e, idx
		}
	}
	return nil, -1
}

func normalizeItem(item *employee.Item) error {
	item.Name = strings.TrimSpace(item.Name)
	item.JobDescription = strings.TrimSpace(item.JobDescription)
	if item.Name == "" {
		return &FieldError{Field: "Name", Message: "a value is required"}
	}
	if item.JobDescription == "" {
		return &FieldError{Field: "JobDescription", Message: "a value is required"}
	}
	hired, err := employee.ParseHireDate(item.HireDate)
	if err != nil {
		return &FieldError{Field: "HireDate", Message: "a valid date is required"}
	}
	item.HireDate = employee.FormatHireDate(hired)
	if strings.TrimSpace(item.Title) == "" {
		item.Title = item.Name
	}
	return nil
}

func etag(version int) string {
	return strconv.Quote(strconv.Itoa(version))
}

func checkIfMatch(ifMatch string, version int) error {
	ifMatch = strings.TrimSpace(ifMatch)
	switch ifMatch {
	case "":
		return ErrPreconditionRequired
	case "*":
		return nil
	}
	if strings.Trim(ifMatch, `"`) == strconv.Itoa(version) {
		return nil
	}
	return ErrVersionMismatch
}
