// Package model holds the in-memory launcher model: placed items, the
// all-apps list with its pending deltas, and the consistency checker.
package model

import (
	"sort"
	"sync"
	"time"

	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/pkg/models"
	"github.com/sirupsen/logrus"
)

// Mismatch records one failed consistency check.
type Mismatch struct {
	ID        int64     `json:"id"`
	Model     string    `json:"model"`
	Candidate string    `json:"candidate"`
	Stack     string    `json:"stack,omitempty"`
	At        time.Time `json:"at"`
}

// State owns the id-map and the workspace list. Both containers are only
// touched under mu; readers get copies.
type State struct {
	logger *logrus.Entry

	mu         sync.Mutex
	itemsByID  map[int64]*models.Item
	workspace  []*models.Item
	strict     bool
	mismatches []Mismatch
}

// NewState creates an empty model.
func NewState(logger *logrus.Entry) *State {
	return &State{
		logger:    logger,
		itemsByID: make(map[int64]*models.Item),
	}
}

// SetStrict makes CheckConsistency return errors instead of only reporting.
func (s *State) SetStrict(strict bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strict = strict
}

// Tx is the view of State handed to Locked. Its methods assume the lock is held.
type Tx struct {
	s *State
}

// Locked runs fn with the state lock held. fn must not call State methods.
func (s *State) Locked(fn func(tx *Tx)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&Tx{s: s})
}

// Clear empties both containers.
func (tx *Tx) Clear() {
	tx.s.itemsByID = make(map[int64]*models.Item)
	tx.s.workspace = nil
}

// Put maps the item by id and keeps workspace membership in sync with its type.
func (tx *Tx) Put(item *models.Item) {
	if old, ok := tx.s.itemsByID[item.ID]; ok && old != item {
		tx.removeFromWorkspace(old)
	}
	tx.s.itemsByID[item.ID] = item
	tx.syncWorkspace(item)
}

// Get returns the model's instance for id.
func (tx *Tx) Get(id int64) (*models.Item, bool) {
	item, ok := tx.s.itemsByID[id]
	return item, ok
}

// Remove drops the item from both containers.
func (tx *Tx) Remove(id int64) (*models.Item, bool) {
	item, ok := tx.s.itemsByID[id]
	if !ok {
		return nil, false
	}
	delete(tx.s.itemsByID, id)
	tx.removeFromWorkspace(item)
	return item, true
}

// Len returns the number of mapped items.
func (tx *Tx) Len() int {
	return len(tx.s.itemsByID)
}

// Each visits every mapped item.
func (tx *Tx) Each(fn func(*models.Item)) {
	for _, item := range tx.s.itemsByID {
		fn(item)
	}
}

// Items returns the model's own instances accepted by keep, sorted by position.
func (tx *Tx) Items(keep func(*models.Item) bool) []*models.Item {
	var out []*models.Item
	for _, item := range tx.s.itemsByID {
		if keep(item) {
			out = append(out, item)
		}
	}
	SortByPosition(out)
	return out
}

// CheckConsistency compares candidate against the model's item for id.
// See State.CheckConsistency.
func (tx *Tx) CheckConsistency(id int64, candidate *models.Item, stack []byte) error {
	return tx.check(id, candidate, stack, (*models.Item).Matches)
}

// CheckIdentity is CheckConsistency restricted to id, type and launch
// target, for updates that legitimately change title or position.
func (tx *Tx) CheckIdentity(id int64, candidate *models.Item, stack []byte) error {
	return tx.check(id, candidate, stack, (*models.Item).SameIdentity)
}

func (tx *Tx) check(id int64, candidate *models.Item, stack []byte, same func(a, b *models.Item) bool) error {
	modelItem, ok := tx.s.itemsByID[id]
	if !ok || modelItem == candidate || same(modelItem, candidate) {
		return nil
	}

	m := Mismatch{
		ID:        id,
		Model:     modelItem.String(),
		Candidate: candidate.String(),
		Stack:     string(stack),
		At:        time.Now(),
	}
	tx.s.mismatches = append(tx.s.mismatches, m)

	err := errors.ModelMismatch(id, m.Model, m.Candidate)
	tx.s.logger.WithFields(logrus.Fields{
		"item_id":   id,
		"model":     m.Model,
		"candidate": m.Candidate,
		"stack":     m.Stack,
	}).Error("item diverged from model copy")

	if tx.s.strict {
		return err
	}
	return nil
}

// UpdateItemArrays checks the item, then keeps the workspace list in sync
// with its type. The check result is returned but the arrays are updated
// either way.
func (tx *Tx) UpdateItemArrays(item *models.Item, stack []byte) error {
	err := tx.CheckConsistency(item.ID, item, stack)
	tx.syncWorkspace(item)
	return err
}

func (tx *Tx) syncWorkspace(item *models.Item) {
	idx := tx.workspaceIndex(item.ID)
	if item.ItemType == models.ItemTypeApplication {
		if idx < 0 {
			tx.s.workspace = append(tx.s.workspace, item)
		} else {
			tx.s.workspace[idx] = item
		}
		return
	}
	if idx >= 0 {
		tx.s.workspace = append(tx.s.workspace[:idx], tx.s.workspace[idx+1:]...)
	}
}

func (tx *Tx) removeFromWorkspace(item *models.Item) {
	if idx := tx.workspaceIndex(item.ID); idx >= 0 {
		tx.s.workspace = append(tx.s.workspace[:idx], tx.s.workspace[idx+1:]...)
	}
}

func (tx *Tx) workspaceIndex(id int64) int {
	for i, it := range tx.s.workspace {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Clear empties the model.
func (s *State) Clear() {
	s.Locked(func(tx *Tx) { tx.Clear() })
}

// Put inserts or replaces an item.
func (s *State) Put(item *models.Item) {
	s.Locked(func(tx *Tx) { tx.Put(item) })
}

// Remove deletes an item by id.
func (s *State) Remove(id int64) (*models.Item, bool) {
	var (
		item *models.Item
		ok   bool
	)
	s.Locked(func(tx *Tx) { item, ok = tx.Remove(id) })
	return item, ok
}

// Get returns a copy of the item with id.
func (s *State) Get(id int64) (*models.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.itemsByID[id]
	return item.Clone(), ok
}

// Len returns the number of mapped items.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.itemsByID)
}

// MaxID returns the largest mapped id, or 0.
func (s *State) MaxID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max int64
	for id := range s.itemsByID {
		if id > max {
			max = id
		}
	}
	return max
}

// CheckConsistency compares candidate against the model's item for id by
// value. A missing model item, the same instance, or equal identity fields
// pass. A mismatch is logged with stack and recorded; it is returned as an
// error only in strict mode.
func (s *State) CheckConsistency(id int64, candidate *models.Item, stack []byte) error {
	var err error
	s.Locked(func(tx *Tx) { err = tx.CheckConsistency(id, candidate, stack) })
	return err
}

// CheckIdentity is the locking form of Tx.CheckIdentity.
func (s *State) CheckIdentity(id int64, candidate *models.Item, stack []byte) error {
	var err error
	s.Locked(func(tx *Tx) { err = tx.CheckIdentity(id, candidate, stack) })
	return err
}

// UpdateItemArrays is the locking form of Tx.UpdateItemArrays.
func (s *State) UpdateItemArrays(item *models.Item, stack []byte) error {
	var err error
	s.Locked(func(tx *Tx) { err = tx.UpdateItemArrays(item, stack) })
	return err
}

// Mismatches returns the recorded consistency failures.
func (s *State) Mismatches() []Mismatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Mismatch(nil), s.mismatches...)
}

// Snapshot returns copies of the workspace list sorted by position and of the id-map.
func (s *State) Snapshot() ([]*models.Item, map[int64]*models.Item) {
	s.mu.Lock()
	workspace := make([]*models.Item, len(s.workspace))
	for i, item := range s.workspace {
		workspace[i] = item.Clone()
	}
	byID := make(map[int64]*models.Item, len(s.itemsByID))
	for id, item := range s.itemsByID {
		byID[id] = item.Clone()
	}
	s.mu.Unlock()

	SortByPosition(workspace)
	return workspace, byID
}

// ItemsForComponent returns copies of the items launching component.
func (s *State) ItemsForComponent(component models.ComponentKey) []*models.Item {
	return s.filter(func(item *models.Item) bool {
		c, ok := item.Component()
		return ok && c == component
	})
}

// ItemsForPackage returns copies of the items launching any component of pkg.
func (s *State) ItemsForPackage(pkg string) []*models.Item {
	return s.filter(func(item *models.Item) bool {
		c, ok := item.Component()
		return ok && c.Package == pkg
	})
}

func (s *State) filter(keep func(*models.Item) bool) []*models.Item {
	var out []*models.Item
	s.Locked(func(tx *Tx) {
		for _, item := range tx.Items(keep) {
			out = append(out, item.Clone())
		}
	})
	return out
}

// SortByPosition orders items by ascending position, ties by id.
func SortByPosition(items []*models.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].ID < items[j].ID
	})
}
