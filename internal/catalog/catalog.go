// Package catalog holds the versioned formula catalog: the in-memory store,
// its lifecycle transitions, the YAML dataset format and integrity checks.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rgehrsitz/kepay/internal/domain"
)

// Reader is the read side the resolver depends on. Every returned formula is
// a copy; mutating it never affects the catalog.
type Reader interface {
	Get(id string) (domain.Formula, bool)
	List(group domain.GroupKey) []domain.Formula
	All() []domain.Formula
}

// Writer performs lifecycle transitions. Writes are serialized.
type Writer interface {
	Add(ctx context.Context, f domain.Formula) error
	Activate(ctx context.Context, id string) (domain.Formula, error)
	Deactivate(ctx context.Context, id string) (domain.Formula, error)
	CompareAndActivate(ctx context.Context, id, expectedCurrentID string) (domain.Formula, error)
}

// Persister mirrors committed writes into durable storage. It is called while
// the catalog holds its writer lock; an error aborts the write and leaves the
// in-memory catalog unchanged.
type Persister interface {
	SaveFormula(ctx context.Context, f domain.Formula, event ChangeEvent) error
	ApplyChange(ctx context.Context, event ChangeEvent, updated []domain.Formula) error
}

// ConditionalPersister is a Persister that can re-check the stored current
// formula of a group in the same transaction that applies a change. Catalogs
// in different processes sharing one store use it to keep CompareAndActivate
// honest.
type ConditionalPersister interface {
	Persister
	ApplyChangeIf(ctx context.Context, event ChangeEvent, updated []domain.Formula, expectedCurrentID string) error
}

// Catalog is the in-memory formula store
type Catalog struct {
	mu          sync.RWMutex
	formulas    map[string]*domain.Formula
	groups      map[domain.GroupKey][]string
	persister   Persister
	subscribers []func(ChangeEvent)
}

var (
	_ Reader = (*Catalog)(nil)
	_ Writer = (*Catalog)(nil)
)

// New creates a catalog holding formulas. The set is checked the same way
// Reload checks it.
func New(formulas []domain.Formula) (*Catalog, error) {
	c := &Catalog{}
	if err := c.replace(formulas); err != nil {
		return nil, err
	}
	return c, nil
}

// SetPersister installs write-through persistence; nil disables it
func (c *Catalog) SetPersister(p Persister) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persister = p
}

// Subscribe registers fn to be called after every committed write. fn runs
// under the writer lock and must not call back into the catalog.
func (c *Catalog) Subscribe(fn func(ChangeEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Get returns a copy of the formula with the given ID
func (c *Catalog) Get(id string) (domain.Formula, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.formulas[id]
	if !ok {
		return domain.Formula{}, false
	}
	return *f.DeepCopy(), true
}

// List returns copies of every formula in group, oldest first
func (c *Catalog) List(group domain.GroupKey) []domain.Formula {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listLocked(group)
}

// All returns copies of every formula ordered by group then effective date
func (c *Catalog) All() []domain.Formula {
	c.mu.RLock()
	defer c.mu.RUnlock()

	groups := make([]domain.GroupKey, 0, len(c.groups))
	for g := range c.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].String() < groups[j].String() })

	var out []domain.Formula
	for _, g := range groups {
		out = append(out, c.listLocked(g)...)
	}
	return out
}

// Groups returns every (type, category) present in the catalog
func (c *Catalog) Groups() []domain.GroupKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	groups := make([]domain.GroupKey, 0, len(c.groups))
	for g := range c.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].String() < groups[j].String() })
	return groups
}

// Current returns the current formula of group, if one is marked
func (c *Catalog) Current(group domain.GroupKey) (domain.Formula, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cur := c.currentLocked(group); cur != nil {
		return *cur.DeepCopy(), true
	}
	return domain.Formula{}, false
}

// Add inserts a new formula. A formula without a status enters as draft; a
// current formula is rejected if its group already has one.
func (c *Catalog) Add(ctx context.Context, f domain.Formula) error {
	if f.ID == "" {
		return &domain.MalformedFormulaDataError{Version: f.Version, TierIndex: -1, Reason: "formula id is required"}
	}
	if f.Status == "" {
		f.Status = domain.StateDraft
	}
	if err := f.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.formulas[f.ID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateFormula, f.ID)
	}
	if f.IsCurrent() {
		if cur := c.currentLocked(f.Key()); cur != nil {
			return &domain.MalformedFormulaDataError{
				FormulaID: f.ID,
				Version:   f.Version,
				TierIndex: -1,
				Reason:    fmt.Sprintf("%s already has current formula %s", f.Key(), cur.ID),
			}
		}
	}

	event := newEvent(EventAdded, f.Key(), f.ID)
	if c.persister != nil {
		if err := c.persister.SaveFormula(ctx, f, event); err != nil {
			return fmt.Errorf("failed to persist formula %s: %w", f.ID, err)
		}
	}

	c.insertLocked(f.DeepCopy())
	c.publishLocked(event)
	return nil
}

// Activate makes id the current formula of its group. Every sibling is
// demoted, and a sibling whose open-ended window started earlier is closed
// at id's EffectiveFrom. Activating the current formula is a no-op.
func (c *Catalog) Activate(ctx context.Context, id string) (domain.Formula, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activateLocked(ctx, id, nil)
}

// CompareAndActivate activates id only if the group's current formula is
// still expectedCurrentID ("" meaning none). The loser of a race receives a
// *domain.ConflictError describing the state the winner left.
func (c *Catalog) CompareAndActivate(ctx context.Context, id, expectedCurrentID string) (domain.Formula, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target, ok := c.formulas[id]
	if !ok {
		return domain.Formula{}, fmt.Errorf("%w: %s", domain.ErrFormulaNotFound, id)
	}
	cur := c.currentLocked(target.Key())
	actual := ""
	if cur != nil {
		actual = cur.ID
	}
	if actual != expectedCurrentID {
		return domain.Formula{}, &domain.ConflictError{
			Group:           target.Key(),
			ExpectedCurrent: expectedCurrentID,
			Current:         cur.DeepCopy(),
		}
	}
	return c.activateLocked(ctx, id, &expectedCurrentID)
}

// Deactivate moves a current formula to superseded without promoting a
// replacement. The group then resolves through the fallback step until
// another formula is activated.
func (c *Catalog) Deactivate(ctx context.Context, id string) (domain.Formula, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target, ok := c.formulas[id]
	if !ok {
		return domain.Formula{}, fmt.Errorf("%w: %s", domain.ErrFormulaNotFound, id)
	}
	if !target.IsCurrent() {
		return domain.Formula{}, fmt.Errorf("%w: %s", domain.ErrFormulaNotCurrent, id)
	}

	updated := target.DeepCopy()
	updated.Status = domain.StateSuperseded

	event := newEvent(EventDeactivated, target.Key(), id)
	if c.persister != nil {
		if err := c.persister.ApplyChange(ctx, event, []domain.Formula{*updated}); err != nil {
			return domain.Formula{}, fmt.Errorf("failed to persist deactivation of %s: %w", id, err)
		}
	}

	c.formulas[id] = updated
	c.publishLocked(event)
	return *updated.DeepCopy(), nil
}

// Reload atomically replaces the catalog contents, for example after the
// backing store was changed by another process.
func (c *Catalog) Reload(formulas []domain.Formula) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.replace(formulas); err != nil {
		return err
	}
	c.publishLocked(newEvent(EventReloaded, domain.GroupKey{}))
	return nil
}

// activateLocked promotes id. A non-nil expected is also checked against the
// persisted state when the persister supports it.
func (c *Catalog) activateLocked(ctx context.Context, id string, expected *string) (domain.Formula, error) {
	target, ok := c.formulas[id]
	if !ok {
		return domain.Formula{}, fmt.Errorf("%w: %s", domain.ErrFormulaNotFound, id)
	}
	if target.IsCurrent() {
		return *target.DeepCopy(), nil
	}

	activated := target.DeepCopy()
	activated.Status = domain.StateCurrent
	updated := []*domain.Formula{activated}
	ids := []string{id}

	for _, sid := range c.groups[target.Key()] {
		if sid == id {
			continue
		}
		sib := c.formulas[sid]
		changed := false
		next := sib.DeepCopy()
		if sib.IsCurrent() {
			next.Status = domain.StateSuperseded
			changed = true
		}
		if sib.IsOpenEnded() && sib.EffectiveFrom.Before(target.EffectiveFrom) {
			end := target.EffectiveFrom
			next.EffectiveTo = &end
			changed = true
		}
		if changed {
			updated = append(updated, next)
			ids = append(ids, sid)
		}
	}

	event := newEvent(EventActivated, target.Key(), ids...)
	if c.persister != nil {
		snapshot := make([]domain.Formula, len(updated))
		for i, f := range updated {
			snapshot[i] = *f
		}
		var err error
		if cp, ok := c.persister.(ConditionalPersister); ok && expected != nil {
			err = cp.ApplyChangeIf(ctx, event, snapshot, *expected)
		} else {
			err = c.persister.ApplyChange(ctx, event, snapshot)
		}
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			return domain.Formula{}, conflict
		}
		if err != nil {
			return domain.Formula{}, fmt.Errorf("failed to persist activation of %s: %w", id, err)
		}
	}

	for _, f := range updated {
		c.formulas[f.ID] = f
	}
	c.publishLocked(event)
	return *activated.DeepCopy(), nil
}

// replace swaps in a new formula set after checking IDs and current-ness.
// Callers hold the writer lock (or own c exclusively).
func (c *Catalog) replace(formulas []domain.Formula) error {
	byID := make(map[string]*domain.Formula, len(formulas))
	groups := make(map[domain.GroupKey][]string)
	current := make(map[domain.GroupKey]string)

	for i := range formulas {
		f := formulas[i].DeepCopy()
		if f.ID == "" {
			return &domain.MalformedFormulaDataError{Version: f.Version, TierIndex: -1, Reason: "formula id is required"}
		}
		if f.Status == "" {
			f.Status = domain.StateDraft
		}
		if err := f.Validate(); err != nil {
			return err
		}
		if _, dup := byID[f.ID]; dup {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateFormula, f.ID)
		}
		if f.IsCurrent() {
			if other, ok := current[f.Key()]; ok {
				return &domain.MalformedFormulaDataError{
					FormulaID: f.ID,
					Version:   f.Version,
					TierIndex: -1,
					Reason:    fmt.Sprintf("%s already has current formula %s", f.Key(), other),
				}
			}
			current[f.Key()] = f.ID
		}
		byID[f.ID] = f
		groups[f.Key()] = append(groups[f.Key()], f.ID)
	}

	c.formulas = byID
	c.groups = groups
	return nil
}

func (c *Catalog) insertLocked(f *domain.Formula) {
	if c.formulas == nil {
		c.formulas = make(map[string]*domain.Formula)
		c.groups = make(map[domain.GroupKey][]string)
	}
	c.formulas[f.ID] = f
	c.groups[f.Key()] = append(c.groups[f.Key()], f.ID)
}

func (c *Catalog) currentLocked(group domain.GroupKey) *domain.Formula {
	for _, id := range c.groups[group] {
		if f := c.formulas[id]; f.IsCurrent() {
			return f
		}
	}
	return nil
}

func (c *Catalog) listLocked(group domain.GroupKey) []domain.Formula {
	ids := c.groups[group]
	out := make([]domain.Formula, 0, len(ids))
	for _, id := range ids {
		out = append(out, *c.formulas[id].DeepCopy())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[j].Newer(&out[i]) })
	return out
}

func (c *Catalog) publishLocked(event ChangeEvent) {
	for _, fn := range c.subscribers {
		fn(event)
	}
}
