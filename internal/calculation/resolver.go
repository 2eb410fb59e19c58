package calculation

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/rgehrsitz/kepay/internal/catalog"
	"github.com/rgehrsitz/kepay/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Resolution is a resolved formula plus how it was found
type Resolution struct {
	Formula  domain.Formula
	Source   domain.ResolutionSource
	Warnings []string
}

func (r Resolution) clone() Resolution {
	out := Resolution{Formula: *r.Formula.DeepCopy(), Source: r.Source}
	if len(r.Warnings) > 0 {
		out.Warnings = append([]string(nil), r.Warnings...)
	}
	return out
}

// Resolver picks the formula that applies to a (type, category) on a date.
//
// Resolution order:
//  1. an explicit override ID, which must exist, belong to the group and
//     cover the date;
//  2. the formula whose effective window covers the date, preferring the
//     latest EffectiveFrom and then the higher version string;
//  3. the group's current formula;
//  4. the most recent formula of the group, with a warning.
//
// Only an empty group yields NoEffectiveFormulaError.
type Resolver struct {
	catalog catalog.Reader
	cache   ResolutionCache
	flight  singleflight.Group
	Logger  Logger
}

// NewResolver creates a resolver over r with no cache
func NewResolver(r catalog.Reader) *Resolver {
	return &Resolver{catalog: r, Logger: NopLogger{}}
}

// NewCachedResolver creates a resolver fronted by cache. Wire Invalidate to
// the catalog's change events, see Attach.
func NewCachedResolver(r catalog.Reader, cache ResolutionCache) *Resolver {
	return &Resolver{catalog: r, cache: cache, Logger: NopLogger{}}
}

// Attach creates a cached resolver over c and subscribes it to c's writes
func Attach(c *catalog.Catalog, cache ResolutionCache) *Resolver {
	r := NewCachedResolver(c, cache)
	c.Subscribe(r.Invalidate)
	return r
}

// SetLogger sets the logger; nil installs a no-op logger
func (r *Resolver) SetLogger(logger Logger) {
	if logger == nil {
		logger = NopLogger{}
	}
	r.Logger = logger
}

// Resolve returns the formula for group on date. overrideID may be empty.
func (r *Resolver) Resolve(group domain.GroupKey, date civil.Date, overrideID string) (domain.Formula, error) {
	res, err := r.ResolveDetailed(group, date, overrideID)
	if err != nil {
		return domain.Formula{}, err
	}
	return res.Formula, nil
}

// ResolveDetailed is Resolve reporting which step matched. A SourceFallback
// result means the group has a resolution gap on date.
func (r *Resolver) ResolveDetailed(group domain.GroupKey, date civil.Date, overrideID string) (Resolution, error) {
	if overrideID != "" {
		return r.resolveOverride(group, date, overrideID)
	}
	if r.cache == nil {
		return r.resolve(group, date)
	}

	key := CacheKey{Group: group, Date: date}
	if res, ok := r.cache.Get(key); ok {
		return res.clone(), nil
	}

	// A flight started before a catalog write must not be joined by
	// callers that arrive after it, so the generation is part of the key.
	generation := r.cache.Generation()
	flightKey := fmt.Sprintf("%s#%d", key, generation)
	v, err, _ := r.flight.Do(flightKey, func() (interface{}, error) {
		res, err := r.resolve(group, date)
		if err != nil {
			return nil, err
		}
		r.cache.Put(key, res, generation)
		return res, nil
	})
	if err != nil {
		return Resolution{}, err
	}
	return v.(Resolution).clone(), nil
}

// Invalidate drops cached resolutions affected by a catalog write
func (r *Resolver) Invalidate(event catalog.ChangeEvent) {
	if r.cache == nil {
		return
	}
	if event.Kind == catalog.EventReloaded {
		r.cache.Purge()
		return
	}
	r.cache.InvalidateGroup(event.Group)
	r.Logger.Debugf("resolution cache invalidated for %s after %s of %v", event.Group, event.Kind, event.FormulaIDs)
}

func (r *Resolver) resolveOverride(group domain.GroupKey, date civil.Date, id string) (Resolution, error) {
	reject := func(reason string) (Resolution, error) {
		return Resolution{}, &domain.InvalidOverrideError{OverrideID: id, Group: group, Date: date, Reason: reason}
	}

	f, ok := r.catalog.Get(id)
	if !ok {
		return reject("formula does not exist")
	}
	if f.Key() != group {
		return reject(fmt.Sprintf("formula belongs to %s", f.Key()))
	}
	if !f.Covers(date) {
		return reject(fmt.Sprintf("effective window of %q does not cover the date", f.Version))
	}
	r.Logger.Debugf("resolved %s on %s to override %s", group, date, f.Label())
	return Resolution{Formula: f, Source: domain.SourceOverride}, nil
}

func (r *Resolver) resolve(group domain.GroupKey, date civil.Date) (Resolution, error) {
	formulas := r.catalog.List(group)
	if len(formulas) == 0 {
		return Resolution{}, &domain.NoEffectiveFormulaError{Group: group, Date: date}
	}

	var (
		best     *domain.Formula
		covering []*domain.Formula
		current  *domain.Formula
		newest   *domain.Formula
	)
	for i := range formulas {
		f := &formulas[i]
		if f.Covers(date) {
			covering = append(covering, f)
			if best == nil || f.Newer(best) {
				best = f
			}
		}
		if f.IsCurrent() {
			current = f
		}
		if newest == nil || f.Newer(newest) {
			newest = f
		}
	}

	if best != nil {
		res := Resolution{Formula: *best, Source: domain.SourceWindow}
		if len(covering) > 1 {
			msg := fmt.Sprintf("%d formulas of %s cover %s; using %s", len(covering), group, date, best.Label())
			r.Logger.Warnf("overlapping effective windows: %s", msg)
			res.Warnings = append(res.Warnings, msg)
		}
		return res, nil
	}

	if current != nil {
		r.Logger.Debugf("no window of %s covers %s; using current %s", group, date, current.Label())
		return Resolution{Formula: *current, Source: domain.SourceCurrent}, nil
	}

	msg := fmt.Sprintf("no effective or current formula for %s on %s; falling back to %s", group, date, newest.Label())
	r.Logger.Warnf("%s", msg)
	return Resolution{Formula: *newest, Source: domain.SourceFallback, Warnings: []string{msg}}, nil
}
