package calculation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rgehrsitz/kepay/internal/catalog"
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_HistoricalWindows(t *testing.T) {
	r := NewResolver(loadCatalog(t))

	tests := []struct {
		name     string
		group    domain.GroupKey
		date     string
		expected string
	}{
		{"paye 2019", payeGroup, "2019-06-30", "2018-2020"},
		{"paye day before covid bands", payeGroup, "2020-04-24", "2018-2020"},
		{"paye first day of covid bands", payeGroup, "2020-04-25", "2020 COVID"},
		{"paye 2022", payeGroup, "2022-06-01", "2021-2022"},
		{"paye late 2024", payeGroup, "2024-12-26", "2023 Onwards"},
		{"paye 2025", payeGroup, "2025-01-31", "2025 Onwards"},
		{"nssf year 2 still applies in january 2025", nssfGroup, "2025-01-31", "2024 Year 2"},
		{"nssf 2025", nssfGroup, "2025-02-01", "2025 Onwards"},
		{"nhif before shif", nhifGroup, "2024-09-30", "NHIF 2015"},
		{"shif", shifGroup, "2024-10-01", "S.H.I.F – 2024 Onwards"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.ResolveDetailed(tt.group, date(tt.date), "")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, res.Formula.Version)
			assert.Equal(t, domain.SourceWindow, res.Source)
			assert.Empty(t, res.Warnings)
		})
	}
}

func TestResolver_2022UsesThreeBracketsAndFullRelief(t *testing.T) {
	r := NewResolver(loadCatalog(t))

	f, err := r.Resolve(payeGroup, date("2022-06-01"), "")
	require.NoError(t, err)

	assert.Equal(t, "2021-2022", f.Version)
	assert.Len(t, f.Tiers, 3)
	require.NotNil(t, f.Relief)
	assert.Equal(t, domain.ReliefPersonal, f.Relief.Kind)
	assertDecimal(t, "2400", f.Relief.FixedLimit)
	assertDecimal(t, "2400", f.PersonalRelief)
}

func TestResolver_Override(t *testing.T) {
	r := NewResolver(loadCatalog(t))

	t.Run("valid override", func(t *testing.T) {
		res, err := r.ResolveDetailed(payeGroup, date("2024-12-20"), "paye-2023")
		require.NoError(t, err)
		assert.Equal(t, "paye-2023", res.Formula.ID)
		assert.Equal(t, domain.SourceOverride, res.Source)
	})

	tests := []struct {
		name     string
		override string
		group    domain.GroupKey
		date     string
		reason   string
	}{
		{"unknown id", "does-not-exist", payeGroup, "2024-06-01", "does not exist"},
		{"wrong group", "nssf-2025", payeGroup, "2025-06-01", "belongs to"},
		{"window does not cover date", "paye-2021", payeGroup, "2024-06-01", "does not cover"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(tt.group, date(tt.date), tt.override)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidOverride))
			assert.True(t, domain.IsCallerError(err))

			var invalid *domain.InvalidOverrideError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, tt.override, invalid.OverrideID)
			assert.Contains(t, invalid.Reason, tt.reason)
		})
	}
}

func TestResolver_CurrentWhenNoWindowMatches(t *testing.T) {
	r := NewResolver(loadCatalog(t))

	res, err := r.ResolveDetailed(payeGroup, date("2010-01-01"), "")
	require.NoError(t, err)
	assert.Equal(t, "paye-2025", res.Formula.ID)
	assert.Equal(t, domain.SourceCurrent, res.Source)
}

func TestResolver_FallbackIsFlagged(t *testing.T) {
	logger := &TestLogger{}
	r := NewResolver(loadCatalog(t))
	r.SetLogger(logger)

	// NHIF was superseded by SHIF and has no current formula
	res, err := r.ResolveDetailed(nhifGroup, date("2025-01-31"), "")
	require.NoError(t, err)
	assert.Equal(t, "nhif-2015", res.Formula.ID)
	assert.Equal(t, domain.SourceFallback, res.Source)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 1, logger.count("WARN"))
}

func TestResolver_DeactivationGapIsDetectable(t *testing.T) {
	c := loadCatalog(t)
	r := NewResolver(c)

	_, err := c.Deactivate(context.Background(), "shif-2024")
	require.NoError(t, err)

	// The window still covers the date, so resolution is unaffected there
	res, err := r.ResolveDetailed(shifGroup, date("2025-01-31"), "")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceWindow, res.Source)

	// Before the window there is nothing current any more
	res, err = r.ResolveDetailed(shifGroup, date("2024-01-31"), "")
	require.NoError(t, err)
	assert.Equal(t, "shif-2024", res.Formula.ID)
	assert.Equal(t, domain.SourceFallback, res.Source)
}

func TestResolver_OverlapTieBreak(t *testing.T) {
	group := domain.GroupKey{Type: domain.FormulaTypeDeduction, Category: "pension"}
	tiers := []domain.Tier{{AmountFrom: dec("0"), Rate: pct("5")}}
	c, err := catalog.New([]domain.Formula{
		{ID: "a", Type: group.Type, Category: group.Category, Version: "A", EffectiveFrom: date("2024-01-01"), Tiers: tiers},
		{ID: "b", Type: group.Type, Category: group.Category, Version: "B", EffectiveFrom: date("2024-01-01"), Tiers: tiers},
		{ID: "c", Type: group.Type, Category: group.Category, Version: "Z", EffectiveFrom: date("2023-01-01"), Tiers: tiers},
		{ID: "d", Type: group.Type, Category: group.Category, Version: "C", EffectiveFrom: date("2024-06-01"), EffectiveTo: datePtr("2024-07-01"), Tiers: tiers},
	})
	require.NoError(t, err)

	logger := &TestLogger{}
	r := NewResolver(c)
	r.SetLogger(logger)

	t.Run("higher version wins on equal from", func(t *testing.T) {
		res, err := r.ResolveDetailed(group, date("2024-03-01"), "")
		require.NoError(t, err)
		assert.Equal(t, "b", res.Formula.ID)
		assert.NotEmpty(t, res.Warnings)
	})

	t.Run("latest from wins over higher version", func(t *testing.T) {
		res, err := r.ResolveDetailed(group, date("2024-06-15"), "")
		require.NoError(t, err)
		assert.Equal(t, "d", res.Formula.ID)
	})

	t.Run("override beats the tie-break winner", func(t *testing.T) {
		res, err := r.ResolveDetailed(group, date("2024-03-01"), "a")
		require.NoError(t, err)
		assert.Equal(t, "a", res.Formula.ID)
		assert.Equal(t, domain.SourceOverride, res.Source)
	})

	t.Run("deterministic", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			f, err := r.Resolve(group, date("2024-03-01"), "")
			require.NoError(t, err)
			assert.Equal(t, "b", f.ID)
		}
	})

	assert.Greater(t, logger.count("WARN"), 0)
}

func TestResolver_EmptyGroup(t *testing.T) {
	r := NewResolver(loadCatalog(t))
	group := domain.GroupKey{Type: domain.FormulaTypeIncome, Category: domain.CategorySecondary}

	_, err := r.Resolve(group, date("2025-01-31"), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoEffectiveFormula))
	assert.True(t, domain.IsNotFound(err))

	var none *domain.NoEffectiveFormulaError
	require.True(t, errors.As(err, &none))
	assert.Equal(t, group, none.Group)
}

func TestResolver_ReturnsCopies(t *testing.T) {
	c := loadCatalog(t)
	r := NewCachedResolver(c, NewMemoryCache())

	f, err := r.Resolve(shifGroup, date("2025-01-31"), "")
	require.NoError(t, err)
	f.Tiers[0].Rate = pct("99")
	f.Version = "tampered"

	again, err := r.Resolve(shifGroup, date("2025-01-31"), "")
	require.NoError(t, err)
	assert.Equal(t, "S.H.I.F – 2024 Onwards", again.Version)
	assert.Equal(t, pct("2.75").String(), again.Tiers[0].Rate.String())
}

func TestResolver_CacheInvalidatedByActivation(t *testing.T) {
	c := loadCatalog(t)
	cache := NewMemoryCache()
	r := Attach(c, cache)

	res, err := r.ResolveDetailed(payeGroup, date("2010-01-01"), "")
	require.NoError(t, err)
	assert.Equal(t, "paye-2025", res.Formula.ID)
	assert.Equal(t, 1, cache.Len())

	_, err = c.Activate(context.Background(), "paye-2023")
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Len())

	res, err = r.ResolveDetailed(payeGroup, date("2010-01-01"), "")
	require.NoError(t, err)
	assert.Equal(t, "paye-2023", res.Formula.ID)
	assert.Equal(t, domain.SourceCurrent, res.Source)
}

func TestResolver_OverridesBypassCache(t *testing.T) {
	cache := NewMemoryCache()
	r := NewCachedResolver(loadCatalog(t), cache)

	_, err := r.Resolve(payeGroup, date("2024-12-20"), "paye-2023")
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestResolver_ConcurrentResolves(t *testing.T) {
	r := NewCachedResolver(loadCatalog(t), NewMemoryCache())

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := r.Resolve(payeGroup, date("2022-06-01"), "")
			if err != nil {
				errs <- err
				return
			}
			if f.ID != "paye-2021" {
				errs <- errors.New("unexpected formula " + f.ID)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestMemoryCache_StaleGenerationDropped(t *testing.T) {
	cache := NewMemoryCache()
	key := CacheKey{Group: payeGroup, Date: date("2025-01-31")}

	gen := cache.Generation()
	cache.InvalidateGroup(payeGroup)
	cache.Put(key, Resolution{Source: domain.SourceWindow}, gen)
	assert.Equal(t, 0, cache.Len(), "entry computed before invalidation must not be stored")

	cache.Put(key, Resolution{Source: domain.SourceWindow}, cache.Generation())
	assert.Equal(t, 1, cache.Len())

	cache.Purge()
	_, ok := cache.Get(key)
	assert.False(t, ok)
}

func TestResolver_SetLogger(t *testing.T) {
	r := NewResolver(loadCatalog(t))

	custom := &TestLogger{}
	r.SetLogger(custom)
	assert.Equal(t, custom, r.Logger, "Should set custom logger")

	r.SetLogger(nil)
	assert.NotNil(t, r.Logger, "Should not be nil")
	assert.IsType(t, NopLogger{}, r.Logger, "Should be no-op logger")
}

// stallingReader blocks inside its first List call until release is closed
type stallingReader struct {
	catalog.Reader
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *stallingReader) List(group domain.GroupKey) []domain.Formula {
	formulas := s.Reader.List(group)
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return formulas
}

func TestResolver_ResolveAfterActivationSeesNewCurrent(t *testing.T) {
	c := loadCatalog(t)
	reader := &stallingReader{Reader: c, entered: make(chan struct{}), release: make(chan struct{})}
	cache := NewMemoryCache()
	r := NewCachedResolver(reader, cache)
	c.Subscribe(r.Invalidate)

	type outcome struct {
		res Resolution
		err error
	}
	resolveAsync := func() chan outcome {
		ch := make(chan outcome, 1)
		go func() {
			res, err := r.ResolveDetailed(payeGroup, date("2010-01-01"), "")
			ch <- outcome{res, err}
		}()
		return ch
	}

	early := resolveAsync()
	<-reader.entered

	_, err := c.Activate(context.Background(), "paye-2023")
	require.NoError(t, err)

	late := resolveAsync()
	var got outcome
	select {
	case got = <-late:
		close(reader.release)
	case <-time.After(2 * time.Second):
		close(reader.release)
		got = <-late
	}
	require.NoError(t, got.err)
	assert.Equal(t, "paye-2023", got.res.Formula.ID, "a resolve started after activation must not reuse the earlier read")

	first := <-early
	require.NoError(t, first.err)

	cached, ok := cache.Get(CacheKey{Group: payeGroup, Date: date("2010-01-01")})
	require.True(t, ok)
	assert.Equal(t, "paye-2023", cached.Formula.ID)
}
