// Package sqlite persists the formula catalog in SQLite.
//
// Tables:
//
//	formulas:        one row per formula version, lifecycle state included
//	formula_tiers:   ordered tiers of each formula
//	catalog_events:  append-only audit trail of catalog writes
//
// Formulas are never deleted. A lifecycle transition rewrites the affected
// formula rows and appends its event in one transaction, so the audit trail
// and the state it describes cannot diverge.
//
// Usage:
//
//	store, err := sqlite.New("./data/kepay.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//	formulas, err := store.LoadFormulas(ctx)
//	cat, err := catalog.New(formulas)
//	cat.SetPersister(store)
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rgehrsitz/kepay/internal/catalog"
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/shopspring/decimal"
)

// formulaColumns is the column list scanFormula expects
const formulaColumns = `id, type, category, version, effective_from, effective_to, status, personal_relief,
	relief_kind, relief_percentage, relief_fixed_limit, relief_percent_of, relief_active,
	split_employee, split_employer, minimum_amount, deduction_order_json,
	regulatory_source, notes`

const (
	rateKindPercentage = "percentage"
	rateKindFixed      = "fixed"
)

// Store implements catalog.Persister on SQLite
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ catalog.ConditionalPersister = (*Store)(nil)

// New opens (and migrates) the database at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS formulas (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		category TEXT NOT NULL,
		version TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		status TEXT NOT NULL,
		personal_relief TEXT NOT NULL DEFAULT '0',
		relief_kind TEXT,
		relief_percentage TEXT,
		relief_fixed_limit TEXT,
		relief_percent_of TEXT,
		relief_active BOOLEAN DEFAULT FALSE,
		split_employee TEXT,
		split_employer TEXT,
		minimum_amount TEXT,
		deduction_order_json TEXT,
		regulatory_source TEXT,
		notes TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_formulas_group
		ON formulas(type, category, effective_from DESC);

	-- at most one current formula per (type, category)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_formulas_one_current
		ON formulas(type, category) WHERE status = 'current';

	CREATE TABLE IF NOT EXISTS formula_tiers (
		formula_id TEXT NOT NULL REFERENCES formulas(id),
		position INTEGER NOT NULL,
		amount_from TEXT NOT NULL,
		amount_to TEXT,
		rate_kind TEXT NOT NULL CHECK (rate_kind IN ('percentage', 'fixed')),
		rate_value TEXT NOT NULL,
		PRIMARY KEY (formula_id, position)
	);

	CREATE TABLE IF NOT EXISTS catalog_events (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		formula_ids TEXT NOT NULL,
		occurred_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_catalog_events_occurred
		ON catalog_events(occurred_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveFormula inserts a new formula and records event
func (s *Store) SaveFormula(ctx context.Context, f domain.Formula, event catalog.ChangeEvent) error {
	return s.ApplyChange(ctx, event, []domain.Formula{f})
}

// SaveFormulas writes a whole formula set, e.g. an imported dataset, under one event
func (s *Store) SaveFormulas(ctx context.Context, formulas []domain.Formula, event catalog.ChangeEvent) error {
	return s.ApplyChange(ctx, event, formulas)
}

// ApplyChange upserts every formula in updated and appends event, atomically
func (s *Store) ApplyChange(ctx context.Context, event catalog.ChangeEvent, updated []domain.Formula) error {
	return s.applyChange(ctx, event, updated, nil)
}

// ApplyChangeIf is ApplyChange guarded by the stored state: it only writes
// when the group's current row is still expectedCurrentID ("" meaning none).
// Otherwise it returns a *domain.ConflictError carrying the stored current
// formula, which may have been written by another process.
func (s *Store) ApplyChangeIf(ctx context.Context, event catalog.ChangeEvent, updated []domain.Formula, expectedCurrentID string) error {
	return s.applyChange(ctx, event, updated, func(tx *sql.Tx) error {
		cur, err := currentFormula(ctx, tx, event.Group)
		if err != nil {
			return err
		}
		actual := ""
		if cur != nil {
			actual = cur.ID
		}
		if actual != expectedCurrentID {
			return &domain.ConflictError{Group: event.Group, ExpectedCurrent: expectedCurrentID, Current: cur}
		}
		return nil
	})
}

func (s *Store) applyChange(ctx context.Context, event catalog.ChangeEvent, updated []domain.Formula, check func(*sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if check != nil {
		if err := check(tx); err != nil {
			return err
		}
	}

	// Demotions must land before a promotion or the one-current index trips
	ordered := make([]domain.Formula, 0, len(updated))
	for _, f := range updated {
		if !f.IsCurrent() {
			ordered = append(ordered, f)
		}
	}
	for _, f := range updated {
		if f.IsCurrent() {
			ordered = append(ordered, f)
		}
	}

	for i := range ordered {
		if err := upsertFormula(ctx, tx, &ordered[i]); err != nil {
			return err
		}
	}
	if err := appendEvent(ctx, tx, event); err != nil {
		return err
	}
	return tx.Commit()
}

// currentFormula reads the stored current formula of group, tiers included.
// It returns nil when the group has none.
func currentFormula(ctx context.Context, tx *sql.Tx, group domain.GroupKey) (*domain.Formula, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+formulaColumns+`
		FROM formulas
		WHERE type = ? AND category = ? AND status = ?`,
		string(group.Type), string(group.Category), string(domain.StateCurrent))
	f, err := scanFormula(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT amount_from, amount_to, rate_kind, rate_value
		FROM formula_tiers
		WHERE formula_id = ?
		ORDER BY position`, f.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tiers of %s: %w", f.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			from, kind, value string
			to                sql.NullString
		)
		if err := rows.Scan(&from, &to, &kind, &value); err != nil {
			return nil, fmt.Errorf("failed to scan tier: %w", err)
		}
		tier, err := buildTier(from, to, kind, value)
		if err != nil {
			return nil, fmt.Errorf("formula %s: %w", f.ID, err)
		}
		f.Tiers = append(f.Tiers, tier)
	}
	return &f, rows.Err()
}

func upsertFormula(ctx context.Context, db execer, f *domain.Formula) error {
	orderJSON, err := json.Marshal(toOrderRows(f.DeductionOrder))
	if err != nil {
		return fmt.Errorf("failed to encode deduction order of %s: %w", f.ID, err)
	}

	var (
		reliefKind, reliefPct, reliefLimit, reliefOf sql.NullString
		reliefActive                                 bool
		splitEmployee, splitEmployer                 sql.NullString
		minimum                                      sql.NullString
		effectiveTo                                  sql.NullString
	)
	if r := f.Relief; r != nil {
		reliefKind = nullString(string(r.Kind))
		reliefPct = nullString(r.Percentage.String())
		reliefLimit = nullString(r.FixedLimit.String())
		reliefOf = nullString(string(r.PercentOf))
		reliefActive = r.IsActive
	}
	if sr := f.SplitRatio; sr != nil {
		splitEmployee = nullString(sr.EmployeePercentage.String())
		splitEmployer = nullString(sr.EmployerPercentage.String())
	}
	if f.MinimumAmount != nil {
		minimum = nullString(f.MinimumAmount.String())
	}
	if f.EffectiveTo != nil {
		effectiveTo = nullString(f.EffectiveTo.String())
	}

	query := `
		INSERT INTO formulas
		(id, type, category, version, effective_from, effective_to, status, personal_relief,
		 relief_kind, relief_percentage, relief_fixed_limit, relief_percent_of, relief_active,
		 split_employee, split_employer, minimum_amount, deduction_order_json,
		 regulatory_source, notes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			category = excluded.category,
			version = excluded.version,
			effective_from = excluded.effective_from,
			effective_to = excluded.effective_to,
			status = excluded.status,
			personal_relief = excluded.personal_relief,
			relief_kind = excluded.relief_kind,
			relief_percentage = excluded.relief_percentage,
			relief_fixed_limit = excluded.relief_fixed_limit,
			relief_percent_of = excluded.relief_percent_of,
			relief_active = excluded.relief_active,
			split_employee = excluded.split_employee,
			split_employer = excluded.split_employer,
			minimum_amount = excluded.minimum_amount,
			deduction_order_json = excluded.deduction_order_json,
			regulatory_source = excluded.regulatory_source,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`
	_, err = db.ExecContext(ctx, query,
		f.ID,
		string(f.Type),
		string(f.Category),
		f.Version,
		f.EffectiveFrom.String(),
		effectiveTo,
		string(f.Status),
		f.PersonalRelief.String(),
		reliefKind, reliefPct, reliefLimit, reliefOf, reliefActive,
		splitEmployee, splitEmployer,
		minimum,
		string(orderJSON),
		f.RegulatorySource,
		f.Notes,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &domain.MalformedFormulaDataError{
				FormulaID: f.ID,
				Version:   f.Version,
				TierIndex: -1,
				Reason:    fmt.Sprintf("%s already has a current formula in the store", f.Key()),
			}
		}
		return fmt.Errorf("failed to save formula %s: %w", f.ID, err)
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM formula_tiers WHERE formula_id = ?", f.ID); err != nil {
		return fmt.Errorf("failed to replace tiers of %s: %w", f.ID, err)
	}
	for i, t := range f.Tiers {
		var kind, value string
		switch rate := t.Rate.(type) {
		case domain.PercentageRate:
			kind, value = rateKindPercentage, rate.Percent.String()
		case domain.FixedAmount:
			kind, value = rateKindFixed, rate.Amount.String()
		default:
			return &domain.MalformedFormulaDataError{FormulaID: f.ID, Version: f.Version, TierIndex: i, Reason: "tier has no rate"}
		}
		var amountTo sql.NullString
		if t.AmountTo != nil {
			amountTo = nullString(t.AmountTo.String())
		}
		_, err := db.ExecContext(ctx,
			"INSERT INTO formula_tiers (formula_id, position, amount_from, amount_to, rate_kind, rate_value) VALUES (?, ?, ?, ?, ?, ?)",
			f.ID, i, t.AmountFrom.String(), amountTo, kind, value,
		)
		if err != nil {
			return fmt.Errorf("failed to save tier %d of %s: %w", i, f.ID, err)
		}
	}
	return nil
}

func appendEvent(ctx context.Context, db execer, event catalog.ChangeEvent) error {
	ids, err := json.Marshal(event.FormulaIDs)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.ID, err)
	}
	_, err = db.ExecContext(ctx,
		"INSERT INTO catalog_events (id, kind, type, category, formula_ids, occurred_at) VALUES (?, ?, ?, ?, ?, ?)",
		event.ID,
		string(event.Kind),
		string(event.Group.Type),
		string(event.Group.Category),
		string(ids),
		event.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append event %s: %w", event.ID, err)
	}
	return nil
}

// LoadFormulas returns every stored formula ordered by group and effective date
func (s *Store) LoadFormulas(ctx context.Context) ([]domain.Formula, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+formulaColumns+`
		FROM formulas
		ORDER BY type, category, effective_from, version
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query formulas: %w", err)
	}
	defer rows.Close()

	var formulas []domain.Formula
	index := map[string]int{}
	for rows.Next() {
		f, err := scanFormula(rows)
		if err != nil {
			return nil, err
		}
		index[f.ID] = len(formulas)
		formulas = append(formulas, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tierRows, err := s.db.QueryContext(ctx, `
		SELECT formula_id, amount_from, amount_to, rate_kind, rate_value
		FROM formula_tiers
		ORDER BY formula_id, position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tiers: %w", err)
	}
	defer tierRows.Close()

	for tierRows.Next() {
		var (
			formulaID, from, kind, value string
			to                           sql.NullString
		)
		if err := tierRows.Scan(&formulaID, &from, &to, &kind, &value); err != nil {
			return nil, fmt.Errorf("failed to scan tier: %w", err)
		}
		i, ok := index[formulaID]
		if !ok {
			continue
		}
		tier, err := buildTier(from, to, kind, value)
		if err != nil {
			return nil, fmt.Errorf("formula %s: %w", formulaID, err)
		}
		formulas[i].Tiers = append(formulas[i].Tiers, tier)
	}
	return formulas, tierRows.Err()
}

// Events returns the most recent catalog events, newest first. limit <= 0 returns all.
func (s *Store) Events(ctx context.Context, limit int) ([]catalog.ChangeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, kind, type, category, formula_ids, occurred_at FROM catalog_events ORDER BY occurred_at DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []catalog.ChangeEvent
	for rows.Next() {
		var (
			e                                  catalog.ChangeEvent
			kind, typ, category, ids, occurred string
		)
		if err := rows.Scan(&e.ID, &kind, &typ, &category, &ids, &occurred); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Kind = catalog.EventKind(kind)
		e.Group = domain.GroupKey{Type: domain.FormulaType(typ), Category: domain.Category(category)}
		if err := json.Unmarshal([]byte(ids), &e.FormulaIDs); err != nil {
			return nil, fmt.Errorf("failed to decode event %s: %w", e.ID, err)
		}
		if e.At, err = time.Parse(time.RFC3339Nano, occurred); err != nil {
			return nil, fmt.Errorf("failed to parse event time %q: %w", occurred, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFormula(row rowScanner) (domain.Formula, error) {
	var (
		f                                           domain.Formula
		typ, category, from, status, personalRelief string
		to, reliefKind, reliefPct, reliefLimit      sql.NullString
		reliefOf, splitEmployee, splitEmployer      sql.NullString
		minimum, orderJSON, regulatorySource, notes sql.NullString
		reliefActive                                bool
	)
	err := row.Scan(&f.ID, &typ, &category, &f.Version, &from, &to, &status, &personalRelief,
		&reliefKind, &reliefPct, &reliefLimit, &reliefOf, &reliefActive,
		&splitEmployee, &splitEmployer, &minimum, &orderJSON,
		&regulatorySource, &notes)
	if err != nil {
		return f, fmt.Errorf("failed to scan formula: %w", err)
	}

	f.Type = domain.FormulaType(typ)
	f.Category = domain.Category(category)
	f.Status = domain.LifecycleState(status)
	f.RegulatorySource = regulatorySource.String
	f.Notes = notes.String

	if f.EffectiveFrom, err = civil.ParseDate(from); err != nil {
		return f, fmt.Errorf("formula %s: bad effective_from: %w", f.ID, err)
	}
	if to.Valid {
		d, err := civil.ParseDate(to.String)
		if err != nil {
			return f, fmt.Errorf("formula %s: bad effective_to: %w", f.ID, err)
		}
		f.EffectiveTo = &d
	}
	if f.PersonalRelief, err = decimal.NewFromString(personalRelief); err != nil {
		return f, fmt.Errorf("formula %s: bad personal_relief: %w", f.ID, err)
	}

	if reliefKind.Valid {
		pct, err := decimalColumn(&f, "relief_percentage", reliefPct)
		if err != nil {
			return f, err
		}
		limit, err := decimalColumn(&f, "relief_fixed_limit", reliefLimit)
		if err != nil {
			return f, err
		}
		f.Relief = &domain.Relief{
			Kind:       domain.ReliefKind(reliefKind.String),
			Percentage: pct,
			FixedLimit: limit,
			PercentOf:  domain.ReliefBasis(reliefOf.String),
			IsActive:   reliefActive,
		}
	}
	if splitEmployee.Valid {
		employee, err := decimalColumn(&f, "split_employee", splitEmployee)
		if err != nil {
			return f, err
		}
		employer, err := decimalColumn(&f, "split_employer", splitEmployer)
		if err != nil {
			return f, err
		}
		f.SplitRatio = &domain.SplitRatio{EmployeePercentage: employee, EmployerPercentage: employer}
	}
	if minimum.Valid {
		m, err := decimalColumn(&f, "minimum_amount", minimum)
		if err != nil {
			return f, err
		}
		f.MinimumAmount = &m
	}
	if orderJSON.Valid && orderJSON.String != "" {
		var rows []orderRow
		if err := json.Unmarshal([]byte(orderJSON.String), &rows); err != nil {
			return f, fmt.Errorf("formula %s: bad deduction order: %w", f.ID, err)
		}
		f.DeductionOrder = fromOrderRows(rows)
	}
	return f, nil
}

func buildTier(from string, to sql.NullString, kind, value string) (domain.Tier, error) {
	var t domain.Tier
	var err error
	if t.AmountFrom, err = decimal.NewFromString(from); err != nil {
		return t, fmt.Errorf("bad amount_from %q: %w", from, err)
	}
	if to.Valid {
		d, err := decimal.NewFromString(to.String)
		if err != nil {
			return t, fmt.Errorf("bad amount_to %q: %w", to.String, err)
		}
		t.AmountTo = &d
	}
	v, err := decimal.NewFromString(value)
	if err != nil {
		return t, fmt.Errorf("bad rate value %q: %w", value, err)
	}
	switch kind {
	case rateKindPercentage:
		t.Rate = domain.PercentageRate{Percent: v}
	case rateKindFixed:
		t.Rate = domain.FixedAmount{Amount: v}
	default:
		return t, fmt.Errorf("unknown rate kind %q", kind)
	}
	return t, nil
}

// orderRow is the JSON shape of one deduction order entry
type orderRow struct {
	Phase      string   `json:"phase"`
	Components []string `json:"components"`
}

func toOrderRows(order []domain.PhaseOrder) []orderRow {
	rows := make([]orderRow, 0, len(order))
	for _, po := range order {
		r := orderRow{Phase: string(po.Phase)}
		for _, c := range po.Components {
			r.Components = append(r.Components, string(c))
		}
		rows = append(rows, r)
	}
	return rows
}

func fromOrderRows(rows []orderRow) []domain.PhaseOrder {
	var order []domain.PhaseOrder
	for _, r := range rows {
		po := domain.PhaseOrder{Phase: domain.Phase(r.Phase)}
		for _, c := range r.Components {
			po.Components = append(po.Components, domain.ComponentKey(c))
		}
		order = append(order, po)
	}
	return order
}

// decimalColumn parses a stored amount. A missing or unparsable value is
// malformed data, never a zero.
func decimalColumn(f *domain.Formula, column string, s sql.NullString) (decimal.Decimal, error) {
	if !s.Valid {
		return decimal.Zero, &domain.MalformedFormulaDataError{
			FormulaID: f.ID, Version: f.Version, TierIndex: -1,
			Reason: fmt.Sprintf("%s is missing", column),
		}
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.Zero, &domain.MalformedFormulaDataError{
			FormulaID: f.ID, Version: f.Version, TierIndex: -1,
			Reason: fmt.Sprintf("bad %s %q", column, s.String),
		}
	}
	return d, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
