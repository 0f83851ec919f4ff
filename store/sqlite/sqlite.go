/*
Package sqlite provides the SQLite-backed implementation of finance.Store.

PURPOSE:
  Persists the whole pricing chain (events, pricings with lines and logs,
  cashflows, invoices) plus the read models the engine consults (bookings,
  venue pricing points, bank account links, custom rules, incidents).

IMMUTABILITY ENFORCEMENT:
  Pricings, cashflows and invoices are insert-only; the only UPDATE
  statements in this package are the status transitions of the store
  contract, and every pricing transition inserts a pricing_logs row.

KEY TABLES:
  finance_events:    pricing triggers, one pricing each
  pricings:          immutable monetary results
  pricing_lines:     categorized components, sum = pricing amount
  pricing_logs:      status transition audit trail
  cashflows:         per-bank-account transfer groupings
  invoices:          billing documents, gapless references per year
  sequences:         batch label and reference counters

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, plus WAL mode. WithTx holds the write
  lock for the whole transaction, which also serializes NextReference: the
  reference counters stay gapless under concurrent invoice generation.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - finance/store.go: interface definitions
  - finance/store/memory: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/culturepass/finance-engine/finance"
)

// Store implements finance.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent (each pool
	// connection would otherwise get its own empty database) and the mutex
	// serializes access anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Venue read models
	CREATE TABLE IF NOT EXISTS venues (
		id TEXT PRIMARY KEY,
		pricing_point_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS bank_account_links (
		venue_id TEXT NOT NULL,
		bank_account_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_links_venue
		ON bank_account_links(venue_id);

	-- Bookings (read model, status advanced on invoicing)
	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		total_cents INTEGER NOT NULL,
		date_created TEXT NOT NULL,
		date_used TEXT NOT NULL,
		status TEXT NOT NULL,
		venue_id TEXT NOT NULL,
		offerer_id TEXT NOT NULL,
		offer_id TEXT NOT NULL,
		digital BOOLEAN NOT NULL DEFAULT FALSE,
		subcategory TEXT NOT NULL DEFAULT '',
		collective BOOLEAN NOT NULL DEFAULT FALSE
	);

	-- Finance events
	CREATE TABLE IF NOT EXISTS finance_events (
		id TEXT PRIMARY KEY,
		motive TEXT NOT NULL,
		status TEXT NOT NULL,
		booking_id TEXT NOT NULL DEFAULT '',
		incident_id TEXT NOT NULL DEFAULT '',
		venue_id TEXT NOT NULL,
		pricing_point_id TEXT NOT NULL DEFAULT '',
		value_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_status
		ON finance_events(status);

	-- Pricings (insert-only; status is the only mutable column)
	CREATE TABLE IF NOT EXISTS pricings (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		booking_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		venue_id TEXT NOT NULL,
		pricing_point_id TEXT NOT NULL,
		value_date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		amount INTEGER NOT NULL,
		revenue INTEGER NOT NULL,
		standard_rule TEXT NOT NULL DEFAULT '',
		custom_rule_id TEXT NOT NULL DEFAULT ''
	);

	-- CRITICAL: one non-cancelled pricing per event
	CREATE UNIQUE INDEX IF NOT EXISTS idx_pricings_event_active
		ON pricings(event_id) WHERE status != 'cancelled';

	-- Composite index for revenue aggregation (hot path)
	CREATE INDEX IF NOT EXISTS idx_pricings_point_date
		ON pricings(pricing_point_id, value_date);
	CREATE INDEX IF NOT EXISTS idx_pricings_status_date
		ON pricings(status, value_date);
	CREATE INDEX IF NOT EXISTS idx_pricings_booking
		ON pricings(booking_id) WHERE booking_id != '';

	CREATE TABLE IF NOT EXISTS pricing_lines (
		pricing_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		category TEXT NOT NULL,
		amount INTEGER NOT NULL,
		PRIMARY KEY (pricing_id, idx)
	);

	CREATE TABLE IF NOT EXISTS pricing_logs (
		pricing_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		status_before TEXT NOT NULL,
		status_after TEXT NOT NULL,
		reason TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_pricing_logs_pricing
		ON pricing_logs(pricing_id);

	-- Custom reimbursement rules
	CREATE TABLE IF NOT EXISTS custom_rules (
		id TEXT PRIMARY KEY,
		offer_id TEXT NOT NULL DEFAULT '',
		offerer_id TEXT NOT NULL DEFAULT '',
		subcategories_json TEXT NOT NULL DEFAULT '[]',
		amount INTEGER,
		rate TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT,
		created_at TEXT NOT NULL
	);

	-- Incidents
	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		booking_id TEXT NOT NULL,
		venue_id TEXT NOT NULL,
		new_total_amount INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Cashflows
	CREATE TABLE IF NOT EXISTS cashflow_batches (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL UNIQUE,
		cutoff TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cashflows (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		bank_account_id TEXT NOT NULL,
		status TEXT NOT NULL,
		amount INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cashflows_batch
		ON cashflows(batch_id);

	CREATE TABLE IF NOT EXISTS cashflow_pricings (
		cashflow_id TEXT NOT NULL,
		pricing_id TEXT NOT NULL,
		PRIMARY KEY (cashflow_id, pricing_id)
	);

	-- Invoices
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		reference TEXT NOT NULL UNIQUE,
		token TEXT NOT NULL,
		bank_account_id TEXT NOT NULL,
		date TEXT NOT NULL,
		amount INTEGER NOT NULL,
		is_debit_note BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE INDEX IF NOT EXISTS idx_invoices_bank_account
		ON invoices(bank_account_id);

	CREATE TABLE IF NOT EXISTS invoice_cashflows (
		invoice_id TEXT NOT NULL,
		cashflow_id TEXT NOT NULL,
		PRIMARY KEY (invoice_id, cashflow_id)
	);

	CREATE TABLE IF NOT EXISTS invoice_lines (
		invoice_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		label TEXT NOT NULL,
		group_label TEXT NOT NULL,
		group_position INTEGER NOT NULL,
		reimbursed_amount INTEGER NOT NULL,
		contribution_amount INTEGER NOT NULL,
		rate TEXT NOT NULL,
		PRIMARY KEY (invoice_id, idx)
	);

	-- Counters: batch labels and invoice/debit-note references
	CREATE TABLE IF NOT EXISTS sequences (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset wipes every table. Demo and test tooling only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"venues", "bank_account_links", "bookings", "finance_events",
		"pricings", "pricing_lines", "pricing_logs", "custom_rules",
		"incidents", "cashflow_batches", "cashflows", "cashflow_pricings",
		"invoices", "invoice_cashflows", "invoice_lines", "sequences",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// SEEDING - fixtures and back-office writes, not part of finance.Store
// =============================================================================

// SetPricingPoint records a venue's pricing point.
func (s *Store) SetPricingPoint(ctx context.Context, venueID, pricingPointID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO venues (id, pricing_point_id) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET pricing_point_id = excluded.pricing_point_id
	`
	_, err := s.db.ExecContext(ctx, query, venueID, pricingPointID)
	return err
}

// AddBankAccountLink records a venue-to-bank-account link.
func (s *Store) AddBankAccountLink(ctx context.Context, link finance.BankAccountLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var end *string
	if link.End != nil {
		t := link.End.UTC().Format(time.RFC3339)
		end = &t
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO bank_account_links (venue_id, bank_account_id, start_date, end_date) VALUES (?, ?, ?, ?)",
		link.VenueID, link.BankAccountID, link.Start.UTC().Format(time.RFC3339), end,
	)
	return err
}

// SaveBooking inserts or refreshes a booking read model.
func (s *Store) SaveBooking(ctx context.Context, b *finance.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO bookings
		(id, quantity, unit_price, total_cents, date_created, date_used, status,
		 venue_id, offerer_id, offer_id, digital, subcategory, collective)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			date_used = excluded.date_used
	`
	_, err := s.db.ExecContext(ctx, query,
		b.ID, b.Quantity, b.UnitPrice.String(), int64(b.TotalCents()),
		b.DateCreated.UTC().Format(time.RFC3339), b.DateUsed.UTC().Format(time.RFC3339),
		b.Status, b.VenueID, b.OffererID, b.OfferID,
		b.Digital, b.Subcategory, b.Collective,
	)
	return err
}

// =============================================================================
// VENUE RESOLUTION
// =============================================================================

func (s *Store) PricingPointFor(ctx context.Context, venueID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pricingPointFor(ctx, s.db, venueID)
}

func (s *Store) pricingPointFor(ctx context.Context, q dbtx, venueID string) (string, error) {
	var pp string
	err := q.QueryRowContext(ctx,
		"SELECT pricing_point_id FROM venues WHERE id = ?", venueID,
	).Scan(&pp)
	if err == sql.ErrNoRows || (err == nil && pp == "") {
		return "", &finance.PricingPointError{VenueID: venueID}
	}
	if err != nil {
		return "", err
	}
	return pp, nil
}

func (s *Store) BankAccountFor(ctx context.Context, venueID string, at time.Time) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bankAccountFor(ctx, s.db, venueID, at)
}

func (s *Store) bankAccountFor(ctx context.Context, q dbtx, venueID string, at time.Time) (string, bool, error) {
	atStr := at.UTC().Format(time.RFC3339)
	var account string
	err := q.QueryRowContext(ctx, `
		SELECT bank_account_id FROM bank_account_links
		WHERE venue_id = ? AND start_date <= ? AND (end_date IS NULL OR ? < end_date)
		LIMIT 1`,
		venueID, atStr, atStr,
	).Scan(&account)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return account, true, nil
}

// =============================================================================
// BOOKINGS
// =============================================================================

const bookingColumns = `id, quantity, unit_price, date_created, date_used, status,
	venue_id, offerer_id, offer_id, digital, subcategory, collective`

func (s *Store) GetBooking(ctx context.Context, id string) (*finance.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBooking(ctx, s.db, id)
}

func (s *Store) getBooking(ctx context.Context, q dbtx, id string) (*finance.Booking, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id)

	var b finance.Booking
	var unitPrice, dateCreated, dateUsed string
	err := row.Scan(&b.ID, &b.Quantity, &unitPrice, &dateCreated, &dateUsed, &b.Status,
		&b.VenueID, &b.OffererID, &b.OfferID, &b.Digital, &b.Subcategory, &b.Collective)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}
	b.UnitPrice, err = decimal.NewFromString(unitPrice)
	if err != nil {
		return nil, fmt.Errorf("booking %s has invalid unit price %q: %w", id, unitPrice, err)
	}
	b.DateCreated, _ = time.Parse(time.RFC3339, dateCreated)
	b.DateUsed, _ = time.Parse(time.RFC3339, dateUsed)
	return &b, nil
}

func (s *Store) MarkBookingsReimbursed(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markBookingsReimbursed(ctx, s.db, ids)
}

func (s *Store) markBookingsReimbursed(ctx context.Context, q dbtx, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(
		"UPDATE bookings SET status = ? WHERE id IN (%s) AND status != ?",
		placeholders(len(ids)))
	args := []any{finance.BookingReimbursed}
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, finance.BookingCancelled)
	_, err := q.ExecContext(ctx, query, args...)
	return err
}

// =============================================================================
// FINANCE EVENTS
// =============================================================================

func (s *Store) AddEvent(ctx context.Context, event *finance.FinanceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addEvent(ctx, s.db, event)
}

func (s *Store) addEvent(ctx context.Context, q dbtx, event *finance.FinanceEvent) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO finance_events
		(id, motive, status, booking_id, incident_id, venue_id, pricing_point_id, value_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Motive, event.Status, event.BookingID, event.IncidentID,
		event.VenueID, event.PricingPointID,
		event.ValueDate.UTC().Format(time.RFC3339),
		event.CreationDate.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*finance.FinanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEvent(ctx, s.db, id)
}

func (s *Store) getEvent(ctx context.Context, q dbtx, id string) (*finance.FinanceEvent, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, motive, status, booking_id, incident_id, venue_id, pricing_point_id, value_date, created_at
		FROM finance_events WHERE id = ?`, id)

	var e finance.FinanceEvent
	var valueDate, createdAt string
	err := row.Scan(&e.ID, &e.Motive, &e.Status, &e.BookingID, &e.IncidentID,
		&e.VenueID, &e.PricingPointID, &valueDate, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}
	e.ValueDate, _ = time.Parse(time.RFC3339, valueDate)
	e.CreationDate, _ = time.Parse(time.RFC3339, createdAt)
	return &e, nil
}

func (s *Store) UpdateEventStatus(ctx context.Context, id string, status finance.FinanceEventStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateEventStatus(ctx, s.db, id, status)
}

func (s *Store) updateEventStatus(ctx context.Context, q dbtx, id string, status finance.FinanceEventStatus) error {
	res, err := q.ExecContext(ctx,
		"UPDATE finance_events SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event %s: %w", id, finance.ErrEventNotFound)
	}
	return nil
}

// =============================================================================
// PRICINGS
// =============================================================================

const pricingColumns = `id, event_id, booking_id, status, venue_id, pricing_point_id,
	value_date, created_at, amount, revenue, standard_rule, custom_rule_id`

func (s *Store) SavePricing(ctx context.Context, pricing *finance.Pricing, log finance.PricingLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.savePricing(ctx, s.db, pricing, log)
}

func (s *Store) savePricing(ctx context.Context, q dbtx, pricing *finance.Pricing, log finance.PricingLog) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO pricings (`+pricingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pricing.ID, pricing.EventID, pricing.BookingID, pricing.Status,
		pricing.VenueID, pricing.PricingPointID,
		pricing.ValueDate.UTC().Format(time.RFC3339),
		pricing.CreationDate.UTC().Format(time.RFC3339),
		int64(pricing.Amount), int64(pricing.Revenue),
		pricing.StandardRule, pricing.CustomRuleID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("event %s: %w", pricing.EventID, finance.ErrAlreadyPriced)
		}
		return fmt.Errorf("failed to insert pricing: %w", err)
	}
	for i, line := range pricing.Lines {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO pricing_lines (pricing_id, idx, category, amount) VALUES (?, ?, ?, ?)",
			pricing.ID, i, line.Category, int64(line.Amount),
		); err != nil {
			return fmt.Errorf("failed to insert pricing line: %w", err)
		}
	}
	return s.appendLog(ctx, q, log)
}

func (s *Store) appendLog(ctx context.Context, q dbtx, log finance.PricingLog) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO pricing_logs (pricing_id, timestamp, status_before, status_after, reason)
		VALUES (?, ?, ?, ?, ?)`,
		log.PricingID, log.Timestamp.UTC().Format(time.RFC3339),
		log.StatusBefore, log.StatusAfter, log.Reason,
	)
	return err
}

func (s *Store) PricingForEvent(ctx context.Context, eventID string) (*finance.Pricing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pricingForEvent(ctx, s.db, eventID)
}

func (s *Store) pricingForEvent(ctx context.Context, q dbtx, eventID string) (*finance.Pricing, error) {
	pricings, err := s.queryPricings(ctx, q,
		"SELECT "+pricingColumns+" FROM pricings WHERE event_id = ? AND status != ?",
		eventID, finance.PricingCancelled)
	if err != nil || len(pricings) == 0 {
		return nil, err
	}
	return pricings[0], nil
}

func (s *Store) LatestPricingForBooking(ctx context.Context, bookingID string) (*finance.Pricing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestPricingForBooking(ctx, s.db, bookingID)
}

func (s *Store) latestPricingForBooking(ctx context.Context, q dbtx, bookingID string) (*finance.Pricing, error) {
	pricings, err := s.queryPricings(ctx, q, `
		SELECT `+pricingColumns+` FROM pricings
		WHERE booking_id = ? AND status != ?
		ORDER BY created_at DESC LIMIT 1`,
		bookingID, finance.PricingCancelled)
	if err != nil || len(pricings) == 0 {
		return nil, err
	}
	return pricings[0], nil
}

func (s *Store) ValidatedPricings(ctx context.Context, cutoff time.Time) ([]*finance.Pricing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validatedPricings(ctx, s.db, cutoff)
}

func (s *Store) validatedPricings(ctx context.Context, q dbtx, cutoff time.Time) ([]*finance.Pricing, error) {
	return s.queryPricings(ctx, q, `
		SELECT `+pricingColumns+` FROM pricings
		WHERE status = ? AND value_date <= ?
		ORDER BY value_date ASC, id ASC`,
		finance.PricingValidated, cutoff.UTC().Format(time.RFC3339))
}

func (s *Store) Pricings(ctx context.Context, ids []string) ([]*finance.Pricing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pricingsByID(ctx, s.db, ids)
}

func (s *Store) pricingsByID(ctx context.Context, q dbtx, ids []string) ([]*finance.Pricing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		"SELECT "+pricingColumns+" FROM pricings WHERE id IN (%s) ORDER BY value_date ASC, id ASC",
		placeholders(len(ids)))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	pricings, err := s.queryPricings(ctx, q, query, args...)
	if err != nil {
		return nil, err
	}
	if len(pricings) != len(ids) {
		return nil, fmt.Errorf("wanted %d pricings, found %d", len(ids), len(pricings))
	}
	return pricings, nil
}

func (s *Store) queryPricings(ctx context.Context, q dbtx, query string, args ...any) ([]*finance.Pricing, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pricings: %w", err)
	}
	defer rows.Close()

	var pricings []*finance.Pricing
	for rows.Next() {
		var p finance.Pricing
		var valueDate, createdAt string
		var amount, revenue int64
		if err := rows.Scan(&p.ID, &p.EventID, &p.BookingID, &p.Status,
			&p.VenueID, &p.PricingPointID, &valueDate, &createdAt,
			&amount, &revenue, &p.StandardRule, &p.CustomRuleID); err != nil {
			return nil, fmt.Errorf("failed to scan pricing: %w", err)
		}
		p.ValueDate, _ = time.Parse(time.RFC3339, valueDate)
		p.CreationDate, _ = time.Parse(time.RFC3339, createdAt)
		p.Amount = finance.Cents(amount)
		p.Revenue = finance.Cents(revenue)
		pricings = append(pricings, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range pricings {
		if err := s.loadLines(ctx, q, p); err != nil {
			return nil, err
		}
	}
	return pricings, nil
}

func (s *Store) loadLines(ctx context.Context, q dbtx, p *finance.Pricing) error {
	rows, err := q.QueryContext(ctx,
		"SELECT category, amount FROM pricing_lines WHERE pricing_id = ? ORDER BY idx ASC", p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var line finance.PricingLine
		var amount int64
		if err := rows.Scan(&line.Category, &amount); err != nil {
			return err
		}
		line.Amount = finance.Cents(amount)
		p.Lines = append(p.Lines, line)
	}
	return rows.Err()
}

func (s *Store) UpdatePricingStatus(ctx context.Context, ids []string, from, to finance.PricingStatus, reason finance.PricingLogReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatePricingStatus(ctx, s.db, ids, from, to, reason)
}

func (s *Store) updatePricingStatus(ctx context.Context, q dbtx, ids []string, from, to finance.PricingStatus, reason finance.PricingLogReason) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(
		"UPDATE pricings SET status = ? WHERE id IN (%s) AND status = ?",
		placeholders(len(ids)))
	args := []any{to}
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, from)
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	// All-or-nothing: a partial match means some pricing was not in the
	// expected status, which is a state-machine violation.
	if n, _ := res.RowsAffected(); n != int64(len(ids)) {
		return fmt.Errorf("wanted %d pricings in status %s, matched %d", len(ids), from, n)
	}
	now := time.Now()
	for _, id := range ids {
		if err := s.appendLog(ctx, q, finance.PricingLog{
			PricingID:    id,
			Timestamp:    now,
			StatusBefore: from,
			StatusAfter:  to,
			Reason:       reason,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CurrentRevenue(ctx context.Context, pricingPointID string, periodStart, periodEnd time.Time, excludeBookingID string) (finance.Cents, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRevenue(ctx, s.db, pricingPointID, periodStart, periodEnd, excludeBookingID)
}

func (s *Store) currentRevenue(ctx context.Context, q dbtx, pricingPointID string, periodStart, periodEnd time.Time, excludeBookingID string) (finance.Cents, error) {
	var total int64
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(b.total_cents), 0)
		FROM pricings p
		JOIN bookings b ON b.id = p.booking_id
		WHERE p.pricing_point_id = ?
		  AND p.status != ?
		  AND p.booking_id != ''
		  AND p.booking_id != ?
		  AND b.collective = FALSE
		  AND p.value_date >= ? AND p.value_date <= ?`,
		pricingPointID, finance.PricingCancelled, excludeBookingID,
		periodStart.UTC().Format(time.RFC3339), periodEnd.UTC().Format(time.RFC3339),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return finance.Cents(total), nil
}

// =============================================================================
// CUSTOM RULES
// =============================================================================

func (s *Store) CustomRules(ctx context.Context) ([]*finance.CustomRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allCustomRules(ctx, s.db)
}

func (s *Store) GetCustomRule(ctx context.Context, id string) (*finance.CustomRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCustomRule(ctx, s.db, id)
}

func (s *Store) allCustomRules(ctx context.Context, q dbtx) ([]*finance.CustomRule, error) {
	return s.queryCustomRules(ctx, q, `
		SELECT id, offer_id, offerer_id, subcategories_json, amount, rate, start_date, end_date
		FROM custom_rules ORDER BY created_at ASC`)
}

func (s *Store) getCustomRule(ctx context.Context, q dbtx, id string) (*finance.CustomRule, error) {
	rules, err := s.queryCustomRules(ctx, q, `
		SELECT id, offer_id, offerer_id, subcategories_json, amount, rate, start_date, end_date
		FROM custom_rules WHERE id = ?`, id)
	if err != nil || len(rules) == 0 {
		return nil, err
	}
	return rules[0], nil
}

func (s *Store) queryCustomRules(ctx context.Context, q dbtx, query string, args ...any) ([]*finance.CustomRule, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*finance.CustomRule
	for rows.Next() {
		var r finance.CustomRule
		var subcategoriesJSON, startDate string
		var amount sql.NullInt64
		var rate, endDate sql.NullString
		if err := rows.Scan(&r.ID, &r.OfferID, &r.OffererID, &subcategoriesJSON,
			&amount, &rate, &startDate, &endDate); err != nil {
			return nil, fmt.Errorf("failed to scan custom rule: %w", err)
		}
		if err := json.Unmarshal([]byte(subcategoriesJSON), &r.Subcategories); err != nil {
			return nil, fmt.Errorf("custom rule %s has invalid subcategories: %w", r.ID, err)
		}
		if amount.Valid {
			c := finance.Cents(amount.Int64)
			r.Amount = &c
		}
		if rate.Valid {
			d, err := decimal.NewFromString(rate.String)
			if err != nil {
				return nil, fmt.Errorf("custom rule %s has invalid rate %q: %w", r.ID, rate.String, err)
			}
			r.CustomRate = &d
		}
		r.Start, _ = time.Parse(time.RFC3339, startDate)
		if endDate.Valid {
			t, _ := time.Parse(time.RFC3339, endDate.String)
			r.End = &t
		}
		rules = append(rules, &r)
	}
	return rules, rows.Err()
}

func (s *Store) AddCustomRule(ctx context.Context, rule *finance.CustomRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addCustomRule(ctx, s.db, rule)
}

func (s *Store) addCustomRule(ctx context.Context, q dbtx, rule *finance.CustomRule) error {
	subcategoriesJSON, _ := json.Marshal(rule.Subcategories)
	var amount *int64
	if rule.Amount != nil {
		a := int64(*rule.Amount)
		amount = &a
	}
	var rate *string
	if rule.CustomRate != nil {
		r := rule.CustomRate.String()
		rate = &r
	}
	var end *string
	if rule.End != nil {
		t := rule.End.UTC().Format(time.RFC3339)
		end = &t
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO custom_rules
		(id, offer_id, offerer_id, subcategories_json, amount, rate, start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.OfferID, rule.OffererID, string(subcategoriesJSON),
		amount, rate, rule.Start.UTC().Format(time.RFC3339), end,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// =============================================================================
// INCIDENTS
// =============================================================================

func (s *Store) SaveIncident(ctx context.Context, incident *finance.BookingFinanceIncident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveIncident(ctx, s.db, incident)
}

func (s *Store) saveIncident(ctx context.Context, q dbtx, incident *finance.BookingFinanceIncident) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO incidents (id, kind, status, booking_id, venue_id, new_total_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		incident.ID, incident.Kind, incident.Status, incident.BookingID,
		incident.VenueID, int64(incident.NewTotalAmount),
		incident.CreationDate.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetIncident(ctx context.Context, id string) (*finance.BookingFinanceIncident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getIncident(ctx, s.db, id)
}

func (s *Store) getIncident(ctx context.Context, q dbtx, id string) (*finance.BookingFinanceIncident, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, kind, status, booking_id, venue_id, new_total_amount, created_at
		FROM incidents WHERE id = ?`, id)

	var inc finance.BookingFinanceIncident
	var amount int64
	var createdAt string
	err := row.Scan(&inc.ID, &inc.Kind, &inc.Status, &inc.BookingID, &inc.VenueID, &amount, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan incident: %w", err)
	}
	inc.NewTotalAmount = finance.Cents(amount)
	inc.CreationDate, _ = time.Parse(time.RFC3339, createdAt)
	return &inc, nil
}

func (s *Store) UpdateIncidentStatus(ctx context.Context, id string, status finance.IncidentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateIncidentStatus(ctx, s.db, id, status)
}

func (s *Store) updateIncidentStatus(ctx context.Context, q dbtx, id string, status finance.IncidentStatus) error {
	res, err := q.ExecContext(ctx,
		"UPDATE incidents SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("incident %s not found", id)
	}
	return nil
}

// =============================================================================
// CASHFLOWS
// =============================================================================

func (s *Store) NextBatchLabel(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextBatchLabel(ctx, s.db)
}

func (s *Store) nextBatchLabel(ctx context.Context, q dbtx) (string, error) {
	n, err := s.bumpSequence(ctx, q, "cashflow.batch")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("VIR%d", n), nil
}

func (s *Store) SaveBatch(ctx context.Context, batch *finance.CashflowBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveBatch(ctx, s.db, batch)
}

func (s *Store) saveBatch(ctx context.Context, q dbtx, batch *finance.CashflowBatch) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO cashflow_batches (id, label, cutoff, created_at)
		VALUES (?, ?, ?, ?)`,
		batch.ID, batch.Label,
		batch.Cutoff.UTC().Format(time.RFC3339),
		batch.CreationDate.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) SaveCashflow(ctx context.Context, cashflow *finance.Cashflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCashflow(ctx, s.db, cashflow)
}

func (s *Store) saveCashflow(ctx context.Context, q dbtx, cashflow *finance.Cashflow) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO cashflows (id, batch_id, bank_account_id, status, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cashflow.ID, cashflow.BatchID, cashflow.BankAccountID, cashflow.Status,
		int64(cashflow.Amount), cashflow.CreationDate.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cashflow: %w", err)
	}
	for _, pricingID := range cashflow.PricingIDs {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO cashflow_pricings (cashflow_id, pricing_id) VALUES (?, ?)",
			cashflow.ID, pricingID,
		); err != nil {
			return fmt.Errorf("failed to link pricing: %w", err)
		}
	}
	return nil
}

func (s *Store) Cashflows(ctx context.Context, ids []string) ([]*finance.Cashflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cashflowsByID(ctx, s.db, ids)
}

func (s *Store) cashflowsByID(ctx context.Context, q dbtx, ids []string) ([]*finance.Cashflow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT id, batch_id, bank_account_id, status, amount, created_at
		FROM cashflows WHERE id IN (%s) ORDER BY id ASC`,
		placeholders(len(ids)))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.queryCashflows(ctx, q, query, args...)
}

func (s *Store) CashflowsOfBatch(ctx context.Context, batchID string, status finance.CashflowStatus) ([]*finance.Cashflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cashflowsOfBatch(ctx, s.db, batchID, status)
}

func (s *Store) cashflowsOfBatch(ctx context.Context, q dbtx, batchID string, status finance.CashflowStatus) ([]*finance.Cashflow, error) {
	query := `
		SELECT id, batch_id, bank_account_id, status, amount, created_at
		FROM cashflows WHERE batch_id = ?`
	args := []any{batchID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY id ASC"
	return s.queryCashflows(ctx, q, query, args...)
}

func (s *Store) queryCashflows(ctx context.Context, q dbtx, query string, args ...any) ([]*finance.Cashflow, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cashflows: %w", err)
	}
	defer rows.Close()

	var cashflows []*finance.Cashflow
	for rows.Next() {
		var cf finance.Cashflow
		var amount int64
		var createdAt string
		if err := rows.Scan(&cf.ID, &cf.BatchID, &cf.BankAccountID, &cf.Status, &amount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan cashflow: %w", err)
		}
		cf.Amount = finance.Cents(amount)
		cf.CreationDate, _ = time.Parse(time.RFC3339, createdAt)
		cashflows = append(cashflows, &cf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, cf := range cashflows {
		if err := s.loadCashflowPricings(ctx, q, cf); err != nil {
			return nil, err
		}
	}
	return cashflows, nil
}

func (s *Store) loadCashflowPricings(ctx context.Context, q dbtx, cf *finance.Cashflow) error {
	rows, err := q.QueryContext(ctx,
		"SELECT pricing_id FROM cashflow_pricings WHERE cashflow_id = ? ORDER BY pricing_id ASC", cf.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		cf.PricingIDs = append(cf.PricingIDs, id)
	}
	return rows.Err()
}

func (s *Store) UpdateCashflowStatus(ctx context.Context, ids []string, from, to finance.CashflowStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateCashflowStatus(ctx, s.db, ids, from, to)
}

func (s *Store) updateCashflowStatus(ctx context.Context, q dbtx, ids []string, from, to finance.CashflowStatus) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(
		"UPDATE cashflows SET status = ? WHERE id IN (%s) AND status = ?",
		placeholders(len(ids)))
	args := []any{to}
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, from)
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != int64(len(ids)) {
		return fmt.Errorf("wanted %d cashflows in status %s, matched %d: %w",
			len(ids), from, n, finance.ErrInvalidCashflowStatus)
	}
	return nil
}

// =============================================================================
// INVOICES
// =============================================================================

func (s *Store) SaveInvoice(ctx context.Context, invoice *finance.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveInvoice(ctx, s.db, invoice)
}

func (s *Store) saveInvoice(ctx context.Context, q dbtx, invoice *finance.Invoice) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO invoices (id, reference, token, bank_account_id, date, amount, is_debit_note)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID, invoice.Reference, invoice.Token, invoice.BankAccountID,
		invoice.Date.UTC().Format(time.RFC3339), int64(invoice.Amount), invoice.IsDebitNote,
	)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	for _, cashflowID := range invoice.CashflowIDs {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO invoice_cashflows (invoice_id, cashflow_id) VALUES (?, ?)",
			invoice.ID, cashflowID,
		); err != nil {
			return fmt.Errorf("failed to link cashflow: %w", err)
		}
	}
	for i, line := range invoice.Lines {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO invoice_lines
			(invoice_id, idx, label, group_label, group_position, reimbursed_amount, contribution_amount, rate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			invoice.ID, i, line.Label, line.Group.Label, line.Group.Position,
			int64(line.ReimbursedAmount), int64(line.ContributionAmount), line.Rate.String(),
		); err != nil {
			return fmt.Errorf("failed to insert invoice line: %w", err)
		}
	}
	return nil
}

func (s *Store) Invoices(ctx context.Context, bankAccountID string) ([]*finance.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.invoices(ctx, s.db, bankAccountID)
}

func (s *Store) invoices(ctx context.Context, q dbtx, bankAccountID string) ([]*finance.Invoice, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, reference, token, bank_account_id, date, amount, is_debit_note
		FROM invoices WHERE bank_account_id = ?
		ORDER BY reference ASC`, bankAccountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []*finance.Invoice
	for rows.Next() {
		var inv finance.Invoice
		var date string
		var amount int64
		if err := rows.Scan(&inv.ID, &inv.Reference, &inv.Token, &inv.BankAccountID,
			&date, &amount, &inv.IsDebitNote); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		inv.Date, _ = time.Parse(time.RFC3339, date)
		inv.Amount = finance.Cents(amount)
		invoices = append(invoices, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, inv := range invoices {
		if err := s.loadInvoiceCashflows(ctx, q, inv); err != nil {
			return nil, err
		}
		if err := s.loadInvoiceLines(ctx, q, inv); err != nil {
			return nil, err
		}
	}
	return invoices, nil
}

func (s *Store) loadInvoiceCashflows(ctx context.Context, q dbtx, inv *finance.Invoice) error {
	rows, err := q.QueryContext(ctx,
		"SELECT cashflow_id FROM invoice_cashflows WHERE invoice_id = ? ORDER BY cashflow_id ASC", inv.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		inv.CashflowIDs = append(inv.CashflowIDs, id)
	}
	return rows.Err()
}

func (s *Store) loadInvoiceLines(ctx context.Context, q dbtx, inv *finance.Invoice) error {
	rows, err := q.QueryContext(ctx, `
		SELECT label, group_label, group_position, reimbursed_amount, contribution_amount, rate
		FROM invoice_lines WHERE invoice_id = ? ORDER BY idx ASC`, inv.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var line finance.InvoiceLine
		var reimbursed, contribution int64
		var rate string
		if err := rows.Scan(&line.Label, &line.Group.Label, &line.Group.Position,
			&reimbursed, &contribution, &rate); err != nil {
			return err
		}
		line.ReimbursedAmount = finance.Cents(reimbursed)
		line.ContributionAmount = finance.Cents(contribution)
		parsed, err := decimal.NewFromString(rate)
		if err != nil {
			return fmt.Errorf("invoice %s has invalid line rate %q: %w", inv.ID, rate, err)
		}
		line.Rate = parsed
		inv.Lines = append(inv.Lines, line)
	}
	return rows.Err()
}

func (s *Store) NextReference(ctx context.Context, scheme string, year int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextReference(ctx, s.db, scheme, year)
}

func (s *Store) nextReference(ctx context.Context, q dbtx, scheme string, year int) (string, error) {
	n, err := s.bumpSequence(ctx, q, fmt.Sprintf("%s.%d", scheme, year))
	if err != nil {
		return "", err
	}
	prefix := "F"
	if scheme == finance.SchemeDebitNoteReference {
		prefix = "A"
	}
	return fmt.Sprintf("%s%02d%07d", prefix, year%100, n), nil
}

// bumpSequence increments and returns a named counter. Callers hold the
// write lock (or run inside WithTx, which holds it for the whole
// transaction), so read-increment-persist is serialized.
func (s *Store) bumpSequence(ctx context.Context, q dbtx, name string) (int64, error) {
	_, err := q.ExecContext(ctx, `
		INSERT INTO sequences (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1`, name)
	if err != nil {
		return 0, fmt.Errorf("failed to bump sequence %s: %w", name, err)
	}
	var n int64
	if err := q.QueryRowContext(ctx,
		"SELECT value FROM sequences WHERE name = ?", name,
	).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes a function within a database transaction. The write lock
// is held for the duration, so transactional work never interleaves with
// direct writes.
func (s *Store) WithTx(ctx context.Context, fn func(store finance.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes every store call through the open transaction. The parent's
// lock is already held, so it calls the unlocked internals directly.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) PricingPointFor(ctx context.Context, venueID string) (string, error) {
	return ts.parent.pricingPointFor(ctx, ts.tx, venueID)
}

func (ts *txStore) BankAccountFor(ctx context.Context, venueID string, at time.Time) (string, bool, error) {
	return ts.parent.bankAccountFor(ctx, ts.tx, venueID, at)
}

func (ts *txStore) GetBooking(ctx context.Context, id string) (*finance.Booking, error) {
	return ts.parent.getBooking(ctx, ts.tx, id)
}

func (ts *txStore) MarkBookingsReimbursed(ctx context.Context, ids []string) error {
	return ts.parent.markBookingsReimbursed(ctx, ts.tx, ids)
}

func (ts *txStore) AddEvent(ctx context.Context, event *finance.FinanceEvent) error {
	return ts.parent.addEvent(ctx, ts.tx, event)
}

func (ts *txStore) GetEvent(ctx context.Context, id string) (*finance.FinanceEvent, error) {
	return ts.parent.getEvent(ctx, ts.tx, id)
}

func (ts *txStore) UpdateEventStatus(ctx context.Context, id string, status finance.FinanceEventStatus) error {
	return ts.parent.updateEventStatus(ctx, ts.tx, id, status)
}

func (ts *txStore) SavePricing(ctx context.Context, pricing *finance.Pricing, log finance.PricingLog) error {
	return ts.parent.savePricing(ctx, ts.tx, pricing, log)
}

func (ts *txStore) PricingForEvent(ctx context.Context, eventID string) (*finance.Pricing, error) {
	return ts.parent.pricingForEvent(ctx, ts.tx, eventID)
}

func (ts *txStore) LatestPricingForBooking(ctx context.Context, bookingID string) (*finance.Pricing, error) {
	return ts.parent.latestPricingForBooking(ctx, ts.tx, bookingID)
}

func (ts *txStore) ValidatedPricings(ctx context.Context, cutoff time.Time) ([]*finance.Pricing, error) {
	return ts.parent.validatedPricings(ctx, ts.tx, cutoff)
}

func (ts *txStore) Pricings(ctx context.Context, ids []string) ([]*finance.Pricing, error) {
	return ts.parent.pricingsByID(ctx, ts.tx, ids)
}

func (ts *txStore) UpdatePricingStatus(ctx context.Context, ids []string, from, to finance.PricingStatus, reason finance.PricingLogReason) error {
	return ts.parent.updatePricingStatus(ctx, ts.tx, ids, from, to, reason)
}

func (ts *txStore) CurrentRevenue(ctx context.Context, pricingPointID string, periodStart, periodEnd time.Time, excludeBookingID string) (finance.Cents, error) {
	return ts.parent.currentRevenue(ctx, ts.tx, pricingPointID, periodStart, periodEnd, excludeBookingID)
}

func (ts *txStore) CustomRules(ctx context.Context) ([]*finance.CustomRule, error) {
	return ts.parent.allCustomRules(ctx, ts.tx)
}

func (ts *txStore) GetCustomRule(ctx context.Context, id string) (*finance.CustomRule, error) {
	return ts.parent.getCustomRule(ctx, ts.tx, id)
}

func (ts *txStore) AddCustomRule(ctx context.Context, rule *finance.CustomRule) error {
	return ts.parent.addCustomRule(ctx, ts.tx, rule)
}

func (ts *txStore) SaveIncident(ctx context.Context, incident *finance.BookingFinanceIncident) error {
	return ts.parent.saveIncident(ctx, ts.tx, incident)
}

func (ts *txStore) GetIncident(ctx context.Context, id string) (*finance.BookingFinanceIncident, error) {
	return ts.parent.getIncident(ctx, ts.tx, id)
}

func (ts *txStore) UpdateIncidentStatus(ctx context.Context, id string, status finance.IncidentStatus) error {
	return ts.parent.updateIncidentStatus(ctx, ts.tx, id, status)
}

func (ts *txStore) NextBatchLabel(ctx context.Context) (string, error) {
	return ts.parent.nextBatchLabel(ctx, ts.tx)
}

func (ts *txStore) SaveBatch(ctx context.Context, batch *finance.CashflowBatch) error {
	return ts.parent.saveBatch(ctx, ts.tx, batch)
}

func (ts *txStore) SaveCashflow(ctx context.Context, cashflow *finance.Cashflow) error {
	return ts.parent.saveCashflow(ctx, ts.tx, cashflow)
}

func (ts *txStore) Cashflows(ctx context.Context, ids []string) ([]*finance.Cashflow, error) {
	return ts.parent.cashflowsByID(ctx, ts.tx, ids)
}

func (ts *txStore) CashflowsOfBatch(ctx context.Context, batchID string, status finance.CashflowStatus) ([]*finance.Cashflow, error) {
	return ts.parent.cashflowsOfBatch(ctx, ts.tx, batchID, status)
}

func (ts *txStore) UpdateCashflowStatus(ctx context.Context, ids []string, from, to finance.CashflowStatus) error {
	return ts.parent.updateCashflowStatus(ctx, ts.tx, ids, from, to)
}

func (ts *txStore) SaveInvoice(ctx context.Context, invoice *finance.Invoice) error {
	return ts.parent.saveInvoice(ctx, ts.tx, invoice)
}

func (ts *txStore) Invoices(ctx context.Context, bankAccountID string) ([]*finance.Invoice, error) {
	return ts.parent.invoices(ctx, ts.tx, bankAccountID)
}

func (ts *txStore) NextReference(ctx context.Context, scheme string, year int) (string, error) {
	return ts.parent.nextReference(ctx, ts.tx, scheme, year)
}

// WithTx on a transactional store runs fn in the enclosing transaction.
func (ts *txStore) WithTx(_ context.Context, fn func(finance.Store) error) error {
	return fn(ts)
}

// =============================================================================
// HELPERS
// =============================================================================

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ finance.Store = (*Store)(nil)
var _ finance.Store = (*txStore)(nil)
