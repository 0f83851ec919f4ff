// Package memory provides the in-memory finance.Store (for testing/dev).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/culturepass/finance-engine/finance"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	pricingPoints map[string]string // venueID -> pricing point
	bankLinks     map[string][]finance.BankAccountLink
	bookings      map[string]*finance.Booking

	events      map[string]*finance.FinanceEvent
	pricings    map[string]*finance.Pricing
	logs        []finance.PricingLog
	customRules []*finance.CustomRule
	incidents   map[string]*finance.BookingFinanceIncident

	batches    map[string]*finance.CashflowBatch
	batchSeq   int
	cashflows  map[string]*finance.Cashflow
	invoices   map[string]*finance.Invoice
	references map[refKey]int
}

type refKey struct {
	Scheme string
	Year   int
}

func New() *Memory {
	return &Memory{
		pricingPoints: make(map[string]string),
		bankLinks:     make(map[string][]finance.BankAccountLink),
		bookings:      make(map[string]*finance.Booking),
		events:        make(map[string]*finance.FinanceEvent),
		pricings:      make(map[string]*finance.Pricing),
		incidents:     make(map[string]*finance.BookingFinanceIncident),
		batches:       make(map[string]*finance.CashflowBatch),
		cashflows:     make(map[string]*finance.Cashflow),
		invoices:      make(map[string]*finance.Invoice),
		references:    make(map[refKey]int),
	}
}

// =============================================================================
// SEEDING - test/dev fixtures, not part of finance.Store
// =============================================================================

func (m *Memory) SetPricingPoint(venueID, pricingPointID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pricingPoints[venueID] = pricingPointID
}

func (m *Memory) AddBankAccountLink(link finance.BankAccountLink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bankLinks[link.VenueID] = append(m.bankLinks[link.VenueID], link)
}

func (m *Memory) AddBooking(b *finance.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.bookings[b.ID] = &cp
}

// PricingLogs returns the full audit log, oldest first.
func (m *Memory) PricingLogs() []finance.PricingLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]finance.PricingLog, len(m.logs))
	copy(out, m.logs)
	return out
}

// =============================================================================
// VENUE RESOLUTION
// =============================================================================

func (m *Memory) PricingPointFor(_ context.Context, venueID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pricingPointForLocked(venueID)
}

func (m *Memory) pricingPointForLocked(venueID string) (string, error) {
	pp, ok := m.pricingPoints[venueID]
	if !ok || pp == "" {
		return "", &finance.PricingPointError{VenueID: venueID}
	}
	return pp, nil
}

func (m *Memory) BankAccountFor(_ context.Context, venueID string, at time.Time) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bankAccountForLocked(venueID, at)
}

func (m *Memory) bankAccountForLocked(venueID string, at time.Time) (string, bool, error) {
	for _, link := range m.bankLinks[venueID] {
		if link.ActiveAt(at) {
			return link.BankAccountID, true, nil
		}
	}
	return "", false, nil
}

// =============================================================================
// BOOKINGS
// =============================================================================

func (m *Memory) GetBooking(_ context.Context, id string) (*finance.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBookingLocked(id)
}

func (m *Memory) getBookingLocked(id string) (*finance.Booking, error) {
	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *Memory) MarkBookingsReimbursed(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markBookingsReimbursedLocked(ids)
}

func (m *Memory) markBookingsReimbursedLocked(ids []string) error {
	for _, id := range ids {
		b, ok := m.bookings[id]
		if !ok {
			return fmt.Errorf("booking %s: %w", id, finance.ErrBookingNotFound)
		}
		if b.Status == finance.BookingCancelled {
			continue
		}
		b.Status = finance.BookingReimbursed
	}
	return nil
}

// =============================================================================
// EVENTS
// =============================================================================

func (m *Memory) AddEvent(_ context.Context, event *finance.FinanceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addEventLocked(event)
}

func (m *Memory) addEventLocked(event *finance.FinanceEvent) error {
	cp := *event
	m.events[event.ID] = &cp
	return nil
}

func (m *Memory) GetEvent(_ context.Context, id string) (*finance.FinanceEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEventLocked(id)
}

func (m *Memory) getEventLocked(id string) (*finance.FinanceEvent, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *Memory) UpdateEventStatus(_ context.Context, id string, status finance.FinanceEventStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateEventStatusLocked(id, status)
}

func (m *Memory) updateEventStatusLocked(id string, status finance.FinanceEventStatus) error {
	e, ok := m.events[id]
	if !ok {
		return fmt.Errorf("event %s: %w", id, finance.ErrEventNotFound)
	}
	e.Status = status
	return nil
}

// =============================================================================
// PRICINGS
// =============================================================================

func (m *Memory) SavePricing(_ context.Context, pricing *finance.Pricing, log finance.PricingLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.savePricingLocked(pricing, log)
}

func (m *Memory) savePricingLocked(pricing *finance.Pricing, log finance.PricingLog) error {
	m.pricings[pricing.ID] = clonePricing(pricing)
	m.logs = append(m.logs, log)
	return nil
}

func (m *Memory) PricingForEvent(_ context.Context, eventID string) (*finance.Pricing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pricingForEventLocked(eventID)
}

func (m *Memory) pricingForEventLocked(eventID string) (*finance.Pricing, error) {
	for _, p := range m.pricings {
		if p.EventID == eventID && p.Status != finance.PricingCancelled {
			return clonePricing(p), nil
		}
	}
	return nil, nil
}

func (m *Memory) LatestPricingForBooking(_ context.Context, bookingID string) (*finance.Pricing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestPricingForBookingLocked(bookingID)
}

func (m *Memory) latestPricingForBookingLocked(bookingID string) (*finance.Pricing, error) {
	var latest *finance.Pricing
	for _, p := range m.pricings {
		if p.BookingID != bookingID || p.Status == finance.PricingCancelled {
			continue
		}
		if latest == nil || p.CreationDate.After(latest.CreationDate) {
			latest = p
		}
	}
	if latest == nil {
		return nil, nil
	}
	return clonePricing(latest), nil
}

func (m *Memory) ValidatedPricings(_ context.Context, cutoff time.Time) ([]*finance.Pricing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.validatedPricingsLocked(cutoff)
}

func (m *Memory) validatedPricingsLocked(cutoff time.Time) ([]*finance.Pricing, error) {
	var out []*finance.Pricing
	for _, p := range m.pricings {
		if p.Status == finance.PricingValidated && !p.ValueDate.After(cutoff) {
			out = append(out, clonePricing(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ValueDate.Equal(out[j].ValueDate) {
			return out[i].ValueDate.Before(out[j].ValueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) Pricings(_ context.Context, ids []string) ([]*finance.Pricing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pricingsLocked(ids)
}

func (m *Memory) pricingsLocked(ids []string) ([]*finance.Pricing, error) {
	out := make([]*finance.Pricing, 0, len(ids))
	for _, id := range ids {
		p, ok := m.pricings[id]
		if !ok {
			return nil, fmt.Errorf("pricing %s not found", id)
		}
		out = append(out, clonePricing(p))
	}
	return out, nil
}

func (m *Memory) UpdatePricingStatus(_ context.Context, ids []string, from, to finance.PricingStatus, reason finance.PricingLogReason) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatePricingStatusLocked(ids, from, to, reason)
}

func (m *Memory) updatePricingStatusLocked(ids []string, from, to finance.PricingStatus, reason finance.PricingLogReason) error {
	// Verify first: the whole call fails before any row moves.
	for _, id := range ids {
		p, ok := m.pricings[id]
		if !ok {
			return fmt.Errorf("pricing %s not found", id)
		}
		if p.Status != from {
			return fmt.Errorf("pricing %s has status %s, want %s", id, p.Status, from)
		}
	}
	now := time.Now()
	for _, id := range ids {
		m.pricings[id].Status = to
		m.logs = append(m.logs, finance.PricingLog{
			PricingID:    id,
			Timestamp:    now,
			StatusBefore: from,
			StatusAfter:  to,
			Reason:       reason,
		})
	}
	return nil
}

func (m *Memory) CurrentRevenue(_ context.Context, pricingPointID string, periodStart, periodEnd time.Time, excludeBookingID string) (finance.Cents, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentRevenueLocked(pricingPointID, periodStart, periodEnd, excludeBookingID)
}

func (m *Memory) currentRevenueLocked(pricingPointID string, periodStart, periodEnd time.Time, excludeBookingID string) (finance.Cents, error) {
	var total finance.Cents
	for _, p := range m.pricings {
		if p.PricingPointID != pricingPointID || p.Status == finance.PricingCancelled {
			continue
		}
		if p.BookingID == "" || p.BookingID == excludeBookingID {
			continue
		}
		if p.ValueDate.Before(periodStart) || p.ValueDate.After(periodEnd) {
			continue
		}
		b, ok := m.bookings[p.BookingID]
		if !ok {
			return 0, fmt.Errorf("booking %s: %w", p.BookingID, finance.ErrBookingNotFound)
		}
		if b.Collective {
			continue
		}
		total += b.TotalCents()
	}
	return total, nil
}

// =============================================================================
// CUSTOM RULES
// =============================================================================

func (m *Memory) CustomRules(_ context.Context) ([]*finance.CustomRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.customRulesLocked()
}

func (m *Memory) customRulesLocked() ([]*finance.CustomRule, error) {
	out := make([]*finance.CustomRule, len(m.customRules))
	copy(out, m.customRules)
	return out, nil
}

func (m *Memory) GetCustomRule(_ context.Context, id string) (*finance.CustomRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCustomRuleLocked(id)
}

func (m *Memory) getCustomRuleLocked(id string) (*finance.CustomRule, error) {
	for _, r := range m.customRules {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (m *Memory) AddCustomRule(_ context.Context, rule *finance.CustomRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addCustomRuleLocked(rule)
}

func (m *Memory) addCustomRuleLocked(rule *finance.CustomRule) error {
	m.customRules = append(m.customRules, rule)
	return nil
}

// =============================================================================
// INCIDENTS
// =============================================================================

func (m *Memory) SaveIncident(_ context.Context, incident *finance.BookingFinanceIncident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveIncidentLocked(incident)
}

func (m *Memory) saveIncidentLocked(incident *finance.BookingFinanceIncident) error {
	cp := *incident
	m.incidents[incident.ID] = &cp
	return nil
}

func (m *Memory) GetIncident(_ context.Context, id string) (*finance.BookingFinanceIncident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getIncidentLocked(id)
}

func (m *Memory) getIncidentLocked(id string) (*finance.BookingFinanceIncident, error) {
	inc, ok := m.incidents[id]
	if !ok {
		return nil, nil
	}
	cp := *inc
	return &cp, nil
}

func (m *Memory) UpdateIncidentStatus(_ context.Context, id string, status finance.IncidentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateIncidentStatusLocked(id, status)
}

func (m *Memory) updateIncidentStatusLocked(id string, status finance.IncidentStatus) error {
	inc, ok := m.incidents[id]
	if !ok {
		return fmt.Errorf("incident %s not found", id)
	}
	inc.Status = status
	return nil
}

// =============================================================================
// CASHFLOWS
// =============================================================================

func (m *Memory) NextBatchLabel(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextBatchLabelLocked()
}

func (m *Memory) nextBatchLabelLocked() (string, error) {
	m.batchSeq++
	return fmt.Sprintf("VIR%d", m.batchSeq), nil
}

func (m *Memory) SaveBatch(_ context.Context, batch *finance.CashflowBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveBatchLocked(batch)
}

func (m *Memory) saveBatchLocked(batch *finance.CashflowBatch) error {
	cp := *batch
	cp.CashflowIDs = append([]string(nil), batch.CashflowIDs...)
	m.batches[batch.ID] = &cp
	return nil
}

func (m *Memory) SaveCashflow(_ context.Context, cashflow *finance.Cashflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCashflowLocked(cashflow)
}

func (m *Memory) saveCashflowLocked(cashflow *finance.Cashflow) error {
	m.cashflows[cashflow.ID] = cloneCashflow(cashflow)
	return nil
}

func (m *Memory) Cashflows(_ context.Context, ids []string) ([]*finance.Cashflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cashflowsLocked(ids)
}

func (m *Memory) cashflowsLocked(ids []string) ([]*finance.Cashflow, error) {
	var out []*finance.Cashflow
	for _, id := range ids {
		cf, ok := m.cashflows[id]
		if !ok {
			return nil, fmt.Errorf("cashflow %s: %w", id, finance.ErrCashflowNotFound)
		}
		out = append(out, cloneCashflow(cf))
	}
	return out, nil
}

func (m *Memory) CashflowsOfBatch(_ context.Context, batchID string, status finance.CashflowStatus) ([]*finance.Cashflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cashflowsOfBatchLocked(batchID, status)
}

func (m *Memory) cashflowsOfBatchLocked(batchID string, status finance.CashflowStatus) ([]*finance.Cashflow, error) {
	var out []*finance.Cashflow
	for _, cf := range m.cashflows {
		if cf.BatchID != batchID {
			continue
		}
		if status != "" && cf.Status != status {
			continue
		}
		out = append(out, cloneCashflow(cf))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateCashflowStatus(_ context.Context, ids []string, from, to finance.CashflowStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateCashflowStatusLocked(ids, from, to)
}

func (m *Memory) updateCashflowStatusLocked(ids []string, from, to finance.CashflowStatus) error {
	for _, id := range ids {
		cf, ok := m.cashflows[id]
		if !ok {
			return fmt.Errorf("cashflow %s: %w", id, finance.ErrCashflowNotFound)
		}
		if cf.Status != from {
			return fmt.Errorf("cashflow %s has status %s, want %s: %w", id, cf.Status, from, finance.ErrInvalidCashflowStatus)
		}
	}
	for _, id := range ids {
		m.cashflows[id].Status = to
	}
	return nil
}

// =============================================================================
// INVOICES
// =============================================================================

func (m *Memory) SaveInvoice(_ context.Context, invoice *finance.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveInvoiceLocked(invoice)
}

func (m *Memory) saveInvoiceLocked(invoice *finance.Invoice) error {
	m.invoices[invoice.ID] = cloneInvoice(invoice)
	return nil
}

func (m *Memory) Invoices(_ context.Context, bankAccountID string) ([]*finance.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.invoicesLocked(bankAccountID)
}

func (m *Memory) invoicesLocked(bankAccountID string) ([]*finance.Invoice, error) {
	var out []*finance.Invoice
	for _, inv := range m.invoices {
		if inv.BankAccountID == bankAccountID {
			out = append(out, cloneInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reference < out[j].Reference })
	return out, nil
}

func (m *Memory) NextReference(_ context.Context, scheme string, year int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextReferenceLocked(scheme, year)
}

func (m *Memory) nextReferenceLocked(scheme string, year int) (string, error) {
	k := refKey{Scheme: scheme, Year: year}
	m.references[k]++
	prefix := "F"
	if scheme == finance.SchemeDebitNoteReference {
		prefix = "A"
	}
	return fmt.Sprintf("%s%02d%07d", prefix, year%100, m.references[k]), nil
}

// =============================================================================
// TRANSACTIONS - snapshot + rollback on error
// =============================================================================

// WithTx executes fn against a view of the store that shares the caller's
// lock. On error the pre-transaction snapshot is restored.
func (m *Memory) WithTx(_ context.Context, fn func(finance.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshotLocked()
	if err := fn(&txView{m: m}); err != nil {
		m.restoreLocked(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	bookings    map[string]*finance.Booking
	events      map[string]*finance.FinanceEvent
	pricings    map[string]*finance.Pricing
	logs        []finance.PricingLog
	customRules []*finance.CustomRule
	incidents   map[string]*finance.BookingFinanceIncident
	batches     map[string]*finance.CashflowBatch
	batchSeq    int
	cashflows   map[string]*finance.Cashflow
	invoices    map[string]*finance.Invoice
	refs        map[refKey]int
}

func (m *Memory) snapshotLocked() memorySnapshot {
	s := memorySnapshot{
		bookings:    make(map[string]*finance.Booking, len(m.bookings)),
		events:      make(map[string]*finance.FinanceEvent, len(m.events)),
		pricings:    make(map[string]*finance.Pricing, len(m.pricings)),
		logs:        append([]finance.PricingLog(nil), m.logs...),
		customRules: append([]*finance.CustomRule(nil), m.customRules...),
		incidents:   make(map[string]*finance.BookingFinanceIncident, len(m.incidents)),
		batches:     make(map[string]*finance.CashflowBatch, len(m.batches)),
		batchSeq:    m.batchSeq,
		cashflows:   make(map[string]*finance.Cashflow, len(m.cashflows)),
		invoices:    make(map[string]*finance.Invoice, len(m.invoices)),
		refs:        make(map[refKey]int, len(m.references)),
	}
	for k, v := range m.bookings {
		cp := *v
		s.bookings[k] = &cp
	}
	for k, v := range m.events {
		cp := *v
		s.events[k] = &cp
	}
	for k, v := range m.pricings {
		s.pricings[k] = clonePricing(v)
	}
	for k, v := range m.incidents {
		cp := *v
		s.incidents[k] = &cp
	}
	for k, v := range m.batches {
		cp := *v
		cp.CashflowIDs = append([]string(nil), v.CashflowIDs...)
		s.batches[k] = &cp
	}
	for k, v := range m.cashflows {
		s.cashflows[k] = cloneCashflow(v)
	}
	for k, v := range m.invoices {
		s.invoices[k] = cloneInvoice(v)
	}
	for k, v := range m.references {
		s.refs[k] = v
	}
	return s
}

func (m *Memory) restoreLocked(s memorySnapshot) {
	m.bookings = s.bookings
	m.events = s.events
	m.pricings = s.pricings
	m.logs = s.logs
	m.customRules = s.customRules
	m.incidents = s.incidents
	m.batches = s.batches
	m.batchSeq = s.batchSeq
	m.cashflows = s.cashflows
	m.invoices = s.invoices
	m.references = s.refs
}

// txView is the transactional view handed to WithTx callbacks. The parent's
// lock is already held, so it calls the unlocked internals directly.
type txView struct {
	m *Memory
}

func (tv *txView) PricingPointFor(_ context.Context, venueID string) (string, error) {
	return tv.m.pricingPointForLocked(venueID)
}

func (tv *txView) BankAccountFor(_ context.Context, venueID string, at time.Time) (string, bool, error) {
	return tv.m.bankAccountForLocked(venueID, at)
}

func (tv *txView) GetBooking(_ context.Context, id string) (*finance.Booking, error) {
	return tv.m.getBookingLocked(id)
}

func (tv *txView) MarkBookingsReimbursed(_ context.Context, ids []string) error {
	return tv.m.markBookingsReimbursedLocked(ids)
}

func (tv *txView) AddEvent(_ context.Context, event *finance.FinanceEvent) error {
	return tv.m.addEventLocked(event)
}

func (tv *txView) GetEvent(_ context.Context, id string) (*finance.FinanceEvent, error) {
	return tv.m.getEventLocked(id)
}

func (tv *txView) UpdateEventStatus(_ context.Context, id string, status finance.FinanceEventStatus) error {
	return tv.m.updateEventStatusLocked(id, status)
}

func (tv *txView) SavePricing(_ context.Context, pricing *finance.Pricing, log finance.PricingLog) error {
	return tv.m.savePricingLocked(pricing, log)
}

func (tv *txView) PricingForEvent(_ context.Context, eventID string) (*finance.Pricing, error) {
	return tv.m.pricingForEventLocked(eventID)
}

func (tv *txView) LatestPricingForBooking(_ context.Context, bookingID string) (*finance.Pricing, error) {
	return tv.m.latestPricingForBookingLocked(bookingID)
}

func (tv *txView) ValidatedPricings(_ context.Context, cutoff time.Time) ([]*finance.Pricing, error) {
	return tv.m.validatedPricingsLocked(cutoff)
}

func (tv *txView) Pricings(_ context.Context, ids []string) ([]*finance.Pricing, error) {
	return tv.m.pricingsLocked(ids)
}

func (tv *txView) UpdatePricingStatus(_ context.Context, ids []string, from, to finance.PricingStatus, reason finance.PricingLogReason) error {
	return tv.m.updatePricingStatusLocked(ids, from, to, reason)
}

func (tv *txView) CurrentRevenue(_ context.Context, pricingPointID string, periodStart, periodEnd time.Time, excludeBookingID string) (finance.Cents, error) {
	return tv.m.currentRevenueLocked(pricingPointID, periodStart, periodEnd, excludeBookingID)
}

func (tv *txView) CustomRules(_ context.Context) ([]*finance.CustomRule, error) {
	return tv.m.customRulesLocked()
}

func (tv *txView) GetCustomRule(_ context.Context, id string) (*finance.CustomRule, error) {
	return tv.m.getCustomRuleLocked(id)
}

func (tv *txView) AddCustomRule(_ context.Context, rule *finance.CustomRule) error {
	return tv.m.addCustomRuleLocked(rule)
}

func (tv *txView) SaveIncident(_ context.Context, incident *finance.BookingFinanceIncident) error {
	return tv.m.saveIncidentLocked(incident)
}

func (tv *txView) GetIncident(_ context.Context, id string) (*finance.BookingFinanceIncident, error) {
	return tv.m.getIncidentLocked(id)
}

func (tv *txView) UpdateIncidentStatus(_ context.Context, id string, status finance.IncidentStatus) error {
	return tv.m.updateIncidentStatusLocked(id, status)
}

func (tv *txView) NextBatchLabel(_ context.Context) (string, error) {
	return tv.m.nextBatchLabelLocked()
}

func (tv *txView) SaveBatch(_ context.Context, batch *finance.CashflowBatch) error {
	return tv.m.saveBatchLocked(batch)
}

func (tv *txView) SaveCashflow(_ context.Context, cashflow *finance.Cashflow) error {
	return tv.m.saveCashflowLocked(cashflow)
}

func (tv *txView) Cashflows(_ context.Context, ids []string) ([]*finance.Cashflow, error) {
	return tv.m.cashflowsLocked(ids)
}

func (tv *txView) CashflowsOfBatch(_ context.Context, batchID string, status finance.CashflowStatus) ([]*finance.Cashflow, error) {
	return tv.m.cashflowsOfBatchLocked(batchID, status)
}

func (tv *txView) UpdateCashflowStatus(_ context.Context, ids []string, from, to finance.CashflowStatus) error {
	return tv.m.updateCashflowStatusLocked(ids, from, to)
}

func (tv *txView) SaveInvoice(_ context.Context, invoice *finance.Invoice) error {
	return tv.m.saveInvoiceLocked(invoice)
}

func (tv *txView) Invoices(_ context.Context, bankAccountID string) ([]*finance.Invoice, error) {
	return tv.m.invoicesLocked(bankAccountID)
}

func (tv *txView) NextReference(_ context.Context, scheme string, year int) (string, error) {
	return tv.m.nextReferenceLocked(scheme, year)
}

// WithTx on a view runs the function in the enclosing transaction.
func (tv *txView) WithTx(_ context.Context, fn func(finance.Store) error) error {
	return fn(tv)
}

// =============================================================================
// CLONING
// =============================================================================

func clonePricing(p *finance.Pricing) *finance.Pricing {
	cp := *p
	cp.Lines = append([]finance.PricingLine(nil), p.Lines...)
	return &cp
}

func cloneCashflow(cf *finance.Cashflow) *finance.Cashflow {
	cp := *cf
	cp.PricingIDs = append([]string(nil), cf.PricingIDs...)
	return &cp
}

func cloneInvoice(inv *finance.Invoice) *finance.Invoice {
	cp := *inv
	cp.CashflowIDs = append([]string(nil), inv.CashflowIDs...)
	cp.Lines = append([]finance.InvoiceLine(nil), inv.Lines...)
	return &cp
}

var _ finance.Store = (*Memory)(nil)
var _ finance.Store = (*txView)(nil)
