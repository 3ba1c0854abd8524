package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// MockOrderStore keeps requests in memory and enforces the same transitions
// as the postgres store.
type MockOrderStore struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*domain.PaymentRequest

	UpsertCalls   int
	DispatchCalls int
	SnapshotCalls int

	UpsertIfAbsentFn        func(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentRequest, bool, error)
	RecordDispatchFn        func(ctx context.Context, id uuid.UUID, order *domain.PaymentOrder) error
	RecordAcknowledgementFn func(ctx context.Context, id uuid.UUID, receipt domain.AcknowledgementReceipt) (domain.Status, bool, error)
	ListOrdersInWindowFn    func(ctx context.Context, period domain.ReconciliationPeriod) ([]*domain.PaymentRequest, error)
	LoadLedgerSnapshotFn    func(ctx context.Context, stuckCutoff time.Time) (*domain.LedgerSnapshot, error)
}

func NewMockOrderStore() *MockOrderStore {
	return &MockOrderStore{requests: make(map[uuid.UUID]*domain.PaymentRequest)}
}

func (m *MockOrderStore) Put(reqs ...*domain.PaymentRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range reqs {
		m.requests[r.ID] = r
	}
}

func (m *MockOrderStore) Get(id uuid.UUID) *domain.PaymentRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[id]
}

func (m *MockOrderStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

func (m *MockOrderStore) UpsertIfAbsent(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentRequest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if m.UpsertIfAbsentFn != nil {
		return m.UpsertIfAbsentFn(ctx, req)
	}
	for _, r := range m.requests {
		if r.DecisionID == req.DecisionID && r.Attempt == req.Attempt {
			return r, false, nil
		}
	}
	m.requests[req.ID] = req
	return req, true, nil
}

func (m *MockOrderStore) RecordDispatch(ctx context.Context, id uuid.UUID, order *domain.PaymentOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DispatchCalls++
	if m.RecordDispatchFn != nil {
		return m.RecordDispatchFn(ctx, id, order)
	}
	r, ok := m.requests[id]
	if !ok {
		return domain.NewOrderNotFoundError(id.String())
	}
	if r.Status != domain.StatusNew {
		return domain.NewStateError("record dispatch", id.String(), r.Status, domain.StatusNew)
	}
	key := order.CorrelationKey
	sent := order.ReconciliationKey
	r.Status = domain.StatusSent
	r.CorrelationKey = &key
	r.ReconciliationKey = &sent
	r.SentAt = &sent
	return nil
}

func (m *MockOrderStore) RecordAcknowledgement(ctx context.Context, id uuid.UUID, receipt domain.AcknowledgementReceipt) (domain.Status, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordAcknowledgementFn != nil {
		return m.RecordAcknowledgementFn(ctx, id, receipt)
	}
	r, ok := m.requests[id]
	if !ok {
		return "", false, domain.NewOrderNotFoundError(id.String())
	}
	target, _ := domain.StatusForSeverity(receipt.Severity)
	switch {
	case r.Status == target:
		return target, false, nil
	case r.Status == domain.StatusNew:
		return "", false, domain.ErrAcknowledgedBeforeSent
	case r.Status != domain.StatusSent:
		return "", false, domain.NewStateError("record acknowledgement", id.String(), r.Status, domain.StatusSent)
	}
	now := time.Now().UTC()
	r.Status = target
	r.Receipt = &receipt
	r.AcknowledgedAt = &now
	return target, true, nil
}

func (m *MockOrderStore) ListOrdersInWindow(ctx context.Context, period domain.ReconciliationPeriod) ([]*domain.PaymentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListOrdersInWindowFn != nil {
		return m.ListOrdersInWindowFn(ctx, period)
	}
	var out []*domain.PaymentRequest
	for _, r := range m.requests {
		if r.ReconciliationKey != nil && period.Contains(*r.ReconciliationKey) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockOrderStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.requests[id]; ok {
		return r, nil
	}
	return nil, domain.NewOrderNotFoundError(id.String())
}

func (m *MockOrderStore) FindLatestByDecision(ctx context.Context, decisionID int64) (*domain.PaymentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r := m.latestLocked(func(r *domain.PaymentRequest) bool { return r.DecisionID == decisionID }); r != nil {
		return r, nil
	}
	return nil, domain.NewOrderNotFoundError("for decision")
}

func (m *MockOrderStore) FindByCorrelationKey(ctx context.Context, key string) (*domain.PaymentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.requests {
		if domain.CorrelationKey(r.ID) == key {
			return r, nil
		}
	}
	return nil, domain.NewUnknownCorrelationKeyError(key)
}

func (m *MockOrderStore) HasAcceptedOrderForCase(ctx context.Context, caseID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.requests {
		if r.CaseID == caseID && r.Status.IsAccepted() {
			return true, nil
		}
	}
	return false, nil
}

// LoadLedgerSnapshot reads everything under one lock, like the single
// transaction of the postgres store.
func (m *MockOrderStore) LoadLedgerSnapshot(ctx context.Context, stuckCutoff time.Time) (*domain.LedgerSnapshot, error) {
	m.mu.Lock()
	m.SnapshotCalls++
	m.mu.Unlock()
	if m.LoadLedgerSnapshotFn != nil {
		return m.LoadLedgerSnapshotFn(ctx, stuckCutoff)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return &domain.LedgerSnapshot{
		AcceptedLatest: m.latestPerCase(func(r *domain.PaymentRequest) bool { return r.Status.IsAccepted() }),
		Latest:         m.latestPerCase(func(*domain.PaymentRequest) bool { return true }),
		Stuck:          m.stuck(stuckCutoff),
	}, nil
}

func (m *MockOrderStore) ListUndispatched(ctx context.Context, cutoff time.Time, limit int) ([]*domain.PaymentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.PaymentRequest
	for _, r := range m.requests {
		if r.Status == domain.StatusNew && r.CreatedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockOrderStore) stuck(cutoff time.Time) []*domain.PaymentRequest {
	var out []*domain.PaymentRequest
	for _, r := range m.requests {
		switch {
		case r.Status == domain.StatusSent && r.SentAt != nil && r.SentAt.Before(cutoff):
			out = append(out, r)
		case r.Status == domain.StatusNew && r.CreatedAt.Before(cutoff):
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *MockOrderStore) Replay(ctx context.Context, decisionID int64) (*domain.PaymentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := m.latestLocked(func(r *domain.PaymentRequest) bool { return r.DecisionID == decisionID })
	if latest == nil {
		return nil, domain.NewOrderNotFoundError("for decision")
	}
	if !latest.Status.IsTerminal() {
		return nil, domain.NewReplayNotAllowedError(decisionID, latest.Status)
	}
	next := latest.NextAttempt()
	m.requests[next.ID] = next
	return next, nil
}

func (m *MockOrderStore) latestLocked(match func(*domain.PaymentRequest) bool) *domain.PaymentRequest {
	var latest *domain.PaymentRequest
	for _, r := range m.requests {
		if !match(r) {
			continue
		}
		if latest == nil || r.Attempt > latest.Attempt {
			latest = r
		}
	}
	return latest
}

// latestPerCase expects m.mu to be held.
func (m *MockOrderStore) latestPerCase(match func(*domain.PaymentRequest) bool) []*domain.PaymentRequest {
	byCase := make(map[int64]*domain.PaymentRequest)
	for _, r := range m.requests {
		if !match(r) {
			continue
		}
		cur, ok := byCase[r.CaseID]
		if !ok || r.CreatedAt.After(cur.CreatedAt) ||
			(r.CreatedAt.Equal(cur.CreatedAt) && r.Attempt > cur.Attempt) {
			byCase[r.CaseID] = r
		}
	}
	out := make([]*domain.PaymentRequest, 0, len(byCase))
	for _, r := range byCase {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CaseID < out[j].CaseID })
	return out
}

// MockBatchStore
type MockBatchStore struct {
	mu      sync.Mutex
	Batches []*domain.ReconciliationBatch

	InsertBatchFn func(ctx context.Context, batch *domain.ReconciliationBatch) error
}

func (m *MockBatchStore) InsertBatch(ctx context.Context, batch *domain.ReconciliationBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertBatchFn != nil {
		return m.InsertBatchFn(ctx, batch)
	}
	m.Batches = append(m.Batches, batch)
	return nil
}

func (m *MockBatchStore) LatestBatch(ctx context.Context, kind domain.BatchKind) (*domain.ReconciliationBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Batches) - 1; i >= 0; i-- {
		if m.Batches[i].Kind == kind {
			return m.Batches[i], nil
		}
	}
	return nil, nil
}

type published struct {
	Body          []byte
	CorrelationID string
}

// MockPublisher records confirmed messages.
type MockPublisher struct {
	mu       sync.Mutex
	Messages []published

	PublishFn func(ctx context.Context, body []byte, correlationID string) error
}

func (m *MockPublisher) Publish(ctx context.Context, body []byte, correlationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishFn != nil {
		if err := m.PublishFn(ctx, body, correlationID); err != nil {
			return err
		}
	}
	m.Messages = append(m.Messages, published{Body: body, CorrelationID: correlationID})
	return nil
}

func (m *MockPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

// MockEvents records status events.
type MockEvents struct {
	mu     sync.Mutex
	Events []domain.StatusChanged

	PublishStatusChangedFn func(ctx context.Context, event domain.StatusChanged) error
}

func (m *MockEvents) PublishStatusChanged(ctx context.Context, event domain.StatusChanged) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishStatusChangedFn != nil {
		return m.PublishStatusChangedFn(ctx, event)
	}
	m.Events = append(m.Events, event)
	return nil
}

// MockArchive
type MockArchive struct {
	mu      sync.Mutex
	Objects map[string][]byte

	StoreFn func(ctx context.Context, name string, body []byte) error
}

func (m *MockArchive) Store(ctx context.Context, name string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StoreFn != nil {
		return m.StoreFn(ctx, name, body)
	}
	if m.Objects == nil {
		m.Objects = make(map[string][]byte)
	}
	m.Objects[name] = body
	return nil
}

// MockDecisionSource serves schedules by decision id.
type MockDecisionSource struct {
	Schedules map[int64][]domain.ScheduleEntry
}

func (m *MockDecisionSource) FetchSchedule(ctx context.Context, decisionID int64) ([]domain.ScheduleEntry, error) {
	s, ok := m.Schedules[decisionID]
	if !ok {
		return nil, errors.New("decision not found")
	}
	return s, nil
}

// sequenceIDs hands out line ids 1, 2, 3, ...
type sequenceIDs struct {
	mu   sync.Mutex
	next int64
}

func (s *sequenceIDs) Generate() snowflake.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return snowflake.ID(s.next)
}
