package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sondregut/pvelite/internal/catalog"
	"github.com/sondregut/pvelite/internal/domain"
	"github.com/sondregut/pvelite/internal/payment"
)

type MockRepository struct {
	GetKeyID  *string
	GetStatus *domain.CheckoutStatus
	GetKeyErr error

	CreatedSession *Session
	CreateErr      error

	Sessions map[uuid.UUID]*Session

	StatusTransitions []string
	UpdateStatusErr   error

	PendingProviderID string

	CompletedPayloads [][]byte
	CompleteErr       error

	OutboxEvents []*OutboxEvent
	ProcessedIDs []int64

	StuckSessions    []*Session
	StuckSessionsErr error
}

func (m *MockRepository) GetSessionByIdempotencyKey(context.Context, string) (*string, *domain.CheckoutStatus, error) {
	if m.GetKeyErr != nil {
		return nil, nil, m.GetKeyErr
	}
	if m.GetKeyID == nil {
		return nil, nil, ErrIdempotencyKeyNotFound
	}
	return m.GetKeyID, m.GetStatus, nil
}

func (m *MockRepository) GetSession(_ context.Context, id uuid.UUID) (*Session, error) {
	s, ok := m.Sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *MockRepository) CreateSession(_ context.Context, s *Session) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.CreatedSession = s
	if m.Sessions == nil {
		m.Sessions = map[uuid.UUID]*Session{}
	}
	m.Sessions[s.ID] = s
	return nil
}

func (m *MockRepository) UpdateSessionStatus(_ context.Context, id uuid.UUID, from, to domain.CheckoutStatus) error {
	if m.UpdateStatusErr != nil {
		return m.UpdateStatusErr
	}
	m.StatusTransitions = append(m.StatusTransitions, from.String()+"->"+to.String())
	if s, ok := m.Sessions[id]; ok {
		s.Status = to
	}
	return nil
}

func (m *MockRepository) SetPaymentPending(_ context.Context, id uuid.UUID, providerSessionID string) error {
	m.PendingProviderID = providerSessionID
	if s, ok := m.Sessions[id]; ok {
		s.Status = domain.CheckoutStatusPaymentPending
		s.ProviderSessionID = providerSessionID
	}
	return nil
}

func (m *MockRepository) CompleteSession(_ context.Context, id uuid.UUID, payload []byte, status domain.CheckoutStatus) error {
	if m.CompleteErr != nil {
		return m.CompleteErr
	}
	m.CompletedPayloads = append(m.CompletedPayloads, payload)
	if s, ok := m.Sessions[id]; ok {
		s.Status = status
	}
	return nil
}

func (m *MockRepository) GetUnprocessedEvents(context.Context, int) ([]*OutboxEvent, error) {
	return m.OutboxEvents, nil
}

func (m *MockRepository) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.ProcessedIDs = append(m.ProcessedIDs, id)
	return nil
}

func (m *MockRepository) GetStuckSessions(context.Context) ([]*Session, error) {
	if m.StuckSessionsErr != nil {
		return nil, m.StuckSessionsErr
	}
	return m.StuckSessions, nil
}

func (m *MockRepository) ListCompletedSessions(context.Context, time.Time) ([]*Session, error) {
	var out []*Session
	for _, s := range m.Sessions {
		if s.Status == domain.CheckoutStatusCompleted {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MockRepository) Close() error { return nil }

func (m *MockRepository) RunMigrations(*Credentials) error { return nil }

type mockCarts struct {
	cart           *domain.Cart
	snapshotStored bool
	snapshotOrder  int // 0 = not stored, otherwise call sequence position
	callCounter    *int
}

func (m *mockCarts) Get(context.Context, string) *domain.Cart {
	return m.cart
}

func (m *mockCarts) StorePurchaseInfo(context.Context, string) {
	m.snapshotStored = true
	if m.callCounter != nil {
		*m.callCounter++
		m.snapshotOrder = *m.callCounter
	}
}

type mockCatalog struct {
	products map[int64]*domain.Product
	promos   map[string]*domain.PromoCode
}

func (m *mockCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return p, nil
}

func (m *mockCatalog) ValidatePromo(_ context.Context, code string, _ time.Time) (*domain.PromoCode, error) {
	p, ok := m.promos[code]
	if !ok {
		return nil, catalog.ErrPromoInvalid
	}
	return p, nil
}

type mockPayments struct {
	session    *payment.Session
	err        error
	lastReq    payment.SessionRequest
	callCount  int
	callOrder  int
	orderCount *int

	verifyPaid  bool
	verifyErr   error
	verifiedIDs []string
}

func (m *mockPayments) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	m.lastReq = req
	m.callCount++
	if m.orderCount != nil {
		*m.orderCount++
		m.callOrder = *m.orderCount
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

func (m *mockPayments) VerifySession(_ context.Context, sessionID string) (bool, error) {
	m.verifiedIDs = append(m.verifiedIDs, sessionID)
	if m.verifyErr != nil {
		return false, m.verifyErr
	}
	return m.verifyPaid, nil
}
