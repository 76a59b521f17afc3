package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/sondregut/pvelite/internal/domain"
)

var (
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	ErrSessionNotFound        = errors.New("checkout session not found")
	ErrIllegalTransition      = errors.New("illegal transition of checkout status")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// Session is one row of checkout_sessions. CartSnapshot holds the JSON
// encoding of a domain.CheckoutSnapshot captured when checkout began.
type Session struct {
	ID                uuid.UUID
	UserID            string
	CartSnapshot      []byte
	IdempotencyKey    string
	Status            domain.CheckoutStatus
	TotalCents        int64
	Currency          string
	PromoCode         string
	ProviderSessionID string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
}

type RepoInterface interface {
	GetSessionByIdempotencyKey(ctx context.Context, key string) (*string, *domain.CheckoutStatus, error)
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	CreateSession(ctx context.Context, s *Session) error
	UpdateSessionStatus(ctx context.Context, id uuid.UUID, from, to domain.CheckoutStatus) error
	SetPaymentPending(ctx context.Context, id uuid.UUID, providerSessionID string) error
	CompleteSession(ctx context.Context, id uuid.UUID, payload []byte, status domain.CheckoutStatus) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, eventID int64) error
	GetStuckSessions(ctx context.Context) ([]*Session, error)
	ListCompletedSessions(ctx context.Context, since time.Time) ([]*Session, error)
	Close() error
	RunMigrations(*Credentials) error
}

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) GetSessionByIdempotencyKey(ctx context.Context, key string) (*string, *domain.CheckoutStatus, error) {
	query := `SELECT id, status FROM checkout_sessions WHERE idempotency_key = $1`

	var (
		id     string
		status domain.CheckoutStatus
	)
	err := r.db.QueryRowContext(ctx, query, key).Scan(&id, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query idempotency key: %w", err)
	}

	return &id, &status, nil
}

func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	query := `
		SELECT id, user_id, cart_snapshot, idempotency_key, status, total_cents,
		       currency, COALESCE(promo_code, ''), COALESCE(provider_session_id, ''),
		       created_at, updated_at
		FROM checkout_sessions
		WHERE id = $1
	`

	s := &Session{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.UserID,
		&s.CartSnapshot,
		&s.IdempotencyKey,
		&s.Status,
		&s.TotalCents,
		&s.Currency,
		&s.PromoCode,
		&s.ProviderSessionID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	return s, nil
}

func (r *Repository) CreateSession(ctx context.Context, s *Session) error {
	query := `
		INSERT INTO checkout_sessions
			(id, user_id, cart_snapshot, idempotency_key, status, total_cents, currency, promo_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NOW(), NOW())
	`

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.UserID, s.CartSnapshot, s.IdempotencyKey, s.Status, s.TotalCents, s.Currency, s.PromoCode)
	if err != nil {
		return fmt.Errorf("failed to create checkout session: %w", err)
	}
	return nil
}

// UpdateSessionStatus transitions a session from one status to another.
// The WHERE clause enforces the transition: zero rows means the session is
// not in the expected state and the transition is rejected.
func (r *Repository) UpdateSessionStatus(ctx context.Context, id uuid.UUID, from, to domain.CheckoutStatus) error {
	query := `UPDATE checkout_sessions SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`

	result, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrIllegalTransition
	}
	return nil
}

func (r *Repository) SetPaymentPending(ctx context.Context, id uuid.UUID, providerSessionID string) error {
	query := `
		UPDATE checkout_sessions
		SET status = $1, provider_session_id = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := r.db.ExecContext(ctx, query,
		domain.CheckoutStatusPaymentPending, providerSessionID, id, domain.CheckoutStatusInitiated)
	if err != nil {
		return fmt.Errorf("failed to mark session payment pending: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrIllegalTransition
	}
	return nil
}

// CompleteSession sets the final status and writes the outbox event in one
// transaction, so a completed checkout can never lose its event.
func (r *Repository) CompleteSession(ctx context.Context, id uuid.UUID, payload []byte, status domain.CheckoutStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	updateQuery := `UPDATE checkout_sessions SET status = $1, updated_at = NOW() WHERE id = $2`
	if _, err := tx.ExecContext(ctx, updateQuery, status, id); err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}

	outboxQuery := `INSERT INTO checkout_outbox (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, outboxQuery, id.String(), "checkout.completed", payload); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `
		SELECT id, aggregate_id, event_type, payload
		FROM checkout_outbox
		WHERE processed_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		e := &OutboxEvent{}
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, eventID int64) error {
	query := `UPDATE checkout_outbox SET processed_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, eventID); err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return nil
}

// GetStuckSessions returns sessions stuck in PAYMENT_COMPLETED with no
// outbox event, which happens when the process dies between the payment
// callback and CompleteSession.
func (r *Repository) GetStuckSessions(ctx context.Context) ([]*Session, error) {
	query := `
		SELECT s.id, s.user_id, s.cart_snapshot, s.idempotency_key, s.status, s.total_cents,
		       s.currency, COALESCE(s.promo_code, ''), COALESCE(s.provider_session_id, ''),
		       s.created_at, s.updated_at
		FROM checkout_sessions s
		WHERE s.status = $1
		  AND NOT EXISTS (
			SELECT 1 FROM checkout_outbox o WHERE o.aggregate_id = s.id::text
		  )
	`

	return r.querySessions(ctx, query, domain.CheckoutStatusPaymentCompleted)
}

func (r *Repository) ListCompletedSessions(ctx context.Context, since time.Time) ([]*Session, error) {
	query := `
		SELECT id, user_id, cart_snapshot, idempotency_key, status, total_cents,
		       currency, COALESCE(promo_code, ''), COALESCE(provider_session_id, ''),
		       created_at, updated_at
		FROM checkout_sessions
		WHERE status = $1 AND updated_at >= $2
		ORDER BY updated_at
	`

	return r.querySessions(ctx, query, domain.CheckoutStatusCompleted, since)
}

func (r *Repository) querySessions(ctx context.Context, query string, args ...interface{}) ([]*Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s := &Session{}
		err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.CartSnapshot,
			&s.IdempotencyKey,
			&s.Status,
			&s.TotalCents,
			&s.Currency,
			&s.PromoCode,
			&s.ProviderSessionID,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sessions, nil
}
