package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sondregut/pvelite/internal/domain"
)

type mockVaultRepo struct {
	sub    *domain.Subscription
	subErr error
	videos []*domain.VaultVideo
	err    error

	lastCategory string
}

func (m *mockVaultRepo) GetSubscription(context.Context, string) (*domain.Subscription, error) {
	if m.subErr != nil {
		return nil, m.subErr
	}
	return m.sub, nil
}

func (m *mockVaultRepo) ListVideos(_ context.Context, category string) ([]*domain.VaultVideo, error) {
	m.lastCategory = category
	if m.err != nil {
		return nil, m.err
	}
	return m.videos, nil
}

func (m *mockVaultRepo) CreateIndexes(context.Context) error { return nil }

type failingSigner struct{}

func (failingSigner) PlaybackURL(string) (string, error) {
	return "", errors.New("storage unavailable")
}

func activeSub(until time.Time) *domain.Subscription {
	return &domain.Subscription{UserID: "u1", Status: "active", CurrentPeriodEnd: until}
}

func newTestService(repo Repository) *Service {
	return NewService(repo, PublicBaseSigner{BaseURL: "https://cdn.example.com/vault"})
}

func TestCheckAccess(t *testing.T) {
	t.Run("active subscription is entitled", func(t *testing.T) {
		svc := newTestService(&mockVaultRepo{sub: activeSub(time.Now().Add(24 * time.Hour))})
		assert.NoError(t, svc.CheckAccess(context.Background(), "u1"))
	})

	t.Run("trialing subscription is entitled", func(t *testing.T) {
		sub := activeSub(time.Now().Add(24 * time.Hour))
		sub.Status = "trialing"
		svc := newTestService(&mockVaultRepo{sub: sub})
		assert.NoError(t, svc.CheckAccess(context.Background(), "u1"))
	})

	t.Run("expired period is not entitled", func(t *testing.T) {
		svc := newTestService(&mockVaultRepo{sub: activeSub(time.Now().Add(-time.Hour))})
		assert.ErrorIs(t, svc.CheckAccess(context.Background(), "u1"), ErrNotEntitled)
	})

	t.Run("canceled subscription is not entitled", func(t *testing.T) {
		sub := activeSub(time.Now().Add(24 * time.Hour))
		sub.Status = "canceled"
		svc := newTestService(&mockVaultRepo{sub: sub})
		assert.ErrorIs(t, svc.CheckAccess(context.Background(), "u1"), ErrNotEntitled)
	})

	t.Run("no subscription maps to not entitled", func(t *testing.T) {
		svc := newTestService(&mockVaultRepo{subErr: ErrNoSubscription})
		assert.ErrorIs(t, svc.CheckAccess(context.Background(), "u1"), ErrNotEntitled)
	})

	t.Run("repository error passes through", func(t *testing.T) {
		repoErr := errors.New("connection reset")
		svc := newTestService(&mockVaultRepo{subErr: repoErr})
		assert.ErrorIs(t, svc.CheckAccess(context.Background(), "u1"), repoErr)
	})
}

func TestListVideos(t *testing.T) {
	videos := []*domain.VaultVideo{
		{ID: "v1", Title: "Pole Drop Drill", Category: "drills", StoragePath: "drills/pole-drop.mp4"},
		{ID: "v2", Title: "Full Approach Breakdown", Category: "technique", StoragePath: "technique/approach.mp4"},
	}

	t.Run("entitled user gets playback urls", func(t *testing.T) {
		repo := &mockVaultRepo{sub: activeSub(time.Now().Add(time.Hour)), videos: videos}
		svc := newTestService(repo)

		got, err := svc.ListVideos(context.Background(), "u1", "")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "https://cdn.example.com/vault/drills/pole-drop.mp4", got[0].PlaybackURL)
		assert.Equal(t, "https://cdn.example.com/vault/technique/approach.mp4", got[1].PlaybackURL)
	})

	t.Run("category filter is forwarded", func(t *testing.T) {
		repo := &mockVaultRepo{sub: activeSub(time.Now().Add(time.Hour))}
		svc := newTestService(repo)

		_, err := svc.ListVideos(context.Background(), "u1", "drills")
		require.NoError(t, err)
		assert.Equal(t, "drills", repo.lastCategory)
	})

	t.Run("unentitled user is rejected before listing", func(t *testing.T) {
		repo := &mockVaultRepo{subErr: ErrNoSubscription, videos: videos}
		svc := newTestService(repo)

		got, err := svc.ListVideos(context.Background(), "u1", "")
		assert.ErrorIs(t, err, ErrNotEntitled)
		assert.Nil(t, got)
	})

	t.Run("signer failure leaves video listed without url", func(t *testing.T) {
		repo := &mockVaultRepo{
			sub:    activeSub(time.Now().Add(time.Hour)),
			videos: []*domain.VaultVideo{{ID: "v1", Title: "Pole Drop Drill", StoragePath: "drills/pole-drop.mp4"}},
		}
		svc := NewService(repo, failingSigner{})

		got, err := svc.ListVideos(context.Background(), "u1", "")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Empty(t, got[0].PlaybackURL)
	})
}
