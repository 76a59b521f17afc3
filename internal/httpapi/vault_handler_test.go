package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sondregut/pvelite/internal/domain"
	"github.com/sondregut/pvelite/internal/vault"
	"github.com/sondregut/pvelite/internal/waitlist"
)

type stubVaultRepo struct {
	sub    *domain.Subscription
	videos []*domain.VaultVideo
}

func (s *stubVaultRepo) GetSubscription(context.Context, string) (*domain.Subscription, error) {
	if s.sub == nil {
		return nil, vault.ErrNoSubscription
	}
	return s.sub, nil
}

func (s *stubVaultRepo) ListVideos(context.Context, string) ([]*domain.VaultVideo, error) {
	return s.videos, nil
}

func (s *stubVaultRepo) CreateIndexes(context.Context) error { return nil }

type stubWaitlist struct {
	joined []string
	err    error
}

func (s *stubWaitlist) Join(_ context.Context, email, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.joined = append(s.joined, email)
	return nil
}

func (s *stubWaitlist) Count(context.Context) (int64, error) {
	return int64(len(s.joined)), nil
}

func (s *stubWaitlist) CreateIndexes(context.Context) error { return nil }

func newVaultHandler(repo vault.Repository, wl waitlist.Repository) *VaultHandler {
	svc := vault.NewService(repo, vault.PublicBaseSigner{BaseURL: "https://cdn.example.com/vault"})
	return NewVaultHandler(svc, wl)
}

func TestListVideosEndpoint(t *testing.T) {
	videos := []*domain.VaultVideo{
		{ID: "v1", Title: "Pole Drop Drill", StoragePath: "drills/pole-drop.mp4"},
	}

	t.Run("entitled user", func(t *testing.T) {
		handler := newVaultHandler(&stubVaultRepo{
			sub:    &domain.Subscription{UserID: "u1", Status: "active", CurrentPeriodEnd: time.Now().Add(time.Hour)},
			videos: videos,
		}, &stubWaitlist{})

		recorder := httptest.NewRecorder()
		request := asUser(httptest.NewRequest("GET", "/vault/videos", nil), "u1")
		handler.ListVideos(recorder, request)

		require.Equal(t, http.StatusOK, recorder.Code)
		var resp []domain.VaultVideo
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
		require.Len(t, resp, 1)
		assert.Equal(t, "https://cdn.example.com/vault/drills/pole-drop.mp4", resp[0].PlaybackURL)
	})

	t.Run("no subscription is forbidden", func(t *testing.T) {
		handler := newVaultHandler(&stubVaultRepo{videos: videos}, &stubWaitlist{})

		recorder := httptest.NewRecorder()
		request := asUser(httptest.NewRequest("GET", "/vault/videos", nil), "u1")
		handler.ListVideos(recorder, request)

		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		handler := newVaultHandler(&stubVaultRepo{}, &stubWaitlist{})

		recorder := httptest.NewRecorder()
		handler.ListVideos(recorder, httptest.NewRequest("GET", "/vault/videos", nil))

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}

func TestJoinWaitlistEndpoint(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		wl := &stubWaitlist{}
		handler := newVaultHandler(&stubVaultRepo{}, wl)

		recorder := httptest.NewRecorder()
		request := httptest.NewRequest("POST", "/waitlist", bytes.NewBufferString(`{"email":"athlete@example.com","source":"vault-landing"}`))
		handler.JoinWaitlist(recorder, request)

		assert.Equal(t, http.StatusAccepted, recorder.Code)
		assert.Equal(t, []string{"athlete@example.com"}, wl.joined)
	})

	t.Run("invalid email", func(t *testing.T) {
		handler := newVaultHandler(&stubVaultRepo{}, &stubWaitlist{err: waitlist.ErrInvalidEmail})

		recorder := httptest.NewRecorder()
		request := httptest.NewRequest("POST", "/waitlist", bytes.NewBufferString(`{"email":"nope"}`))
		handler.JoinWaitlist(recorder, request)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}
