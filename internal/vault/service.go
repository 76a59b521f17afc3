package vault

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sondregut/pvelite/internal/domain"
)

var ErrNotEntitled = errors.New("user has no active vault subscription")

// URLSigner resolves a storage path to a playback URL. The object store
// behind it (and whether URLs are signed or public) is a black box here.
type URLSigner interface {
	PlaybackURL(storagePath string) (string, error)
}

type Service struct {
	repo   Repository
	signer URLSigner
	now    func() time.Time
}

func NewService(repo Repository, signer URLSigner) *Service {
	return &Service{repo: repo, signer: signer, now: time.Now}
}

// CheckAccess reports whether the user holds an active or trialing
// subscription whose period has not ended.
func (s *Service) CheckAccess(ctx context.Context, userID string) error {
	sub, err := s.repo.GetSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoSubscription) {
			return ErrNotEntitled
		}
		return err
	}

	if !sub.Entitled(s.now()) {
		return ErrNotEntitled
	}
	return nil
}

// ListVideos returns the vault library for an entitled user, with playback
// URLs resolved. A URL that fails to resolve leaves the video listed
// without a playback URL rather than failing the whole page.
func (s *Service) ListVideos(ctx context.Context, userID, category string) ([]*domain.VaultVideo, error) {
	if err := s.CheckAccess(ctx, userID); err != nil {
		return nil, err
	}

	videos, err := s.repo.ListVideos(ctx, category)
	if err != nil {
		return nil, err
	}

	for _, v := range videos {
		url, err := s.signer.PlaybackURL(v.StoragePath)
		if err != nil {
			log.Printf("failed to resolve playback url for video %s: %v", v.ID, err)
			continue
		}
		v.PlaybackURL = url
	}

	return videos, nil
}

// PublicBaseSigner serves objects from a public CDN base URL.
type PublicBaseSigner struct {
	BaseURL string
}

func (p PublicBaseSigner) PlaybackURL(storagePath string) (string, error) {
	return p.BaseURL + "/" + storagePath, nil
}
