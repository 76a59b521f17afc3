// Package analytics aggregates completed checkout sessions into
// revenue reporting for the admin surface.
package analytics

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/sondregut/pvelite/internal/checkout"
	"github.com/sondregut/pvelite/internal/domain"
)

type ProductStat struct {
	ProductID    int64  `json:"product_id"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	RevenueCents int64  `json:"revenue_cents"`
}

type RevenueSummary struct {
	Since        time.Time     `json:"since"`
	SessionCount int           `json:"session_count"`
	GrossCents   int64         `json:"gross_cents"`
	Products     []ProductStat `json:"products"`
	TopProduct   *ProductStat  `json:"top_product,omitempty"`
}

// Summarize folds checkout snapshots into per-product totals. Products
// are ordered by revenue, highest first, with product id as tiebreaker.
func Summarize(snapshots []domain.CheckoutSnapshot) RevenueSummary {
	summary := RevenueSummary{SessionCount: len(snapshots)}
	byProduct := make(map[int64]*ProductStat)

	for _, snap := range snapshots {
		summary.GrossCents += snap.TotalCents
		for _, item := range snap.Items {
			stat, ok := byProduct[item.ProductID]
			if !ok {
				stat = &ProductStat{ProductID: item.ProductID, Name: item.ProductName}
				byProduct[item.ProductID] = stat
			}
			stat.Quantity += item.Quantity
			stat.RevenueCents += item.SubtotalCents
		}
	}

	for _, stat := range byProduct {
		summary.Products = append(summary.Products, *stat)
	}
	sort.Slice(summary.Products, func(i, j int) bool {
		if summary.Products[i].RevenueCents != summary.Products[j].RevenueCents {
			return summary.Products[i].RevenueCents > summary.Products[j].RevenueCents
		}
		return summary.Products[i].ProductID < summary.Products[j].ProductID
	})

	if len(summary.Products) > 0 {
		top := summary.Products[0]
		summary.TopProduct = &top
	}

	return summary
}

type SessionSource interface {
	ListCompletedSessions(ctx context.Context, since time.Time) ([]*checkout.Session, error)
}

type Service struct {
	sessions SessionSource
}

func NewService(sessions SessionSource) *Service {
	return &Service{sessions: sessions}
}

// RevenueSince reports revenue for sessions completed on or after since.
// Sessions whose stored snapshot no longer parses are skipped and logged
// rather than failing the report.
func (s *Service) RevenueSince(ctx context.Context, since time.Time) (*RevenueSummary, error) {
	sessions, err := s.sessions.ListCompletedSessions(ctx, since)
	if err != nil {
		return nil, err
	}

	snapshots := make([]domain.CheckoutSnapshot, 0, len(sessions))
	for _, sess := range sessions {
		var snap domain.CheckoutSnapshot
		if err := json.Unmarshal(sess.CartSnapshot, &snap); err != nil {
			log.Printf("analytics: skipping session %s with unreadable snapshot: %v", sess.ID, err)
			continue
		}
		snapshots = append(snapshots, snap)
	}

	summary := Summarize(snapshots)
	summary.Since = since
	return &summary, nil
}
