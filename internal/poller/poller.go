// Package poller consumes checkout-completed events and clears the
// purchasing user's cart. The clear is silent: the user just finished
// paying, so no "cart cleared" notification is emitted.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/segmentio/kafka-go"
)

const topic = "checkout-completed"

// CartClearer is the slice of the cart manager the poller needs.
type CartClearer interface {
	ClearCart(ctx context.Context, userID string, notifyUser bool)
}

type Poller struct {
	carts  CartClearer
	reader *kafka.Reader
}

func New(carts CartClearer, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  "cart-clear-consumer",
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{carts: carts, reader: reader}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.processMessage(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		log.Printf("error closing kafka reader: %v", err)
	}
}

func (p *Poller) processMessage(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Printf("error reading message: %v", err)
		return
	}

	p.handle(ctx, m.Value)
}

func (p *Poller) handle(ctx context.Context, value []byte) {
	var payload struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(value, &payload); err != nil {
		log.Printf("error parsing message: %v", err)
		return
	}
	if payload.UserID == "" {
		log.Println("missing or invalid user_id")
		return
	}

	p.carts.ClearCart(ctx, payload.UserID, false)
}
