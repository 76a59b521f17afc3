package cart

import (
	"encoding/json"
	"fmt"

	"github.com/sondregut/pvelite/internal/domain"
	"github.com/sondregut/pvelite/internal/money"
)

// schemaVersion is bumped when the stored cart layout changes. Version 0 is
// the legacy format: a bare JSON array of line items with display-string
// prices only.
const schemaVersion = 1

type envelope struct {
	SchemaVersion int               `json:"schema_version"`
	Items         []domain.LineItem `json:"items"`
}

func encodeItems(items []domain.LineItem) ([]byte, error) {
	data, err := json.Marshal(envelope{SchemaVersion: schemaVersion, Items: items})
	if err != nil {
		return nil, fmt.Errorf("marshal cart failed: %w", err)
	}
	return data, nil
}

// decodeItems reads a stored cart blob, migrating legacy payloads to the
// current schema. Migration fills UnitPriceCents from the display price so
// totals no longer depend on parse-on-every-read.
func decodeItems(data []byte) ([]domain.LineItem, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err == nil && env.SchemaVersion >= 1 {
		return migrateItems(env.Items), nil
	}

	// Legacy format: a bare array written before the envelope existed.
	var legacy []domain.LineItem
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return migrateItems(legacy), nil
}

func migrateItems(items []domain.LineItem) []domain.LineItem {
	for i := range items {
		if items[i].UnitPriceCents == 0 && items[i].Price != "" {
			items[i].UnitPriceCents = money.ParseDisplayPrice(items[i].Price)
		}
	}
	return items
}
