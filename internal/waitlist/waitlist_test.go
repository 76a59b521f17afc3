package waitlist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sondregut/pvelite/internal/vault"
)

func setupTestMongo(t *testing.T) (*mongo.Database, func()) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := vault.ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	cleanup := func() {
		db.Client().Disconnect(ctx)
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return db, cleanup
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"athlete@example.com", true},
		{"a@b.co", true},
		{"no-at-sign", false},
		{"@example.com", false},
		{"athlete@", false},
		{"athlete@nodot", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, validEmail(tt.email))
		})
	}
}

func TestJoin(t *testing.T) {
	db, cleanup := setupTestMongo(t)
	defer cleanup()
	ctx := context.Background()

	repo := NewMongoRepository(db).(*mongoRepository)
	require.NoError(t, repo.CreateIndexes(ctx))

	t.Run("records signup with normalized email", func(t *testing.T) {
		require.NoError(t, repo.Join(ctx, "  Athlete@Example.COM ", "vault-landing"))

		var entry Entry
		err := repo.entries.FindOne(ctx, bson.M{"email": "athlete@example.com"}).Decode(&entry)
		require.NoError(t, err)
		assert.Equal(t, "vault-landing", entry.Source)
		assert.False(t, entry.CreatedAt.IsZero())
	})

	t.Run("duplicate signup is a silent no-op", func(t *testing.T) {
		require.NoError(t, repo.Join(ctx, "repeat@example.com", "vault-landing"))
		require.NoError(t, repo.Join(ctx, "repeat@example.com", "footer"))

		n, err := repo.entries.CountDocuments(ctx, bson.M{"email": "repeat@example.com"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("invalid email is rejected", func(t *testing.T) {
		assert.ErrorIs(t, repo.Join(ctx, "not-an-email", "vault-landing"), ErrInvalidEmail)
	})

	t.Run("count", func(t *testing.T) {
		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(2))
	})
}
