//go:build integration

package storage_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/Kadacheahmedrami/Email-Craft/internal/sendmail"
	"github.com/Kadacheahmedrami/Email-Craft/internal/storage"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/db"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/token"
)

// Integration tests run against a throwaway PostgreSQL, for example:
//   docker run --rm -p 5432:5432 -e POSTGRES_PASSWORD=postgres postgres:17-alpine
// and are pointed at it via TEST_DATABASE_URL.

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, db.Config{
		ConnectionString: dsn,
		MaxOpenConns:     4,
		MinConns:         1,
		RetryAttempts:    1,
		RetryInterval:    time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool, storage.Migrations(), "goose_db_version", nil))
	return pool
}

func pendingRecord(ownerID string) *sendmail.Record {
	return &sendmail.Record{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		ChatID:      "chat-1",
		Subject:     "subject",
		SenderEmail: "alice@example.com",
		Recipients:  []sendmail.Recipient{{Email: "bob@example.com"}},
		BodyHTML:    "<html>body</html>",
		Status:      sendmail.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestSendRecordRepo_Lifecycle(t *testing.T) {
	pool := newTestPool(t)
	repo := storage.NewSendRecordRepo(pool)
	ctx := context.Background()

	owner := uuid.NewString()
	rec := pendingRecord(owner)
	require.NoError(t, repo.Create(ctx, rec))

	require.NoError(t, repo.SaveRenderedBody(ctx, rec.ID, "<html>rendered</html>"))

	sentAt := time.Now().UTC()
	meta := map[string]string{sendmail.MetaProviderMessageID: "m-1"}
	require.NoError(t, repo.MarkSent(ctx, rec.ID, sentAt, meta))

	got, err := repo.Get(ctx, owner, rec.ID)
	require.NoError(t, err)
	require.Equal(t, sendmail.StatusSent, got.Status)
	require.Equal(t, "<html>rendered</html>", got.BodyHTML)
	require.Equal(t, "m-1", got.Metadata[sendmail.MetaProviderMessageID])
	require.NotNil(t, got.SentAt)

	// Terminal rows never transition again.
	require.ErrorIs(t, repo.MarkFailed(ctx, rec.ID, "TRANSPORT_ERROR", "late failure"),
		storage.ErrAlreadyTerminal)
	require.ErrorIs(t, repo.MarkSent(ctx, rec.ID, sentAt, meta), storage.ErrAlreadyTerminal)
}

func TestSendRecordRepo_Listing(t *testing.T) {
	pool := newTestPool(t)
	repo := storage.NewSendRecordRepo(pool)
	ctx := context.Background()

	owner := uuid.NewString()
	for i := 0; i < 3; i++ {
		rec := pendingRecord(owner)
		rec.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if i == 2 {
			rec.ChatID = "chat-2"
		}
		require.NoError(t, repo.Create(ctx, rec))
	}

	all, err := repo.ListByOwner(ctx, owner, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.True(t, all[0].CreatedAt.After(all[2].CreatedAt), "newest first")

	chat, err := repo.ListByChat(ctx, owner, "chat-2", 10, 0)
	require.NoError(t, err)
	require.Len(t, chat, 1)

	other, err := repo.ListByOwner(ctx, uuid.NewString(), 10, 0)
	require.NoError(t, err)
	require.Empty(t, other, "listing is owner-scoped")
}

func TestSendRecordRepo_FailStale(t *testing.T) {
	pool := newTestPool(t)
	repo := storage.NewSendRecordRepo(pool)
	ctx := context.Background()

	owner := uuid.NewString()
	stale := pendingRecord(owner)
	stale.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, stale))

	fresh := pendingRecord(owner)
	require.NoError(t, repo.Create(ctx, fresh))

	n, err := repo.FailStale(ctx, time.Now().UTC().Add(-15*time.Minute),
		"TRANSPORT_ERROR", "send interrupted")
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, int64(1))

	got, err := repo.Get(ctx, owner, stale.ID)
	require.NoError(t, err)
	require.Equal(t, sendmail.StatusFailed, got.Status)

	got, err = repo.Get(ctx, owner, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, sendmail.StatusPending, got.Status)
}

func TestGrantRepo(t *testing.T) {
	pool := newTestPool(t)
	repo := storage.NewGrantRepo(pool)
	ctx := context.Background()

	userID := uuid.NewString()

	_, err := repo.Grant(ctx, userID)
	require.ErrorIs(t, err, token.ErrGrantNotFound)

	g := &token.Grant{
		UserID:       userID,
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Scopes:       []string{token.ScopeGmailSend},
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, repo.Upsert(ctx, g))

	got, err := repo.Grant(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, "access-1", got.AccessToken)
	require.True(t, got.HasScope(token.ScopeGmailSend))

	newExpiry := time.Now().UTC().Add(2 * time.Hour)
	require.NoError(t, repo.SaveTokens(ctx, userID, "access-2", "refresh-2", newExpiry))

	got, err = repo.Grant(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, "access-2", got.AccessToken)
	require.Equal(t, "refresh-2", got.RefreshToken)
	require.WithinDuration(t, newExpiry, got.ExpiresAt, time.Second)

	require.ErrorIs(t, repo.SaveTokens(ctx, uuid.NewString(), "a", "r", newExpiry),
		token.ErrGrantNotFound)
}
