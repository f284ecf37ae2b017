package badger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/models"
)

func TestUserStorage_EnsureUser(t *testing.T) {
	db := newTestDB(t)
	users := NewUserStorage(db, arbor.NewLogger())
	ctx := context.Background()

	created, err := users.EnsureUser(ctx, &models.User{ID: "user-1", Email: "a@example.com"})
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())

	again, err := users.EnsureUser(ctx, &models.User{ID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", again.Email)
	assert.Equal(t, created.CreatedAt.Unix(), again.CreatedAt.Unix())

	_, err = users.GetUser(ctx, "missing")
	assert.True(t, common.IsNotFound(err))
}

func TestDocumentStorage_ListIsScopedAndPaginated(t *testing.T) {
	db := newTestDB(t)
	docs := NewDocumentStorage(db, arbor.NewLogger())
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, docs.SaveDocument(ctx, &models.Document{
			ID:        fmt.Sprintf("doc_%d", i),
			UserID:    "user-1",
			Name:      fmt.Sprintf("file-%d.pdf", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, docs.SaveDocument(ctx, &models.Document{ID: "doc_other", UserID: "user-2"}))

	page, err := docs.ListDocuments(ctx, "user-1", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "doc_4", page[0].ID)
	assert.Equal(t, "doc_3", page[1].ID)

	page, err = docs.ListDocuments(ctx, "user-1", 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "doc_0", page[0].ID)

	count, err := docs.CountDocuments(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	all, err := docs.ListAllDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestDocumentStorage_DeleteCascades(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	docs := NewDocumentStorage(db, logger)
	sessions := NewSessionStorage(db, logger)
	messages := NewMessageStorage(db, logger)
	ctx := context.Background()

	require.NoError(t, docs.SaveDocument(ctx, &models.Document{ID: "doc_1", UserID: "user-1"}))
	require.NoError(t, docs.SaveDocument(ctx, &models.Document{ID: "doc_2", UserID: "user-1"}))
	require.NoError(t, sessions.SaveSession(ctx, &models.ChatSession{ID: "ses_a", DocumentID: "doc_1"}))
	require.NoError(t, sessions.SaveSession(ctx, &models.ChatSession{ID: "ses_b", DocumentID: "doc_1"}))
	require.NoError(t, sessions.SaveSession(ctx, &models.ChatSession{ID: "ses_keep", DocumentID: "doc_2"}))

	for i := 0; i < 3; i++ {
		require.NoError(t, messages.AppendMessage(ctx, &models.ChatMessage{SessionID: "ses_a", Role: models.RoleUser, Content: "a"}))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, messages.AppendMessage(ctx, &models.ChatMessage{SessionID: "ses_b", Role: models.RoleUser, Content: "b"}))
	}
	require.NoError(t, messages.AppendMessage(ctx, &models.ChatMessage{SessionID: "ses_keep", Role: models.RoleUser, Content: "keep"}))

	require.NoError(t, docs.DeleteDocument(ctx, "doc_1"))

	_, err := docs.GetDocument(ctx, "doc_1")
	assert.True(t, common.IsNotFound(err))

	remaining, err := sessions.ListSessions(ctx, "doc_1", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	for _, id := range []string{"ses_a", "ses_b"} {
		n, err := messages.CountMessages(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, n)
	}

	n, err := messages.CountMessages(ctx, "ses_keep")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	err = docs.DeleteDocument(ctx, "doc_1")
	assert.True(t, common.IsNotFound(err))
}

func TestSessionStorage_DeriveTitleOnce(t *testing.T) {
	db := newTestDB(t)
	sessions := NewSessionStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, sessions.SaveSession(ctx, &models.ChatSession{ID: "ses_1", DocumentID: "doc_1", Title: models.DefaultSessionTitle}))

	const senders = 8
	var wg sync.WaitGroup
	results := make(chan bool, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			derived, err := sessions.DeriveTitle(ctx, "ses_1", fmt.Sprintf("question %d", i))
			assert.NoError(t, err)
			results <- derived
		}(i)
	}
	wg.Wait()
	close(results)

	winners := 0
	for derived := range results {
		if derived {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	session, err := sessions.GetSession(ctx, "ses_1")
	require.NoError(t, err)
	assert.True(t, session.TitleDerived)
	assert.Contains(t, session.Title, "question ")
}

func TestSessionStorage_DeleteRemovesMessages(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	sessions := NewSessionStorage(db, logger)
	messages := NewMessageStorage(db, logger)
	ctx := context.Background()

	require.NoError(t, sessions.SaveSession(ctx, &models.ChatSession{ID: "ses_1", DocumentID: "doc_1"}))
	require.NoError(t, messages.AppendMessage(ctx, &models.ChatMessage{SessionID: "ses_1", Role: models.RoleUser, Content: "hi"}))

	require.NoError(t, sessions.DeleteSession(ctx, "ses_1"))

	n, err := messages.CountMessages(ctx, "ses_1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, common.IsNotFound(sessions.DeleteSession(ctx, "ses_1")))
}

func TestMessageStorage_OrderingAndHistory(t *testing.T) {
	db := newTestDB(t)
	messages := NewMessageStorage(db, arbor.NewLogger())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		require.NoError(t, messages.AppendMessage(ctx, &models.ChatMessage{
			SessionID: "ses_1",
			Role:      role,
			Content:   fmt.Sprintf("m%d", i),
		}))
	}

	all, err := messages.ListMessages(ctx, "ses_1", 100, 0)
	require.NoError(t, err)
	require.Len(t, all, 10)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i].CreatedAt.After(all[i-1].CreatedAt), "message %d not after %d", i, i-1)
		assert.Equal(t, fmt.Sprintf("m%d", i), all[i].Content)
	}

	recent, err := messages.RecentMessages(ctx, "ses_1", 6)
	require.NoError(t, err)
	require.Len(t, recent, 6)
	assert.Equal(t, "m4", recent[0].Content)
	assert.Equal(t, "m9", recent[5].Content)

	page, err := messages.ListMessages(ctx, "ses_1", 3, 2)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "m2", page[0].Content)

	require.NoError(t, messages.DeleteMessage(ctx, all[0].ID))
	assert.True(t, common.IsNotFound(messages.DeleteMessage(ctx, all[0].ID)))

	cleared, err := messages.ClearMessages(ctx, "ses_1")
	require.NoError(t, err)
	assert.Equal(t, 9, cleared)

	cleared, err = messages.ClearMessages(ctx, "ses_1")
	require.NoError(t, err)
	assert.Zero(t, cleared)
}

func TestMessageStorage_ConcurrentAppendsStayOrdered(t *testing.T) {
	db := newTestDB(t)
	messages := NewMessageStorage(db, arbor.NewLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, messages.AppendMessage(ctx, &models.ChatMessage{SessionID: "ses_1", Role: models.RoleUser, Content: fmt.Sprint(i)}))
		}(i)
	}
	wg.Wait()

	all, err := messages.ListMessages(ctx, "ses_1", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i].CreatedAt.After(all[i-1].CreatedAt))
	}
}

func TestOrphanStorage(t *testing.T) {
	db := newTestDB(t)
	orphans := NewOrphanStorage(db, arbor.NewLogger())
	ctx := context.Background()

	record := &models.OrphanRecord{DocumentID: "doc_1", LastError: "qdrant down"}
	require.NoError(t, orphans.SaveOrphan(ctx, record))
	assert.NotEmpty(t, record.ID)

	pending, err := orphans.ListOrphans(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "doc_1", pending[0].DocumentID)

	require.NoError(t, orphans.DeleteOrphan(ctx, record.ID))
	require.NoError(t, orphans.DeleteOrphan(ctx, record.ID))

	pending, err = orphans.ListOrphans(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
