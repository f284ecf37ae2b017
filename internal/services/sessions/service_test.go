package sessions

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
	"github.com/ternarybob/docgpt/internal/services/documents"
	"github.com/ternarybob/docgpt/internal/testutil"
)

type recordingRenderer struct {
	doc      *models.Document
	session  *models.ChatSession
	messages []*models.ChatMessage
}

func (r *recordingRenderer) RenderTranscript(doc *models.Document, session *models.ChatSession, messages []*models.ChatMessage) ([]byte, error) {
	r.doc, r.session, r.messages = doc, session, messages
	return []byte("%PDF-transcript"), nil
}

type fixture struct {
	env      *testutil.Env
	docs     interfaces.DocumentService
	svc      interfaces.SessionService
	renderer *recordingRenderer
	doc      *models.Document
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := testutil.NewEnv(t)
	docs := documents.NewService(env.Storage, env.Blobs, env.Extractor, env.Embedder, env.Index, env.Retriever, env.Config, env.Logger)
	renderer := &recordingRenderer{}

	data := testutil.PDF("Quarterly report text")
	doc, err := docs.Upload(context.Background(), interfaces.UploadRequest{
		UserID: "user_1", FileName: "report.pdf", Content: bytes.NewReader(data),
	})
	require.NoError(t, err)

	return &fixture{
		env:      env,
		docs:     docs,
		svc:      NewService(docs, env.Storage, renderer, env.Logger),
		renderer: renderer,
		doc:      doc,
	}
}

func TestCreate_DefaultTitle(t *testing.T) {
	f := newFixture(t)
	ses, err := f.svc.Create(context.Background(), "user_1", f.doc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSessionTitle, ses.Title)
	assert.False(t, ses.TitleDerived)
	assert.Equal(t, f.doc.ID, ses.DocumentID)
}

func TestCreate_ExplicitTitleIsKept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ses, err := f.svc.Create(ctx, "user_1", f.doc.ID, "  Budget questions ")
	require.NoError(t, err)
	assert.Equal(t, "Budget questions", ses.Title)

	derived, err := f.env.Storage.SessionStorage().DeriveTitle(ctx, ses.ID, "first message")
	require.NoError(t, err)
	assert.False(t, derived)
}

func TestCreate_Ownership(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), "user_2", f.doc.ID, "")
	assert.True(t, common.IsPermission(err))

	_, err = f.svc.Create(context.Background(), "user_1", "doc_missing", "")
	assert.True(t, common.IsNotFound(err))
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, "user_1", f.doc.ID, "")
		require.NoError(t, err)
	}

	sessions, err := f.svc.List(ctx, "user_1", f.doc.ID, 2, 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	_, err = f.svc.List(ctx, "user_2", f.doc.ID, 10, 0)
	assert.True(t, common.IsPermission(err))
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, "user_1", f.doc.ID, "")
	require.NoError(t, err)

	ses, doc, err := f.svc.Get(ctx, "user_1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, ses.ID)
	assert.Equal(t, f.doc.ID, doc.ID)

	_, _, err = f.svc.Get(ctx, "user_2", created.ID)
	assert.True(t, common.IsPermission(err))

	_, _, err = f.svc.Get(ctx, "user_1", "ses_missing")
	assert.True(t, common.IsNotFound(err))

	_, _, err = f.svc.Get(ctx, "", created.ID)
	assert.True(t, common.IsPermission(err))
}

func TestRename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, "user_1", f.doc.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Rename(ctx, "user_1", created.ID, "   ")
	assert.True(t, common.IsValidation(err))

	renamed, err := f.svc.Rename(ctx, "user_1", created.ID, "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", renamed.Title)

	ses, _, err := f.svc.Get(ctx, "user_1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", ses.Title)
	assert.True(t, ses.TitleDerived)
}

func TestDelete_RemovesMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, "user_1", f.doc.ID, "")
	require.NoError(t, err)

	messages := f.env.Storage.MessageStorage()
	require.NoError(t, messages.AppendMessage(ctx, &models.ChatMessage{SessionID: created.ID, Role: models.RoleUser, Content: "hi"}))

	assert.True(t, common.IsPermission(f.svc.Delete(ctx, "user_2", created.ID)))
	require.NoError(t, f.svc.Delete(ctx, "user_1", created.ID))

	n, err := messages.CountMessages(ctx, created.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, _, err = f.svc.Get(ctx, "user_1", created.ID)
	assert.True(t, common.IsNotFound(err))
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, "user_1", f.doc.ID, "Export me")
	require.NoError(t, err)

	messages := f.env.Storage.MessageStorage()
	require.NoError(t, messages.AppendMessage(ctx, &models.ChatMessage{SessionID: created.ID, Role: models.RoleUser, Content: "question"}))
	require.NoError(t, messages.AppendMessage(ctx, &models.ChatMessage{SessionID: created.ID, Role: models.RoleAssistant, Content: "answer"}))

	data, err := f.svc.Export(ctx, "user_1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-transcript"), data)
	assert.Equal(t, f.doc.ID, f.renderer.doc.ID)
	assert.Equal(t, "Export me", f.renderer.session.Title)
	require.Len(t, f.renderer.messages, 2)
	assert.Equal(t, "question", f.renderer.messages[0].Content)

	_, err = f.svc.Export(ctx, "user_2", created.ID)
	assert.True(t, common.IsPermission(err))
}
