package coordinator_test

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatdesk/backendtest"
	"chatdesk/config"
	"chatdesk/coordinator"
	"chatdesk/events"
	"chatdesk/models"
)

func TestBootstrapLoadsModelsAndSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.client.CreateSession(ctx, "Existing", models.ModeGeneral)
	require.NoError(t, err)

	require.NoError(t, h.coord.Bootstrap(ctx))

	snap := h.coord.Snapshot()
	assert.Len(t, snap.Models, len(backendtest.DefaultModels))
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, "Existing", snap.Sessions[0].Title)
	assert.Equal(t, "allenai/molmo-2-8b:free", snap.SelectedModel)
	assert.Empty(t, snap.CurrentSessionID)
	assert.False(t, snap.Busy)
}

func TestBootstrapFailureIsSilent(t *testing.T) {
	h := newHarness(t)
	h.fake.FailNext(backendtest.OpListModels, http.StatusInternalServerError)

	err := h.coord.Bootstrap(context.Background())
	require.Error(t, err)
	assert.Equal(t, coordinator.KindTransport, coordinator.KindOf(err))
	assert.Empty(t, h.coord.Snapshot().Models)
	assert.Empty(t, h.bus.notifications())

	require.NoError(t, h.coord.LoadModels(context.Background()))
	assert.NotEmpty(t, h.coord.Snapshot().Models)
}

func TestSendMessageWithoutSessionCreatesGeneralSession(t *testing.T) {
	h := newHarness(t)

	reply, err := h.coord.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "[allenai/molmo-2-8b:free] hello", reply.Content)

	snap := h.coord.Snapshot()
	sess, ok := snap.CurrentSession()
	require.True(t, ok)
	assert.Equal(t, models.ModeGeneral, sess.Mode)
	assert.Equal(t, "New Chat", sess.Title)
	assert.Equal(t, 1, h.fake.Calls(backendtest.OpCreateSession))

	require.Len(t, snap.Messages, 2)
	assert.Equal(t, models.RoleUser, snap.Messages[0].Role)
	assert.Equal(t, "hello", snap.Messages[0].Content)
	assert.Equal(t, models.StatusSent, snap.Messages[0].Status)
	assert.Equal(t, models.RoleAssistant, snap.Messages[1].Role)
	assert.False(t, snap.Busy)

	notes := h.bus.notifications()
	require.NotEmpty(t, notes)
	assert.Equal(t, coordinator.OpCreateSession, notes[0].Op)
	assert.Equal(t, events.LevelSuccess, notes[0].Level)
}

func TestSendMessageReconcilesOptimisticEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sess, err := h.coord.CreateSession(ctx, models.ModeGeneral)
	require.NoError(t, err)

	release := h.fake.Hold(backendtest.OpChat, sess.ID)
	t.Cleanup(release)

	done := make(chan error, 1)
	go func() {
		_, err := h.coord.SendMessage(ctx, "first")
		done <- err
	}()

	require.Eventually(t, func() bool { return h.fake.Calls(backendtest.OpChat) == 1 }, time.Second, 5*time.Millisecond)
	pending := h.coord.Snapshot()
	assert.True(t, pending.Busy)
	require.Len(t, pending.Messages, 1)
	assert.Equal(t, models.StatusPending, pending.Messages[0].Status)
	localID := pending.Messages[0].ID

	release()
	require.NoError(t, <-done)

	snap := h.coord.Snapshot()
	assert.False(t, snap.Busy)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, localID, snap.Messages[0].ID)
	assert.Equal(t, models.StatusSent, snap.Messages[0].Status)
	assert.Equal(t, "first", snap.Messages[0].Content)
	assert.Equal(t, models.RoleAssistant, snap.Messages[1].Role)
	assert.False(t, snap.Messages[1].Timestamp.Before(snap.Messages[0].Timestamp))

	_, err = h.coord.SendMessage(ctx, "second")
	require.NoError(t, err)
	snap = h.coord.Snapshot()
	require.Len(t, snap.Messages, 4)
	users := 0
	for _, m := range snap.Messages {
		if m.Role == models.RoleUser {
			users++
		}
	}
	assert.Equal(t, 2, users)
}

func TestSendMessageFailureMarksOptimisticEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.coord.CreateSession(ctx, models.ModeGeneral)
	require.NoError(t, err)
	h.fake.FailNext(backendtest.OpChat, http.StatusBadGateway)

	_, err = h.coord.SendMessage(ctx, "will fail")
	require.Error(t, err)
	assert.Equal(t, coordinator.KindTransport, coordinator.KindOf(err))

	snap := h.coord.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, models.StatusFailed, snap.Messages[0].Status)
	assert.False(t, snap.Busy)

	n, ok := h.bus.last()
	require.True(t, ok)
	assert.Equal(t, events.LevelError, n.Level)
	assert.Equal(t, coordinator.OpSendMessage, n.Op)
}

func TestSendMessageRejectsBlankText(t *testing.T) {
	h := newHarness(t)

	_, err := h.coord.SendMessage(context.Background(), "  \n\t")
	require.Error(t, err)
	assert.ErrorIs(t, err, coordinator.ErrEmptyMessage)
	assert.Equal(t, coordinator.KindValidation, coordinator.KindOf(err))
	assert.Zero(t, h.fake.TotalCalls())
	assert.Empty(t, h.coord.Snapshot().Messages)
}

func TestCreateSessionFailureLeavesCatalog(t *testing.T) {
	h := newHarness(t)
	h.fake.FailNext(backendtest.OpCreateSession, http.StatusInternalServerError)

	_, err := h.coord.SendMessage(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, coordinator.KindTransport, coordinator.KindOf(err))
	assert.Zero(t, h.fake.Calls(backendtest.OpChat))

	snap := h.coord.Snapshot()
	assert.Empty(t, snap.Sessions)
	assert.Empty(t, snap.CurrentSessionID)
	assert.False(t, snap.Busy)

	n, ok := h.bus.last()
	require.True(t, ok)
	assert.Equal(t, "Failed to create new chat", n.Message)
}

func TestCompletionForLeftSessionIsDiscarded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, err := h.coord.CreateSession(ctx, models.ModeGeneral)
	require.NoError(t, err)
	b, err := h.coord.CreateSession(ctx, models.ModeGeneral)
	require.NoError(t, err)
	require.NoError(t, h.coord.SelectSession(ctx, a.ID))

	release := h.fake.Hold(backendtest.OpChat, a.ID)
	t.Cleanup(release)

	done := make(chan error, 1)
	go func() {
		_, err := h.coord.SendMessage(ctx, "for a")
		done <- err
	}()
	require.Eventually(t, func() bool { return h.fake.Calls(backendtest.OpChat) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.coord.SelectSession(ctx, b.ID))
	release()
	require.NoError(t, <-done)

	snap := h.coord.Snapshot()
	assert.Equal(t, b.ID, snap.CurrentSessionID)
	assert.Empty(t, snap.Messages)

	// the reply was persisted remotely and shows up once A is selected again
	require.NoError(t, h.coord.SelectSession(ctx, a.ID))
	snap = h.coord.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "for a", snap.Messages[0].Content)
}

func TestStaleTranscriptIsDiscarded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, err := h.coord.CreateSession(ctx, models.ModeGeneral)
	require.NoError(t, err)
	_, err = h.coord.SendMessage(ctx, "in a")
	require.NoError(t, err)
	b, err := h.coord.CreateSession(ctx, models.ModeGeneral)
	require.NoError(t, err)
	_, err = h.coord.SendMessage(ctx, "in b")
	require.NoError(t, err)

	before := h.fake.Calls(backendtest.OpGetMessages)
	release := h.fake.Hold(backendtest.OpGetMessages, a.ID)
	t.Cleanup(release)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = h.coord.SelectSession(ctx, a.ID)
	}()
	require.Eventually(t, func() bool { return h.fake.Calls(backendtest.OpGetMessages) == before+1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.coord.SelectSession(ctx, b.ID))
	release()
	wg.Wait()

	snap := h.coord.Snapshot()
	assert.Equal(t, b.ID, snap.CurrentSessionID)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "in b", snap.Messages[0].Content)
}

func TestSelectSessionUnknown(t *testing.T) {
	h := newHarness(t)

	err := h.coord.SelectSession(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, coordinator.ErrSessionNotFound)
	assert.Equal(t, coordinator.KindValidation, coordinator.KindOf(err))
	assert.Zero(t, h.fake.Calls(backendtest.OpGetMessages))
}

func TestSelectedModelSurvivesSessionSwitch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.coord.LoadModels(ctx))

	err := h.coord.SelectModel(ctx, "unknown/model")
	assert.ErrorIs(t, err, coordinator.ErrModelNotFound)
	assert.Equal(t, "allenai/molmo-2-8b:free", h.coord.Snapshot().SelectedModel)

	require.NoError(t, h.coord.SelectModel(ctx, "openai/gpt-oss-120b:free"))
	a, err := h.coord.CreateSession(ctx, models.ModeGeneral)
	require.NoError(t, err)
	_, err = h.coord.CreateSession(ctx, models.ModeGeneral)
	require.NoError(t, err)
	require.NoError(t, h.coord.SelectSession(ctx, a.ID))

	reply, err := h.coord.SendMessage(ctx, "which model")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply.Content, "[openai/gpt-oss-120b:free]"))
	assert.Equal(t, "openai/gpt-oss-120b:free", reply.Metadata["model"])
}

func TestDerivedOperationsRequireDocumentSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.coord.CreateSession(ctx, models.ModeGeneral)
	require.NoError(t, err)
	calls := h.fake.TotalCalls()

	_, err = h.coord.GenerateQA(ctx, 3)
	assert.ErrorIs(t, err, coordinator.ErrNoDocumentSession)
	assert.Equal(t, coordinator.KindPrecondition, coordinator.KindOf(err))

	_, err = h.coord.Research(ctx, "anything")
	assert.ErrorIs(t, err, coordinator.ErrNoDocumentSession)

	_, err = h.coord.Translate(ctx, "ko")
	assert.ErrorIs(t, err, coordinator.ErrNoDocumentSession)

	assert.Equal(t, calls, h.fake.TotalCalls())
	n, ok := h.bus.last()
	require.True(t, ok)
	assert.Equal(t, "Please upload a document first", n.Message)
}

func TestUploadCreatesDocumentSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.coord.UploadDocument(ctx, "paper", bytes.NewReader(pdfBytes))
	require.NoError(t, err)
	assert.Equal(t, "paper.pdf", resp.Document.Filename)

	snap := h.coord.Snapshot()
	sess, ok := snap.CurrentSession()
	require.True(t, ok)
	assert.Equal(t, models.ModeDocument, sess.Mode)
	assert.Equal(t, "Document Chat", sess.Title)
	mode, _ := h.fake.SessionMode(sess.ID)
	assert.Equal(t, "pdf", mode)

	n, ok := h.bus.last()
	require.True(t, ok)
	assert.Equal(t, coordinator.OpUploadDocument, n.Op)
	assert.Equal(t, events.LevelSuccess, n.Level)

	qa, err := h.coord.GenerateQA(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, models.KindQA, qa.Kind())
	assert.Contains(t, qa.Content, "Question 5")

	research, err := h.coord.Research(ctx, "methods")
	require.NoError(t, err)
	assert.Equal(t, models.KindResearch, research.Kind())

	tr, err := h.coord.Translate(ctx, "ko")
	require.NoError(t, err)
	assert.Equal(t, models.KindTranslation, tr.Kind())
	assert.Contains(t, tr.Content, "ko")

	snap = h.coord.Snapshot()
	require.Len(t, snap.Messages, 3)
	assert.False(t, snap.Busy)
}

func TestUploadIntoGeneralSessionSwitchesMode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sess, err := h.coord.CreateSession(ctx, models.ModeGeneral)
	require.NoError(t, err)

	_, err = h.coord.UploadDocument(ctx, "report.pdf", bytes.NewReader(pdfBytes))
	require.NoError(t, err)

	cur, ok := h.coord.Snapshot().CurrentSession()
	require.True(t, ok)
	assert.Equal(t, sess.ID, cur.ID)
	assert.True(t, cur.IsDocument())
	assert.Equal(t, 1, h.fake.Calls(backendtest.OpCreateSession))
}

func TestUploadValidation(t *testing.T) {
	h := newHarness(t, func(cfg *config.AppConfig) {
		cfg.Upload.MaxBytes = 32
	})
	ctx := context.Background()

	cases := []struct {
		name    string
		content []byte
		want    error
	}{
		{name: "empty", content: nil, want: coordinator.ErrEmptyDocument},
		{name: "text", content: []byte("just some notes"), want: coordinator.ErrUnsupportedDocument},
		{name: "too large", content: pdfBytes, want: coordinator.ErrDocumentTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.coord.UploadDocument(ctx, "file.pdf", bytes.NewReader(tc.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, coordinator.KindValidation, coordinator.KindOf(err))
		})
	}

	assert.Zero(t, h.fake.TotalCalls())
	assert.Empty(t, h.coord.Snapshot().Sessions)
}

func TestUploadFailureKeepsSessionGeneral(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.coord.CreateSession(ctx, models.ModeGeneral)
	require.NoError(t, err)
	h.fake.FailNext(backendtest.OpUpload, http.StatusInternalServerError)

	_, err = h.coord.UploadDocument(ctx, "a.pdf", bytes.NewReader(pdfBytes))
	require.Error(t, err)
	assert.Equal(t, coordinator.KindTransport, coordinator.KindOf(err))

	cur, ok := h.coord.Snapshot().CurrentSession()
	require.True(t, ok)
	assert.False(t, cur.IsDocument())
	assert.False(t, h.coord.Snapshot().Busy)
}

func TestTranscriptRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		_, err := h.coord.SendMessage(ctx, text)
		require.NoError(t, err)
	}
	shown := h.coord.Snapshot().Messages

	require.NoError(t, h.coord.LoadTranscript(ctx, h.coord.Snapshot().CurrentSessionID))
	reloaded := h.coord.Snapshot().Messages

	require.Len(t, reloaded, len(shown))
	for i := range shown {
		assert.Equal(t, shown[i].Role, reloaded[i].Role)
		assert.Equal(t, shown[i].Content, reloaded[i].Content)
		assert.Equal(t, models.StatusSent, reloaded[i].Status)
	}
}

func TestSendRefreshesCatalogOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, err := h.coord.CreateSession(ctx, models.ModeGeneral)
	require.NoError(t, err)
	_, err = h.coord.CreateSession(ctx, models.ModeGeneral)
	require.NoError(t, err)
	require.NoError(t, h.coord.SelectSession(ctx, a.ID))

	_, err = h.coord.SendMessage(ctx, "bump")
	require.NoError(t, err)

	snap := h.coord.Snapshot()
	require.Len(t, snap.Sessions, 2)
	assert.Equal(t, a.ID, snap.Sessions[0].ID)
	assert.Equal(t, a.ID, snap.CurrentSessionID)
}

func TestStaleSessionListKeepsCreatedSession(t *testing.T) {
	h := newHarness(t)
	gb := h.gated()
	ctx := context.Background()

	list := gb.holdAfter(t, backendtest.OpListSessions)
	done := make(chan error, 1)
	go func() { done <- h.coord.LoadSessions(ctx) }()
	list.wait(t)

	sess, err := h.coord.CreateSession(ctx, models.ModeGeneral)
	require.NoError(t, err)
	list.open()
	require.NoError(t, <-done)

	snap := h.coord.Snapshot()
	cur, ok := snap.CurrentSession()
	require.True(t, ok)
	assert.Equal(t, sess.ID, cur.ID)
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, 2, h.fake.Calls(backendtest.OpListSessions))

	_, err = h.coord.SendMessage(ctx, "hi")
	require.NoError(t, err)
	assert.Equal(t, 1, h.fake.Calls(backendtest.OpCreateSession))
	assert.Equal(t, sess.ID, h.coord.Snapshot().CurrentSessionID)
}

func TestReselectDuringSendDoesNotDuplicateReply(t *testing.T) {
	h := newHarness(t)
	gb := h.gated()
	ctx := context.Background()
	a, err := h.coord.CreateSession(ctx, models.ModeGeneral)
	require.NoError(t, err)
	b, err := h.coord.CreateSession(ctx, models.ModeGeneral)
	require.NoError(t, err)
	require.NoError(t, h.coord.SelectSession(ctx, a.ID))

	chat := gb.holdAfter(t, backendtest.OpChat)
	done := make(chan error, 1)
	go func() {
		_, err := h.coord.SendMessage(ctx, "q")
		done <- err
	}()
	chat.wait(t)
	assert.Equal(t, 2, h.fake.MessageCount(a.ID))

	require.NoError(t, h.coord.SelectSession(ctx, b.ID))
	require.NoError(t, h.coord.SelectSession(ctx, a.ID))
	require.Len(t, h.coord.Snapshot().Messages, 2)

	chat.open()
	require.NoError(t, <-done)

	msgs := h.coord.Snapshot().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "q", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "[allenai/molmo-2-8b:free] q", msgs[1].Content)
	for _, m := range msgs {
		assert.Equal(t, models.StatusSent, m.Status)
	}
}

func TestSendsCompletingOutOfOrder(t *testing.T) {
	h := newHarness(t)
	gb := h.gated()
	ctx := context.Background()
	sess, err := h.coord.CreateSession(ctx, models.ModeGeneral)
	require.NoError(t, err)

	first := gb.holdAfter(t, backendtest.OpChat)
	done := make(chan error, 1)
	go func() {
		_, err := h.coord.SendMessage(ctx, "one")
		done <- err
	}()
	first.wait(t)

	_, err = h.coord.SendMessage(ctx, "two")
	require.NoError(t, err)
	mid := h.coord.Snapshot().Messages
	require.Len(t, mid, 3)
	assert.Equal(t, models.StatusPending, mid[0].Status)
	assert.True(t, h.coord.Snapshot().Busy)

	first.open()
	require.NoError(t, <-done)

	snap := h.coord.Snapshot()
	assert.False(t, snap.Busy)
	contents := make([]string, 0, len(snap.Messages))
	for _, m := range snap.Messages {
		contents = append(contents, m.Content)
		assert.Equal(t, models.StatusSent, m.Status)
	}
	assert.Equal(t, []string{
		"one",
		"two",
		"[allenai/molmo-2-8b:free] two",
		"[allenai/molmo-2-8b:free] one",
	}, contents)
	assert.Equal(t, 4, h.fake.MessageCount(sess.ID))
}

func TestDerivedResultCompletingAfterSend(t *testing.T) {
	h := newHarness(t)
	gb := h.gated()
	ctx := context.Background()
	_, err := h.coord.UploadDocument(ctx, "paper.pdf", bytes.NewReader(pdfBytes))
	require.NoError(t, err)

	qa := gb.holdAfter(t, backendtest.OpGenerateQA)
	done := make(chan error, 1)
	go func() {
		_, err := h.coord.GenerateQA(ctx, 2)
		done <- err
	}()
	qa.wait(t)

	_, err = h.coord.SendMessage(ctx, "about the paper")
	require.NoError(t, err)
	qa.open()
	require.NoError(t, <-done)

	snap := h.coord.Snapshot()
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, models.RoleUser, snap.Messages[0].Role)
	assert.Equal(t, models.RoleAssistant, snap.Messages[1].Role)
	assert.Equal(t, "", snap.Messages[1].Kind())
	assert.Equal(t, models.KindQA, snap.Messages[2].Kind())
	assert.Contains(t, snap.Messages[2].Content, "Question 2")
	assert.False(t, snap.Busy)
}

func TestUploadMarksSessionAfterSwitchingAway(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, err := h.coord.CreateSession(ctx, models.ModeGeneral)
	require.NoError(t, err)
	b, err := h.coord.CreateSession(ctx, models.ModeGeneral)
	require.NoError(t, err)
	require.NoError(t, h.coord.SelectSession(ctx, a.ID))

	release := h.fake.Hold(backendtest.OpUpload, a.ID)
	t.Cleanup(release)
	done := make(chan error, 1)
	go func() {
		_, err := h.coord.UploadDocument(ctx, "a.pdf", bytes.NewReader(pdfBytes))
		done <- err
	}()
	require.Eventually(t, func() bool { return h.fake.Calls(backendtest.OpUpload) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.coord.SelectSession(ctx, b.ID))
	h.fake.FailNext(backendtest.OpListSessions, http.StatusInternalServerError)
	release()
	require.NoError(t, <-done)

	snap := h.coord.Snapshot()
	assert.Equal(t, b.ID, snap.CurrentSessionID)
	var uploaded *models.Session
	for i := range snap.Sessions {
		if snap.Sessions[i].ID == a.ID {
			uploaded = &snap.Sessions[i]
		}
	}
	require.NotNil(t, uploaded)
	assert.True(t, uploaded.IsDocument())
}

func TestLoadModelsKeepsSelection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.coord.LoadModels(ctx))
	require.NoError(t, h.coord.SelectModel(ctx, "openai/gpt-oss-120b:free"))

	h.fake.SetModels([]models.Model{
		{ID: "openai/gpt-oss-120b:free", Name: "GPT OSS 120B", Provider: "OpenAI"},
		{ID: "acme/new-model:free", Name: "New Model", Provider: "Acme"},
	})
	require.NoError(t, h.coord.LoadModels(ctx))

	snap := h.coord.Snapshot()
	assert.Len(t, snap.Models, 2)
	assert.Equal(t, "openai/gpt-oss-120b:free", snap.SelectedModel)

	require.NoError(t, h.coord.SelectModel(ctx, "acme/new-model:free"))
	assert.ErrorIs(t, h.coord.SelectModel(ctx, "allenai/molmo-2-8b:free"), coordinator.ErrModelNotFound)
}
