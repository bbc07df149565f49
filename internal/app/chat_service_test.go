package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratagem-ai/internal/attachment"
	"stratagem-ai/internal/interpret"
	"stratagem-ai/internal/model"
	"stratagem-ai/internal/workspace"
)

const contractReply = `{"summary":"Vendor contract review","analysis":"Termination terms are loose.","recommendation":"Tighten clause 14.","execution":{"immediate":"Send to legal","short_term":"Negotiate"},"risks":[{"risk":"Termination clause ambiguous","severity":"High"}],"next_step":"Shall I draft a revision?"}`

type fakeModel struct {
	mu        sync.Mutex
	chatReply string
	chatErr   error
	gate      chan struct{}
	seen      [][]model.Message

	docReply string
	docErr   error
	docs     []model.Attachment
}

func (f *fakeModel) Chat(ctx context.Context, transcript []model.Message) (string, error) {
	f.mu.Lock()
	f.seen = append(f.seen, transcript)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.chatReply, f.chatErr
}

func (f *fakeModel) AnalyzeDocument(ctx context.Context, doc model.Attachment) (string, error) {
	f.mu.Lock()
	f.docs = append(f.docs, doc)
	f.mu.Unlock()
	return f.docReply, f.docErr
}

func (f *fakeModel) analyzed() []model.Attachment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Attachment(nil), f.docs...)
}

func newTestService(fm *fakeModel) (*ChatService, *workspace.Registry) {
	reg := workspace.NewRegistry("welcome", time.Hour)
	analysis := NewAnalysisService(fm)
	return NewChatService(reg, fm, NewInlineDispatcher(analysis), attachment.NewEncoder(0)), reg
}

func pdfAttachment(name string) model.Attachment {
	return model.Attachment{Name: name, Type: "application/pdf", Data: attachment.DataURL("application/pdf", []byte("%PDF-1.4"))}
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })
	return &buf
}

func TestSendMessage_ContractScenario(t *testing.T) {
	fm := &fakeModel{chatReply: contractReply, docReply: contractReply}
	svc, reg := newTestService(fm)
	sess := reg.Create()
	sess.Apply(workspace.AddPending(pdfAttachment("contract.pdf")))

	result, err := svc.SendMessage(context.Background(), SendMessageInput{
		SessionID: sess.ID(),
		Content:   "Evaluate vendor contract risk",
	})
	require.NoError(t, err)
	assert.True(t, result.AnalysisStarted)
	require.Len(t, result.Messages, 2)

	user := result.Messages[0]
	assert.Equal(t, model.RoleUser, user.Role)
	require.Len(t, user.Attachments, 1)
	assert.Equal(t, "contract.pdf", user.Attachments[0].Name)
	assert.Empty(t, sess.Snapshot().Pending, "pending set drained into the message")

	require.Eventually(t, func() bool {
		return sess.Snapshot().Panel.Status() == workspace.PanelPopulated
	}, time.Second, 5*time.Millisecond)

	docs := fm.analyzed()
	require.Len(t, docs, 1)
	assert.Equal(t, "contract.pdf", docs[0].Name)

	panel := sess.Snapshot().Panel
	require.Len(t, panel.Current.Risks, 1)
	assert.Equal(t, interpret.TierHigh, interpret.TierOf(panel.Current.Risks[0].Severity))
	assert.Equal(t, "contract.pdf", panel.Document)
}

func TestSendMessage_TypingSpansServiceCall(t *testing.T) {
	fm := &fakeModel{chatReply: contractReply, gate: make(chan struct{})}
	svc, reg := newTestService(fm)
	sess := reg.Create()
	before := sess.Snapshot().Transcript.Len()

	done := make(chan error, 1)
	go func() {
		_, err := svc.SendMessage(context.Background(), SendMessageInput{SessionID: sess.ID(), Content: "Grow Q3 pipeline"})
		done <- err
	}()

	require.Eventually(t, func() bool {
		return sess.Snapshot().Transcript.Len() == before+1
	}, time.Second, 5*time.Millisecond)
	snap := sess.Snapshot()
	assert.True(t, snap.Typing())
	last, _ := snap.Transcript.Last()
	assert.Equal(t, model.RoleUser, last.Role)

	close(fm.gate)
	require.NoError(t, <-done)

	snap = sess.Snapshot()
	assert.False(t, snap.Typing())
	assert.Equal(t, before+2, snap.Transcript.Len())
	last, _ = snap.Transcript.Last()
	assert.Equal(t, model.RoleAssistant, last.Role)

	require.Len(t, fm.seen, 1)
	sent := fm.seen[0]
	assert.Len(t, sent, before+1, "transcript snapshot includes the new user turn only")
	assert.Equal(t, "Grow Q3 pipeline", sent[len(sent)-1].Content)
}

func TestSendMessage_ServiceFailure(t *testing.T) {
	logs := captureLog(t)
	fm := &fakeModel{chatErr: errors.New("connection reset")}
	svc, reg := newTestService(fm)
	sess := reg.Create()
	before := sess.Snapshot().Transcript.Len()

	_, err := svc.SendMessage(context.Background(), SendMessageInput{SessionID: sess.ID(), Content: "hello"})
	require.ErrorIs(t, err, ErrChatFailed)

	snap := sess.Snapshot()
	assert.False(t, snap.Typing())
	assert.Equal(t, before+1, snap.Transcript.Len(), "no assistant message on failure")
	assert.Contains(t, logs.String(), "connection reset")
}

func TestSendMessage_PlainTextReply(t *testing.T) {
	fm := &fakeModel{chatReply: "Hello, how can I help?"}
	svc, reg := newTestService(fm)
	sess := reg.Create()

	result, err := svc.SendMessage(context.Background(), SendMessageInput{SessionID: sess.ID(), Content: "hi"})
	require.NoError(t, err)
	assert.False(t, result.AnalysisStarted)

	reply := interpret.Interpret(result.Messages[1].Content)
	assert.Equal(t, interpret.PlainText, reply.Kind)
	assert.Equal(t, "Hello, how can I help?", reply.Text)
	assert.Equal(t, workspace.PanelEmpty, sess.Snapshot().Panel.Status())
	assert.Empty(t, fm.analyzed())
}

func TestSendMessage_EmptyReplyBecomesFallback(t *testing.T) {
	fm := &fakeModel{chatReply: "   "}
	svc, reg := newTestService(fm)
	sess := reg.Create()

	result, err := svc.SendMessage(context.Background(), SendMessageInput{SessionID: sess.ID(), Content: "hi"})
	require.NoError(t, err)

	reply := interpret.Interpret(result.Messages[1].Content)
	require.Equal(t, interpret.Structured, reply.Kind)
	assert.Equal(t, model.EmptyReply(), reply.Structured)
}

func TestSendMessage_Validation(t *testing.T) {
	svc, reg := newTestService(&fakeModel{})

	_, err := svc.SendMessage(context.Background(), SendMessageInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.SendMessage(context.Background(), SendMessageInput{SessionID: "nope", Content: "x"})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	sess := reg.Create()
	_, err = svc.SendMessage(context.Background(), SendMessageInput{SessionID: sess.ID(), Content: "   "})
	assert.ErrorIs(t, err, ErrMessageEmpty)
	assert.Equal(t, 1, sess.Snapshot().Transcript.Len())
	assert.False(t, sess.Snapshot().Typing())
}

func TestSendMessage_RacingSendsShareOnePendingFile(t *testing.T) {
	fm := &fakeModel{chatReply: contractReply}
	svc, reg := newTestService(fm)
	sess := reg.Create()
	sess.Apply(workspace.AddPending(model.Attachment{Name: "notes.txt", Type: "text/plain", Data: "data:text/plain;base64,aGk="}))

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.SendMessage(context.Background(), SendMessageInput{SessionID: sess.ID()})
		}(i)
	}
	wg.Wait()

	var sent, empty int
	for _, err := range errs {
		switch {
		case err == nil:
			sent++
		case errors.Is(err, ErrMessageEmpty):
			empty++
		}
	}
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, empty)

	snap := sess.Snapshot()
	assert.False(t, snap.Typing())
	require.Equal(t, 3, snap.Transcript.Len(), "welcome, one user turn, one reply")
	for _, msg := range snap.Transcript.Messages() {
		assert.False(t, msg.Empty(), "no blank turn in the transcript")
	}
}

func TestSendMessage_AttachmentOnly(t *testing.T) {
	fm := &fakeModel{chatReply: contractReply, docReply: contractReply}
	svc, reg := newTestService(fm)
	sess := reg.Create()

	result, err := svc.SendMessage(context.Background(), SendMessageInput{
		SessionID:   sess.ID(),
		Attachments: []model.Attachment{pdfAttachment("brief.pdf")},
	})
	require.NoError(t, err)
	assert.Equal(t, "", result.Messages[0].Content)
	assert.True(t, result.AnalysisStarted)
}

func TestAnalysis_FailureClearsFlag(t *testing.T) {
	captureLog(t)
	fm := &fakeModel{chatReply: contractReply, docErr: errors.New("quota exceeded")}
	svc, reg := newTestService(fm)
	sess := reg.Create()

	_, err := svc.SendMessage(context.Background(), SendMessageInput{
		SessionID:   sess.ID(),
		Content:     "review",
		Attachments: []model.Attachment{pdfAttachment("a.pdf")},
	})
	require.NoError(t, err, "analysis failure does not affect the chat reply")

	require.Eventually(t, func() bool {
		return len(fm.analyzed()) == 1 && !sess.Snapshot().Analyzing()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, workspace.PanelEmpty, sess.Snapshot().Panel.Status())
}

func TestAnalysis_FailureKeepsShownDocumentName(t *testing.T) {
	captureLog(t)
	fm := &fakeModel{docReply: contractReply}
	analysis := NewAnalysisService(fm)
	sess := workspace.NewRegistry("", time.Hour).Create()

	_, err := analysis.AnalyzeAttachment(context.Background(), sess, pdfAttachment("contract.pdf"))
	require.NoError(t, err)

	fm.mu.Lock()
	fm.docErr = errors.New("connection reset")
	fm.mu.Unlock()
	_, err = analysis.AnalyzeAttachment(context.Background(), sess, pdfAttachment("budget.pdf"))
	require.Error(t, err)

	panel := sess.Snapshot().Panel
	assert.Equal(t, workspace.PanelPopulated, panel.Status())
	assert.Equal(t, "contract.pdf", panel.Document)
	assert.Equal(t, "Vendor contract review", panel.Current.Summary)
}

func TestAnalysis_UnparseableReplyUsesSentinel(t *testing.T) {
	captureLog(t)
	fm := &fakeModel{docReply: "I could not read that"}
	analysis := NewAnalysisService(fm)

	resp, err := analysis.Analyze(context.Background(), "a.pdf", "data:application/pdf;base64,JVBERg==", "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, model.AnalysisFailed(), resp)
	assert.Equal(t, "Analysis failed", resp.Summary)
	require.Len(t, resp.Risks, 1)
	assert.Equal(t, "Parsing error", resp.Risks[0].Risk)
	assert.Equal(t, model.SeverityMedium, resp.Risks[0].Severity)
}

func TestAnalysis_TransportErrorPropagates(t *testing.T) {
	fm := &fakeModel{docErr: errors.New("503")}
	_, err := NewAnalysisService(fm).Analyze(context.Background(), "a.pdf", "", "application/pdf")
	assert.ErrorIs(t, err, ErrAnalysisFailed)
}

func TestAnalyzeAttachment_RejectsNonDocuments(t *testing.T) {
	reg := workspace.NewRegistry("", time.Hour)
	sess := reg.Create()
	_, err := NewAnalysisService(&fakeModel{}).AnalyzeAttachment(context.Background(), sess, model.Attachment{Name: "a.png", Type: "image/png"})
	assert.ErrorIs(t, err, ErrNotDocument)
	assert.False(t, sess.Snapshot().Analyzing())
}

func TestAddAndRemoveAttachments(t *testing.T) {
	svc, reg := newTestService(&fakeModel{})
	sess := reg.Create()

	files := []attachment.File{
		{Name: "a.txt", Type: "text/plain", Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("a")), nil }},
		{Name: "b.txt", Type: "text/plain", Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("b")), nil }},
	}
	n, err := svc.AddAttachments(context.Background(), sess.ID(), files)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sess.Snapshot().Pending, 2)

	require.NoError(t, svc.RemoveAttachment(sess.ID(), 0))
	assert.Len(t, sess.Snapshot().Pending, 1)
	assert.ErrorIs(t, svc.RemoveAttachment(sess.ID(), 5), ErrInvalidInput)
	assert.ErrorIs(t, svc.RemoveAttachment("missing", 0), ErrSessionNotFound)
}

type fakePublisher struct {
	mu   sync.Mutex
	jobs []model.AnalysisJob
	err  error
}

func (p *fakePublisher) Publish(ctx context.Context, job model.AnalysisJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	return p.err
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

func TestQueueDispatcher_PublishesJob(t *testing.T) {
	reg := workspace.NewRegistry("", time.Hour)
	sess := reg.Create()
	pub := &fakePublisher{}
	d := NewQueueDispatcher(NewAnalysisService(&fakeModel{}), pub)

	d.Dispatch(context.Background(), sess, pdfAttachment("contract.pdf"))
	assert.True(t, sess.Snapshot().Analyzing(), "panel loads before the job is picked up")

	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)
	pub.mu.Lock()
	job := pub.jobs[0]
	pub.mu.Unlock()
	assert.Equal(t, sess.ID(), job.SessionID)
	assert.Equal(t, "contract.pdf", job.Document.Name)
	assert.True(t, sess.Snapshot().Analyzing())
}

func TestQueueDispatcher_PublishFailureSettlesPanel(t *testing.T) {
	captureLog(t)
	reg := workspace.NewRegistry("", time.Hour)
	sess := reg.Create()
	d := NewQueueDispatcher(NewAnalysisService(&fakeModel{}), &fakePublisher{err: errors.New("channel closed")})

	d.Dispatch(context.Background(), sess, pdfAttachment("contract.pdf"))
	require.Eventually(t, func() bool { return !sess.Snapshot().Analyzing() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, workspace.PanelEmpty, sess.Snapshot().Panel.Status())
}
