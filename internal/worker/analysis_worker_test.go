package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratagem-ai/internal/model"
	"stratagem-ai/internal/platform/rabbitmq"
	"stratagem-ai/internal/workspace"
)

type recordingRunner struct {
	mu   sync.Mutex
	runs []string
}

func (r *recordingRunner) Run(ctx context.Context, sess *workspace.Session, doc model.Attachment) (model.StructuredResponse, error) {
	r.mu.Lock()
	r.runs = append(r.runs, sess.ID()+"/"+doc.Name)
	r.mu.Unlock()
	resp := model.AnalysisFailed()
	sess.Apply(workspace.AnalysisSettled(doc.Name, &resp))
	return resp, nil
}

func encode(t *testing.T, job model.AnalysisJob) []byte {
	t.Helper()
	pub, err := rabbitmq.EncodeJob(job)
	require.NoError(t, err)
	return pub.Body
}

func TestHandle_RunsJobForLiveSession(t *testing.T) {
	reg := workspace.NewRegistry("", time.Hour)
	sess := reg.Create()
	sess.Apply(workspace.AnalysisStarted("contract.pdf"))
	runner := &recordingRunner{}
	w := NewAnalysisWorker(nil, reg, runner, "q", 2)

	body := encode(t, model.AnalysisJob{SessionID: sess.ID(), Document: model.Attachment{Name: "contract.pdf", Type: "application/pdf"}})
	require.NoError(t, w.Handle(context.Background(), body))

	assert.Equal(t, []string{sess.ID() + "/contract.pdf"}, runner.runs)
	assert.False(t, sess.Snapshot().Analyzing())
	assert.Equal(t, workspace.PanelPopulated, sess.Snapshot().Panel.Status())
}

func TestHandle_DropsJobForMissingSession(t *testing.T) {
	runner := &recordingRunner{}
	w := NewAnalysisWorker(nil, workspace.NewRegistry("", time.Hour), runner, "q", 0)

	body := encode(t, model.AnalysisJob{SessionID: "gone", Document: model.Attachment{Name: "a.pdf"}})
	require.NoError(t, w.Handle(context.Background(), body))
	assert.Empty(t, runner.runs)
	assert.Equal(t, 1, w.prefetch)
}

func TestHandle_MalformedJob(t *testing.T) {
	w := NewAnalysisWorker(nil, workspace.NewRegistry("", time.Hour), &recordingRunner{}, "q", 1)

	assert.ErrorIs(t, w.Handle(context.Background(), []byte("{")), errMalformedJob)
	assert.ErrorIs(t, w.Handle(context.Background(), []byte(`{"document":{}}`)), errMalformedJob)
}
