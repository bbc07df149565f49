package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"stratagem-ai/internal/attachment"
	"stratagem-ai/internal/interpret"
	"stratagem-ai/internal/model"
	"stratagem-ai/internal/workspace"
)

type DocumentModel interface {
	AnalyzeDocument(ctx context.Context, doc model.Attachment) (string, error)
}

// AnalysisService drives the document-analysis side panel.
type AnalysisService struct {
	model DocumentModel
}

func NewAnalysisService(m DocumentModel) *AnalysisService {
	return &AnalysisService{model: m}
}

// Analyze asks the model for a structured reading of one document. Transport
// failures are returned; an unparseable reply becomes model.AnalysisFailed.
func (s *AnalysisService) Analyze(ctx context.Context, fileName, fileData, fileType string) (model.StructuredResponse, error) {
	raw, err := s.model.AnalyzeDocument(ctx, model.Attachment{Name: fileName, Type: fileType, Data: fileData})
	if err != nil {
		return model.StructuredResponse{}, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	resp, err := interpret.Parse(raw)
	if err != nil {
		log.Printf("parse analysis result for %q failed: %v", fileName, err)
		return model.AnalysisFailed(), nil
	}
	return resp, nil
}

// Begin flips the panel into its loading state.
func (s *AnalysisService) Begin(sess *workspace.Session, doc model.Attachment) {
	sess.Apply(workspace.AnalysisStarted(doc.Name))
}

// Run analyzes doc and always settles the panel, even on failure. Callers
// must have called Begin for the same document.
func (s *AnalysisService) Run(ctx context.Context, sess *workspace.Session, doc model.Attachment) (model.StructuredResponse, error) {
	resp, err := s.Analyze(ctx, doc.Name, doc.Data, doc.Type)
	if err != nil {
		log.Printf("analyze document %q failed: %v", doc.Name, err)
		s.Abort(sess, doc)
		return model.StructuredResponse{}, err
	}
	sess.Apply(workspace.AnalysisSettled(doc.Name, &resp))
	return resp, nil
}

// Abort settles a begun analysis without a result.
func (s *AnalysisService) Abort(sess *workspace.Session, doc model.Attachment) {
	sess.Apply(workspace.AnalysisSettled(doc.Name, nil))
}

// AnalyzeAttachment runs a panel-only analysis and waits for it.
func (s *AnalysisService) AnalyzeAttachment(ctx context.Context, sess *workspace.Session, doc model.Attachment) (model.StructuredResponse, error) {
	if !attachment.IsDocument(doc) {
		return model.StructuredResponse{}, ErrNotDocument
	}
	s.Begin(sess, doc)
	return s.Run(ctx, sess, doc)
}

// InlineDispatcher runs each analysis in its own goroutine in this process.
type InlineDispatcher struct {
	analysis *AnalysisService
}

func NewInlineDispatcher(analysis *AnalysisService) *InlineDispatcher {
	return &InlineDispatcher{analysis: analysis}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, sess *workspace.Session, doc model.Attachment) {
	d.analysis.Begin(sess, doc)
	go func() {
		_, _ = d.analysis.Run(context.WithoutCancel(ctx), sess, doc)
	}()
}

type JobPublisher interface {
	Publish(ctx context.Context, job model.AnalysisJob) error
}

// QueueDispatcher hands analyses to a worker through a broker. The panel is
// put into its loading state here; the worker settles it.
type QueueDispatcher struct {
	analysis  *AnalysisService
	publisher JobPublisher
	now       func() time.Time
}

func NewQueueDispatcher(analysis *AnalysisService, publisher JobPublisher) *QueueDispatcher {
	return &QueueDispatcher{analysis: analysis, publisher: publisher, now: time.Now}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, sess *workspace.Session, doc model.Attachment) {
	d.analysis.Begin(sess, doc)
	job := model.AnalysisJob{SessionID: sess.ID(), Document: doc, RequestedAt: d.now()}
	go func() {
		if err := d.publisher.Publish(context.WithoutCancel(ctx), job); err != nil {
			log.Printf("enqueue analysis of %q for session %s failed: %v", doc.Name, sess.ID(), err)
			d.analysis.Abort(sess, doc)
		}
	}()
}
