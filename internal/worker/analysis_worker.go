package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"stratagem-ai/internal/model"
	"stratagem-ai/internal/platform/rabbitmq"
	"stratagem-ai/internal/workspace"
)

var errMalformedJob = errors.New("malformed analysis job")

type SessionLookup interface {
	Get(id string) (*workspace.Session, bool)
}

type AnalysisRunner interface {
	Run(ctx context.Context, sess *workspace.Session, doc model.Attachment) (model.StructuredResponse, error)
}

// AnalysisWorker consumes analysis jobs. Prefetch bounds how many documents
// are analyzed at once.
type AnalysisWorker struct {
	conn      *amqp.Connection
	sessions  SessionLookup
	runner    AnalysisRunner
	queueName string
	prefetch  int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAnalysisWorker(conn *amqp.Connection, sessions SessionLookup, runner AnalysisRunner, queueName string, prefetch int) *AnalysisWorker {
	if prefetch <= 0 {
		prefetch = 1
	}
	return &AnalysisWorker{
		conn:      conn,
		sessions:  sessions,
		runner:    runner,
		queueName: queueName,
		prefetch:  prefetch,
	}
}

func (w *AnalysisWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := ch.Qos(w.prefetch, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker prefetch failed: %w", err)
	}

	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	sem := make(chan struct{}, w.prefetch)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				sem <- struct{}{}
				w.wg.Add(1)
				go func(d amqp.Delivery) {
					defer w.wg.Done()
					defer func() { <-sem }()
					if err := w.Handle(workerCtx, d.Body); err != nil {
						log.Printf("worker handle analysis job failed: %v", err)
						_ = d.Nack(false, false)
						return
					}
					_ = d.Ack(false)
				}(d)
			}
		}
	}()

	return nil
}

// Handle runs one job. A job whose session has already been swept is dropped
// quietly; only undecodable jobs are reported as errors.
func (w *AnalysisWorker) Handle(ctx context.Context, body []byte) error {
	job, err := rabbitmq.DecodeJob(body)
	if err != nil {
		return fmt.Errorf("%w: %v", errMalformedJob, err)
	}
	sess, ok := w.sessions.Get(job.SessionID)
	if !ok {
		log.Printf("worker drop analysis of %q: session %s is gone", job.Document.Name, job.SessionID)
		return nil
	}
	// Run settles the panel itself on failure.
	_, _ = w.runner.Run(ctx, sess, job.Document)
	return nil
}

func (w *AnalysisWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
