package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"stratagem-ai/internal/model"
)

type AnalysisPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewAnalysisPublisher(conn *amqp.Connection, queueName string) *AnalysisPublisher {
	return &AnalysisPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *AnalysisPublisher) Publish(ctx context.Context, job model.AnalysisJob) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	publishing, err := EncodeJob(job)
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx, "", p.queueName, false, false, publishing); err != nil {
		return fmt.Errorf("publish analysis job failed: %w", err)
	}
	return nil
}

// EncodeJob builds the message body. Jobs are transient: sessions do not
// survive a restart, so neither should their analyses.
func EncodeJob(job model.AnalysisJob) (amqp.Publishing, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal analysis job failed: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         payload,
		DeliveryMode: amqp.Transient,
		Timestamp:    job.RequestedAt,
		Type:         "analysis",
	}, nil
}

func DecodeJob(body []byte) (model.AnalysisJob, error) {
	var job model.AnalysisJob
	if err := json.Unmarshal(body, &job); err != nil {
		return model.AnalysisJob{}, fmt.Errorf("decode analysis job failed: %w", err)
	}
	if job.SessionID == "" {
		return model.AnalysisJob{}, fmt.Errorf("decode analysis job failed: missing session id")
	}
	return job, nil
}
