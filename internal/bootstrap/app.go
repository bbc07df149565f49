package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"stratagem-ai/internal/ai"
	appsvc "stratagem-ai/internal/app"
	"stratagem-ai/internal/attachment"
	"stratagem-ai/internal/config"
	rabbitmqClient "stratagem-ai/internal/platform/rabbitmq"
	redisClient "stratagem-ai/internal/platform/redis"
	"stratagem-ai/internal/render"
	"stratagem-ai/internal/worker"
	"stratagem-ai/internal/workspace"
)

type App struct {
	Config   *config.Config
	Sessions *workspace.Registry
	Renderer *render.Renderer
	Encoder  *attachment.Encoder
	Chat     *appsvc.ChatService
	Analysis *appsvc.AnalysisService

	// Optional infrastructure; nil when disabled.
	Redis          *redis.Client
	MQConn         *amqp.Connection
	AnalysisWorker *worker.AnalysisWorker

	StartedAt time.Time

	stopSweeper context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return Build(ctx, cfg, nil)
}

// Build wires the application from cfg. A nil model client is created from
// the llm section.
func Build(ctx context.Context, cfg *config.Config, client ai.Client) (*App, error) {
	if client == nil {
		var err error
		client, err = ai.NewClient(ctx, ChatConfig(cfg.LLM))
		if err != nil {
			return nil, fmt.Errorf("create llm client failed: %w", err)
		}
	}

	renderer, err := render.NewRenderer()
	if err != nil {
		return nil, err
	}

	welcome := cfg.Chat.Welcome
	if welcome == "" {
		welcome = ai.WelcomeMessage
	}
	a := &App{
		Config:    cfg,
		Sessions:  workspace.NewRegistry(welcome, cfg.Chat.IdleTTL()),
		Renderer:  renderer,
		Encoder:   attachment.NewEncoder(cfg.Chat.MaxAttachmentBytes),
		Analysis:  appsvc.NewAnalysisService(client),
		StartedAt: time.Now(),
	}

	var dispatcher appsvc.AnalysisDispatcher = appsvc.NewInlineDispatcher(a.Analysis)
	if cfg.RabbitMQ.Enabled {
		a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		a.AnalysisWorker = worker.NewAnalysisWorker(a.MQConn, a.Sessions, a.Analysis, cfg.RabbitMQ.AnalysisQueue, cfg.RabbitMQ.Prefetch)
		if err := a.AnalysisWorker.Start(ctx); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("start analysis worker failed: %w", err)
		}
		dispatcher = appsvc.NewQueueDispatcher(a.Analysis, rabbitmqClient.NewAnalysisPublisher(a.MQConn, cfg.RabbitMQ.AnalysisQueue))
	}

	if cfg.Redis.Enabled {
		a.Redis, err = redisClient.New(ctx, cfg.Redis)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	a.Chat = appsvc.NewChatService(a.Sessions, client, dispatcher, a.Encoder)

	sweepCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.stopSweeper = cancel
	go a.Sessions.Run(sweepCtx, cfg.Chat.SweepInterval())

	return a, nil
}

func ChatConfig(cfg config.LLMConfig) ai.ChatConfig {
	return ai.ChatConfig{
		Provider:          cfg.Provider,
		BaseURL:           cfg.BaseURL,
		APIKey:            cfg.APIKey,
		Model:             cfg.Model,
		Temperature:       float32(cfg.Temperature),
		SystemInstruction: cfg.SystemInstruction(),
	}
}

func (a *App) Close() error {
	var closeErr error
	if a.stopSweeper != nil {
		a.stopSweeper()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.AnalysisWorker != nil {
		a.AnalysisWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	return closeErr
}
