package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"

	shared "github.com/ripixel/fitglue-vision/pkg"
	"github.com/ripixel/fitglue-vision/pkg/ai"
	"github.com/ripixel/fitglue-vision/pkg/ai/gemini"
	"github.com/ripixel/fitglue-vision/pkg/ai/vertex"
	"github.com/ripixel/fitglue-vision/pkg/analysis"
	"github.com/ripixel/fitglue-vision/pkg/extraction"
	"github.com/ripixel/fitglue-vision/pkg/imaging"
	"github.com/ripixel/fitglue-vision/pkg/infrastructure/database"
	"github.com/ripixel/fitglue-vision/pkg/infrastructure/notifications"
	infrapubsub "github.com/ripixel/fitglue-vision/pkg/infrastructure/pubsub"
	"github.com/ripixel/fitglue-vision/pkg/infrastructure/secrets"
	infrastorage "github.com/ripixel/fitglue-vision/pkg/infrastructure/storage"
	"github.com/ripixel/fitglue-vision/pkg/telemetry"
)

// Pipeline is the extraction stack shared by every request in a process.
type Pipeline struct {
	Client       *ai.Client
	Orchestrator *extraction.Orchestrator
	Analyzer     *analysis.Analyzer
	Metrics      *telemetry.PrometheusRecorder
}

// NewPipeline wires one rate-limited client into the orchestrator and the analyzer.
func NewPipeline(cfg *Config, store shared.BlobStore, gen ai.Generator, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	metrics := telemetry.NewPrometheusRecorder()

	client := ai.NewClient(gen, cfg.ClientOptions(), logger)
	client.OnAttempt(metrics.ObserveAttempt)

	composer := cfg.Composer()
	images := imaging.NewPreprocessor(store, cfg.ImageOptions(), logger)
	orch := extraction.NewOrchestrator(images, client, logger,
		extraction.WithComposer(composer),
		extraction.WithRecorder(telemetry.Multi{telemetry.NewLogRecorder(logger), metrics}),
	)

	return &Pipeline{
		Client:       client,
		Orchestrator: orch,
		Analyzer:     analysis.NewAnalyzer(client, composer, logger),
		Metrics:      metrics,
	}
}

// NewGenerator builds the backend named by cfg.AI.Backend. The Gemini API key
// is read through secretStore.
func NewGenerator(ctx context.Context, cfg *Config, secretStore shared.SecretStore) (ai.Generator, error) {
	switch cfg.AI.Backend {
	case "", gemini.BackendName:
		key, err := secretStore.GetSecret(ctx, cfg.ProjectID, cfg.AI.APIKeySecret)
		if err != nil {
			return nil, fmt.Errorf("gemini api key: %w", err)
		}
		return gemini.New(ctx, key, cfg.AI.Model)
	case vertex.BackendName:
		return vertex.New(ctx, cfg.ProjectID, cfg.AI.Location, cfg.AI.Model)
	}
	return nil, fmt.Errorf("unknown AI_BACKEND %q", cfg.AI.Backend)
}

// Service holds initialized dependencies
type Service struct {
	DB            shared.Database
	Store         shared.BlobStore
	Pub           shared.Publisher
	Secrets       shared.SecretStore
	Notifications shared.NotificationService
	Config        *Config
	*Pipeline

	closers []io.Closer
}

// Close releases every client opened by NewService.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewService initializes all standard dependencies
func NewService(ctx context.Context) (*Service, error) {
	InitLogger()
	cfg := LoadConfig()
	logger := slog.Default()

	logger.Info("Initializing service", "project_id", cfg.ProjectID, "ai_backend", cfg.AI.Backend)
	svc := &Service{Config: cfg, Secrets: &secrets.SecretsAdapter{}}

	// Firestore
	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Error("Firestore init failed", "error", err)
		return nil, fmt.Errorf("firestore init: %w", err)
	}
	svc.closers = append(svc.closers, fsClient)
	svc.DB = database.NewFirestoreAdapter(fsClient)

	// Pub/Sub
	if cfg.EnablePublish {
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Error("PubSub init failed", "error", err)
			svc.Close()
			return nil, fmt.Errorf("pubsub init: %w", err)
		}
		svc.closers = append(svc.closers, psClient)
		svc.Pub = &infrapubsub.PubSubAdapter{Client: psClient, Logger: logger}
		logger.Info("Pub/Sub: REAL (ENABLE_PUBLISH=true)")
	} else {
		svc.Pub = &infrapubsub.LogPublisher{Logger: logger}
		logger.Info("Pub/Sub: MOCK (LogPublisher)")
	}
	svc.Notifications = notifications.NewPubSubNotifier(svc.Pub, cfg.NotifyTopic, logger)

	// Storage
	gcsClient, err := storage.NewClient(ctx)
	if err != nil {
		logger.Error("Storage init failed", "error", err)
		svc.Close()
		return nil, fmt.Errorf("storage init: %w", err)
	}
	svc.closers = append(svc.closers, gcsClient)
	svc.Store = &infrastorage.StorageAdapter{Client: gcsClient}

	// AI backend
	gen, err := NewGenerator(ctx, cfg, svc.Secrets)
	if err != nil {
		logger.Error("AI backend init failed", "error", err)
		svc.Close()
		return nil, fmt.Errorf("ai init: %w", err)
	}
	if c, ok := gen.(io.Closer); ok {
		svc.closers = append(svc.closers, c)
	}

	svc.Pipeline = NewPipeline(cfg, svc.Store, gen, logger)
	return svc, nil
}
