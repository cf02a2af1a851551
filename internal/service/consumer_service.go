package service

import (
	"context"
	"fmt"

	"github.com/alimkdd/retry-engine/internal/observability"
	"github.com/alimkdd/retry-engine/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// ConsumerService runs the retry worker pool over the work queue.
type ConsumerService struct {
	consumer     queue.Consumer
	orchestrator *RetryOrchestrator
	logger       *zap.Logger
	metrics      *observability.Metrics
	concurrency  int
}

func NewConsumerService(
	consumer queue.Consumer,
	orchestrator *RetryOrchestrator,
	concurrency int,
	logger *zap.Logger,
) (*ConsumerService, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ConsumerService{
		consumer:     consumer,
		orchestrator: orchestrator,
		logger:       logger,
		concurrency:  concurrency,
	}, nil
}

func (s *ConsumerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start consumes the retry queue with the configured worker count until
// context cancellation.
func (s *ConsumerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("retry worker started", zap.Int("workerId", workerID))

			err := s.consumer.Consume(groupCtx, s.processMessage)
			if err != nil {
				s.logger.Error("retry worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("retry worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (s *ConsumerService) processMessage(ctx context.Context, msg queue.RetryMessage) error {
	correlationID := msg.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx = observability.WithCorrelationID(ctx, correlationID)

	if s.metrics != nil {
		s.metrics.IncWorkerInFlight()
		defer s.metrics.DecWorkerInFlight()
	}

	return s.orchestrator.ProcessRetry(ctx, msg)
}
