// Package scheduler runs the background sweep that picks up pending
// documents and pushes them through chunking and embedding.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docent/internal/interfaces"
	"github.com/ternarybob/docent/internal/models"
)

// Processor reprocesses one document. Satisfied by the document service.
type Processor interface {
	Reprocess(ctx context.Context, documentID, ownerID string) (*models.Document, error)
}

// Service sweeps pending documents on a cron schedule
type Service struct {
	storage   interfaces.DocumentStorage
	processor Processor
	schedule  string
	limit     int
	cron      *cron.Cron
	logger    arbor.ILogger

	mu       sync.Mutex // prevents overlapping sweeps
	sweeping bool
	running  bool
}

// NewService creates the processing sweep scheduler. schedule is a six-field
// cron expression (with seconds); limit caps documents per sweep.
func NewService(storage interfaces.DocumentStorage, processor Processor, schedule string, limit int, logger arbor.ILogger) *Service {
	if limit <= 0 {
		limit = 100
	}
	return &Service{
		storage:   storage,
		processor: processor,
		schedule:  schedule,
		limit:     limit,
		cron:      cron.New(cron.WithSeconds()),
		logger:    logger,
	}
}

// Start registers the sweep and starts the cron runner
func (s *Service) Start() error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if _, err := s.cron.AddFunc(s.schedule, s.Sweep); err != nil {
		return fmt.Errorf("invalid processing schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().
		Str("schedule", s.schedule).
		Int("limit", s.limit).
		Msg("Processing sweep scheduled")
	return nil
}

// Stop halts the cron runner and waits for an in-flight sweep to finish
func (s *Service) Stop() {
	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Timed out waiting for processing sweep to finish")
	}
	s.running = false
	s.logger.Info().Msg("Processing sweep stopped")
}

// Sweep processes up to limit pending documents. Overlapping invocations are
// skipped; a failed document does not block the rest of the batch.
func (s *Service) Sweep() {
	s.mu.Lock()
	if s.sweeping {
		s.mu.Unlock()
		s.logger.Debug().Msg("Sweep already in progress, skipping")
		return
	}
	s.sweeping = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sweeping = false
		s.mu.Unlock()
	}()

	docs, err := s.storage.ListDocumentsByStatus(models.DocumentStatusPending, s.limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list pending documents")
		return
	}
	if len(docs) == 0 {
		return
	}

	s.logger.Info().Int("pending", len(docs)).Msg("Sweeping pending documents")

	processed := 0
	for _, doc := range docs {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		_, err := s.processor.Reprocess(ctx, doc.ID, doc.OwnerID)
		cancel()
		if err != nil {
			s.logger.Warn().Err(err).Str("doc_id", doc.ID).Msg("Sweep processing failed for document")
			continue
		}
		processed++
	}

	s.logger.Info().
		Int("processed", processed).
		Int("total", len(docs)).
		Msg("Processing sweep complete")
}
