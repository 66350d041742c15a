package service

import (
	"context"
	"sync"
	"time"

	"purposepay/internal/core/domain"
	"purposepay/internal/core/ports"

	"github.com/rs/zerolog"
)

const (
	auditQueueSize      = 256
	auditPersistTimeout = 5 * time.Second
)

// AuditService logs every audited write and hands it to a single worker
// that persists it. Log never blocks the request: when the queue is full
// the entry is still logged but not stored.
type AuditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan *domain.AuditLog
	done   chan struct{}
}

// NewAuditService starts the persistence worker. With a nil repo entries
// only reach the logger.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) *AuditService {
	s := &AuditService{
		repo:  repo,
		log:   log,
		queue: make(chan *domain.AuditLog, auditQueueSize),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *AuditService) Log(_ context.Context, entry *domain.AuditLog) {
	ev := s.log.Info().
		Str("action", string(entry.Action)).
		Str("resource_type", entry.ResourceType).
		Str("resource_id", entry.ResourceID).
		Str("ip", entry.IPAddress)
	if entry.ActorID != nil {
		ev = ev.Str("actor_id", entry.ActorID.String())
	}
	ev.Msg("audit")

	if s.repo == nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- entry:
	default:
		s.log.Warn().Str("action", string(entry.Action)).Msg("Audit queue full, entry not persisted")
	}
}

// Close stops accepting entries and waits for queued ones to be written.
func (s *AuditService) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *AuditService) run() {
	defer close(s.done)
	for entry := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), auditPersistTimeout)
		if err := s.repo.Create(ctx, entry); err != nil {
			s.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("Failed to persist audit log")
		}
		cancel()
	}
}
