// Package audit records decisions and administrative changes off the
// request path. Events are queued on a bounded channel and written by a
// small worker pool; a full queue drops the event rather than slowing an
// authorization down.
package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/models"
	"github.com/upb/card-control-plane/repositories"
)

// AuditEvent is a queued audit log entry
type AuditEvent struct {
	Log      *models.AuditLog
	Enqueued time.Time
}

// AuditService handles asynchronous audit logging
type AuditService struct {
	auditRepo   repositories.AuditRepository
	logger      *zap.Logger
	eventChan   chan *AuditEvent
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	mu          sync.RWMutex
	started     bool
	stopped     bool

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  10000,
		WorkerCount: 5,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config) *AuditService {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuditService{
		auditRepo:   auditRepo,
		logger:      logger,
		eventChan:   make(chan *AuditEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop closes the queue and waits up to timeout for pending events to be
// written. Events logged after Stop are rejected.
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("audit service not running")
	}
	s.stopped = true
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent queues an event without blocking. A full buffer drops the event.
func (s *AuditService) LogEvent(event *AuditEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		return fmt.Errorf("audit service not running")
	}

	if event.Enqueued.IsZero() {
		event.Enqueued = time.Now()
	}

	select {
	case s.eventChan <- event:
		return nil
	default:
		s.dropped.Add(1)
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", string(event.Log.Action)),
			zap.String("resource_type", event.Log.ResourceType))
		return fmt.Errorf("audit event buffer full")
	}
}

func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		if err := s.processEvent(event); err != nil {
			s.failed.Add(1)
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(event.Log.Action)))
			continue
		}
		s.written.Add(1)
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

func (s *AuditService) processEvent(event *AuditEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, event.Log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	s.logger.Debug("audit event written",
		zap.String("action", string(event.Log.Action)),
		zap.Duration("queue_lag", time.Since(event.Enqueued)))
	return nil
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int   `json:"buffer_size"`
	PendingEvents int   `json:"pending_events"`
	WorkerCount   int   `json:"worker_count"`
	Started       bool  `json:"started"`
	Written       int64 `json:"written"`
	Dropped       int64 `json:"dropped"`
	Failed        int64 `json:"failed"`
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started && !s.stopped,
		Written:       s.written.Load(),
		Dropped:       s.dropped.Load(),
		Failed:        s.failed.Load(),
	}
}

// LogDecision queues an authorization decision record
func (s *AuditService) LogDecision(log *models.AuditLog) error {
	return s.LogEvent(&AuditEvent{Log: log})
}

// LogPolicyCreated logs a policy creation event
func (s *AuditService) LogPolicyCreated(policy *models.Policy, requestID string) error {
	log := models.NewAuditLog(&policy.OrgID, models.AuditActionPolicyCreated, "policy").
		WithResource(policy.ID).
		WithRequest(requestID).
		WithDetails(map[string]interface{}{
			"name":       policy.Name,
			"expression": policy.Expression,
			"priority":   policy.Priority,
			"is_active":  policy.IsActive,
		})

	return s.LogEvent(&AuditEvent{Log: log})
}

// LogPolicyUpdated logs a policy update event
func (s *AuditService) LogPolicyUpdated(policy *models.Policy, requestID string, changes map[string]interface{}) error {
	log := models.NewAuditLog(&policy.OrgID, models.AuditActionPolicyUpdated, "policy").
		WithResource(policy.ID).
		WithRequest(requestID).
		WithDetails(map[string]interface{}{
			"name":    policy.Name,
			"changes": changes,
		})

	return s.LogEvent(&AuditEvent{Log: log})
}

// LogPolicyDeleted logs a policy deletion event
func (s *AuditService) LogPolicyDeleted(orgID, policyID uuid.UUID, requestID string) error {
	log := models.NewAuditLog(&orgID, models.AuditActionPolicyDeleted, "policy").
		WithResource(policyID).
		WithRequest(requestID)

	return s.LogEvent(&AuditEvent{Log: log})
}

// LogBudgetChange logs a change to a budget under action
func (s *AuditService) LogBudgetChange(budget *models.Budget, action models.AuditAction, requestID string) error {
	log := models.NewAuditLog(&budget.OrgID, action, "budget").
		WithResource(budget.ID).
		WithRequest(requestID).
		WithDetails(map[string]interface{}{
			"category":        budget.Category,
			"amount_cents":    budget.Amount,
			"period":          budget.Period,
			"alert_threshold": budget.AlertThreshold,
		})

	return s.LogEvent(&AuditEvent{Log: log})
}

// LogTransactionCorrected logs a manual status correction
func (s *AuditService) LogTransactionCorrected(txn *models.Transaction, previous models.TxnStatus, requestID string) error {
	log := models.NewAuditLog(txn.OrgID, models.AuditActionTransactionCorrected, "transaction").
		WithResource(txn.ID).
		WithRequest(requestID).
		WithDetails(map[string]interface{}{
			"authorization_id": txn.AuthorizationID,
			"from":             previous,
			"to":               txn.Status,
			"reason":           txn.Reason,
		})

	return s.LogEvent(&AuditEvent{Log: log})
}

// LogSimulationRun logs a simulation run for an organization
func (s *AuditService) LogSimulationRun(orgID uuid.UUID, industry string, generated int, requestID string) error {
	log := models.NewAuditLog(&orgID, models.AuditActionSimulationRun, "simulation").
		WithRequest(requestID).
		WithDetails(map[string]interface{}{
			"industry":  industry,
			"generated": generated,
		})

	return s.LogEvent(&AuditEvent{Log: log})
}
