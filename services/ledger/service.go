// Package ledger persists authorization outcomes, card spend and budget
// spend. A record and its spend increments commit together, keyed on the
// network authorization id so replays never double count. Writes that fail
// on the request path are retried by a pool of workers from a bounded
// in-memory queue.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/models"
	"github.com/upb/card-control-plane/repositories"
	"github.com/upb/card-control-plane/services"
)

// Config holds the retry queue settings
type Config struct {
	Workers      int           // concurrent retry workers
	RetryBuffer  int           // queued writes before new failures are dropped
	MaxAttempts  int           // attempts per queued write, including the first retry
	RetryBackoff time.Duration // delay before the first retry, doubled per attempt
	WriteTimeout time.Duration // bound on a single background write
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Workers:      4,
		RetryBuffer:  1000,
		MaxAttempts:  5,
		RetryBackoff: 200 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}

// Corrector receives manual status corrections for auditing.
type Corrector interface {
	LogTransactionCorrected(txn *models.Transaction, previous models.TxnStatus, requestID string) error
}

// Stats reports persistence and retry queue counters
type Stats struct {
	Pending    int   `json:"pending"`
	Buffer     int   `json:"buffer"`
	Recorded   int64 `json:"recorded"`
	Duplicates int64 `json:"duplicates"`
	Retried    int64 `json:"retried"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
	Alerts     int64 `json:"budget_alerts"`
	Workers    int   `json:"workers"`
}

// Service records transactions and card spend
type Service struct {
	txMgr   repositories.TransactionManager
	txns    repositories.TransactionRepository
	cards   repositories.CardRepository
	budgets repositories.BudgetRepository
	audit   Corrector
	logger  *zap.Logger
	config  Config

	// queued holds writes waiting in the retry queue by authorization id,
	// so a redelivery can be answered before the row exists.
	queued   map[string]*models.Transaction
	queuedMu sync.Mutex

	queue chan *models.Transaction
	done  chan struct{}
	wg    sync.WaitGroup
	mu    sync.RWMutex
	state int // 0 new, 1 running, 2 stopped

	recorded   atomic.Int64
	duplicates atomic.Int64
	retried    atomic.Int64
	failed     atomic.Int64
	dropped    atomic.Int64
	alerts     atomic.Int64
}

// NewService creates a ledger. budgets and audit may be nil.
func NewService(txMgr repositories.TransactionManager, txns repositories.TransactionRepository, cards repositories.CardRepository, budgets repositories.BudgetRepository, audit Corrector, logger *zap.Logger, config Config) *Service {
	defaults := DefaultConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.RetryBuffer <= 0 {
		config.RetryBuffer = defaults.RetryBuffer
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaults.RetryBackoff
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		txMgr:   txMgr,
		txns:    txns,
		cards:   cards,
		budgets: budgets,
		audit:   audit,
		logger:  logger.With(zap.String("component", "ledger")),
		config:  config,
		queued:  make(map[string]*models.Transaction),
		queue:   make(chan *models.Transaction, config.RetryBuffer),
		done:    make(chan struct{}),
	}
}

type recordResult struct {
	created bool
	alerts  []models.BudgetAlert
}

// Record stores the transaction and, when it is a newly recorded approval
// on a known card, adds its amount to the card's spend and to the
// organization's budgets for its category in the same database
// transaction. It reports whether a new row was written; a replayed
// authorization id returns false and changes nothing.
func (s *Service) Record(ctx context.Context, txn *models.Transaction) (bool, error) {
	res, err := services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) (recordResult, error) {
		created, err := s.txns.WithTx(tx).CreateIfAbsent(ctx, txn)
		if err != nil || !created {
			return recordResult{created: created}, err
		}
		if txn.Status != models.TxnStatusApproved || txn.CardID == nil {
			return recordResult{created: true}, nil
		}
		if err := s.cards.WithTx(tx).IncrementSpend(ctx, *txn.CardID, txn.Amount, txn.CreatedAt); err != nil {
			return recordResult{}, err
		}
		if s.budgets == nil || txn.OrgID == nil {
			return recordResult{created: true}, nil
		}
		alerts, err := s.budgets.WithTx(tx).AddSpend(ctx, *txn.OrgID, txn.Category, txn.Amount, txn.CreatedAt)
		if err != nil {
			return recordResult{}, err
		}
		return recordResult{created: true, alerts: alerts}, nil
	})
	if err != nil {
		return false, err
	}

	created := res.created
	if created {
		s.recorded.Add(1)
		for _, alert := range res.alerts {
			s.alerts.Add(1)
			s.logger.Warn("budget alert threshold reached",
				zap.String("org_id", alert.OrgID.String()),
				zap.String("budget_id", alert.BudgetID.String()),
				zap.String("category", alert.Category.String()),
				zap.String("period", string(alert.Period)),
				zap.String("spent", alert.Spent.String()),
				zap.String("amount", alert.Amount.String()),
				zap.Int("threshold_percent", alert.AlertThreshold))
		}
	} else {
		s.duplicates.Add(1)
		s.logger.Debug("authorization already recorded",
			zap.String("authorization_id", txn.AuthorizationID))
	}
	return created, nil
}

// Previous returns the outcome already recorded for an authorization id,
// including one still waiting in the retry queue. It returns nil when the
// id has not been decided before.
func (s *Service) Previous(ctx context.Context, authorizationID string) (*models.Transaction, error) {
	s.queuedMu.Lock()
	txn, ok := s.queued[authorizationID]
	s.queuedMu.Unlock()
	if ok {
		return txn, nil
	}

	txn, err := s.txns.GetByAuthorizationID(ctx, authorizationID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}
	return txn, nil
}

// RecordOrEnqueue tries Record within ctx and queues the write for
// background retry when it fails. It only errors when the write could not
// be queued either.
func (s *Service) RecordOrEnqueue(ctx context.Context, txn *models.Transaction) error {
	if _, err := s.Record(ctx, txn); err != nil {
		s.logger.Warn("failed to record transaction, queueing for retry",
			zap.String("authorization_id", txn.AuthorizationID),
			zap.Error(err))
		return s.Enqueue(txn)
	}
	return nil
}

// Enqueue hands a write to the retry workers without blocking
func (s *Service) Enqueue(txn *models.Transaction) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == 2 {
		s.dropped.Add(1)
		return services.ErrQueueFull.WithDetail("reason", "ledger stopped")
	}

	s.queuedMu.Lock()
	s.queued[txn.AuthorizationID] = txn
	s.queuedMu.Unlock()

	select {
	case s.queue <- txn:
		return nil
	default:
		s.forget(txn)
		s.dropped.Add(1)
		s.logger.Error("ledger retry queue full, dropping transaction",
			zap.String("authorization_id", txn.AuthorizationID))
		return services.ErrQueueFull
	}
}

// Start launches the retry workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != 0 {
		return fmt.Errorf("ledger already started")
	}
	s.state = 1

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.logger.Info("started ledger retry workers",
		zap.Int("worker_count", s.config.Workers),
		zap.Int("buffer", s.config.RetryBuffer),
		zap.Int("max_attempts", s.config.MaxAttempts))
	return nil
}

// Stop halts the retry workers. Writes still queued are logged and lost.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if s.state != 1 {
		s.mu.Unlock()
		return fmt.Errorf("ledger not running")
	}
	s.state = 2
	close(s.done)
	s.mu.Unlock()

	stopped := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(timeout):
		return fmt.Errorf("ledger stop timeout after %v", timeout)
	}

	if pending := len(s.queue); pending > 0 {
		s.logger.Error("ledger stopped with unrecorded transactions", zap.Int("pending", pending))
	}
	return nil
}

// Stats returns queue and persistence counters
func (s *Service) Stats() Stats {
	return Stats{
		Pending:    len(s.queue),
		Buffer:     cap(s.queue),
		Recorded:   s.recorded.Load(),
		Duplicates: s.duplicates.Load(),
		Retried:    s.retried.Load(),
		Failed:     s.failed.Load(),
		Dropped:    s.dropped.Load(),
		Alerts:     s.alerts.Load(),
		Workers:    s.config.Workers,
	}
}

func (s *Service) worker(id int) {
	defer s.wg.Done()
	s.logger.Debug("ledger retry worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-s.done:
			return
		case txn := <-s.queue:
			s.retry(txn)
		}
	}
}

// retry attempts a queued write with exponential backoff
func (s *Service) retry(txn *models.Transaction) {
	defer s.forget(txn)
	backoff := s.config.RetryBackoff

	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		select {
		case <-s.done:
			s.failed.Add(1)
			return
		case <-time.After(backoff):
		}

		s.retried.Add(1)
		ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		_, err := s.Record(ctx, txn)
		cancel()
		if err == nil {
			s.logger.Info("recorded transaction after retry",
				zap.String("authorization_id", txn.AuthorizationID),
				zap.Int("attempt", attempt))
			return
		}

		s.logger.Warn("ledger retry failed",
			zap.String("authorization_id", txn.AuthorizationID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		backoff *= 2
	}

	s.failed.Add(1)
	s.logger.Error("giving up on transaction",
		zap.String("authorization_id", txn.AuthorizationID),
		zap.Int("attempts", s.config.MaxAttempts))
}

func (s *Service) forget(txn *models.Transaction) {
	s.queuedMu.Lock()
	if s.queued[txn.AuthorizationID] == txn {
		delete(s.queued, txn.AuthorizationID)
	}
	s.queuedMu.Unlock()
}

// List returns an organization's transactions matching filter
func (s *Service) List(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, int, error) {
	txns, total, err := s.txns.List(ctx, filter)
	if err != nil {
		return nil, 0, services.ErrDatabaseError.Wrap(err)
	}
	if txns == nil {
		txns = []*models.Transaction{}
	}
	return txns, total, nil
}

// Get returns a transaction owned by orgID
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Transaction, error) {
	txn, err := s.txns.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrTransactionNotFound
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}
	if txn.OrgID == nil || *txn.OrgID != orgID {
		return nil, services.ErrTransactionNotFound
	}
	return txn, nil
}

// Correct overrides a transaction's status. A decline needs a reason;
// an approval clears it. Card spend is not adjusted.
func (s *Service) Correct(ctx context.Context, orgID, id uuid.UUID, status models.TxnStatus, reason, requestID string) (*models.Transaction, error) {
	if !status.IsValid() {
		return nil, services.ErrInvalidInput.WithDetail("status", "must be PENDING, APPROVED or DECLINED")
	}
	reason = strings.TrimSpace(reason)
	if status == models.TxnStatusDeclined && reason == "" {
		return nil, services.ErrReasonRequired
	}

	txn, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	previous := txn.Status

	var reasonPtr *string
	if status != models.TxnStatusApproved && reason != "" {
		reasonPtr = &reason
	}

	if err := s.txns.UpdateStatus(ctx, id, status, reasonPtr); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrTransactionNotFound
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}

	txn.Status = status
	txn.Reason = reasonPtr
	txn.UpdatedAt = time.Now()

	s.logger.Info("transaction corrected",
		zap.String("transaction_id", id.String()),
		zap.String("from", string(previous)),
		zap.String("to", string(status)))

	if s.audit != nil {
		_ = s.audit.LogTransactionCorrected(txn, previous, requestID)
	}
	return txn, nil
}

// Summary returns approved spend per budget category
func (s *Service) Summary(ctx context.Context, orgID uuid.UUID, start, end *time.Time) ([]models.CategorySpend, error) {
	spend, err := s.txns.SpendByCategory(ctx, orgID, start, end)
	if err != nil {
		return nil, services.ErrDatabaseError.Wrap(err)
	}
	if spend == nil {
		spend = []models.CategorySpend{}
	}
	return spend, nil
}
