package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/models"
	"github.com/danielkropka/social-flow-sub001/internal/store"
	"github.com/danielkropka/social-flow-sub001/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultAuditBufferSize = 1000
	auditBatchSize         = 100
	auditFlushInterval     = time.Second
)

// AuditLogEntry represents the data needed to create an audit log entry
type AuditLogEntry struct {
	EventType    models.EventType
	Severity     models.EventSeverity
	ActorUserID  string
	ActorIP      string
	ResourceType models.ResourceType
	ResourceID   string
	Provider     models.Provider
	Action       string
	Details      models.AuditDetails
	Success      bool
	ErrorMessage string
}

// AuditLogger is the write side of the audit trail used by other services.
type AuditLogger interface {
	Log(ctx context.Context, entry AuditLogEntry)
}

// AuditService handles audit logging operations
type AuditService struct {
	store   *store.Store
	enabled bool
	log     *zap.Logger

	// Async logging channel
	logChan chan *models.AuditLog

	// Batch buffer
	batchBuffer []*models.AuditLog
	batchMutex  sync.Mutex
	batchTicker *time.Ticker

	// Graceful shutdown
	wg         sync.WaitGroup
	shutdownCh chan struct{}
	closeOnce  sync.Once
}

// NewAuditService creates a new audit service
func NewAuditService(s *store.Store, enabled bool, bufferSize int, log *zap.Logger) *AuditService {
	if bufferSize <= 0 {
		bufferSize = defaultAuditBufferSize
	}
	if log == nil {
		log = zap.NewNop()
	}

	service := &AuditService{
		store:       s,
		enabled:     enabled,
		log:         log.With(zap.String("component", "audit")),
		logChan:     make(chan *models.AuditLog, bufferSize),
		batchBuffer: make([]*models.AuditLog, 0, auditBatchSize),
		shutdownCh:  make(chan struct{}),
	}

	if enabled {
		service.batchTicker = time.NewTicker(auditFlushInterval)
		service.wg.Add(1)
		go service.worker()
		service.log.Info("audit service started", zap.Int("buffer_size", bufferSize))
	} else {
		service.log.Info("audit service is disabled")
	}

	return service
}

// worker is the background goroutine that processes audit logs
func (s *AuditService) worker() {
	defer s.wg.Done()

	for {
		select {
		case entry := <-s.logChan:
			s.addToBatch(entry)

		case <-s.batchTicker.C:
			s.flushBatch()

		case <-s.shutdownCh:
			// Drain what is already queued before the final flush.
			for {
				select {
				case entry := <-s.logChan:
					s.addToBatch(entry)
				default:
					s.flushBatch()
					return
				}
			}
		}
	}
}

// addToBatch adds a log entry to the batch buffer
func (s *AuditService) addToBatch(entry *models.AuditLog) {
	s.batchMutex.Lock()
	defer s.batchMutex.Unlock()

	s.batchBuffer = append(s.batchBuffer, entry)
	if len(s.batchBuffer) >= auditBatchSize {
		s.flushBatchUnsafe()
	}
}

// flushBatch flushes the batch buffer to the database (thread-safe)
func (s *AuditService) flushBatch() {
	s.batchMutex.Lock()
	defer s.batchMutex.Unlock()
	s.flushBatchUnsafe()
}

// flushBatchUnsafe flushes the batch buffer without locking (caller must hold lock)
func (s *AuditService) flushBatchUnsafe() {
	if len(s.batchBuffer) == 0 {
		return
	}

	toWrite := make([]*models.AuditLog, len(s.batchBuffer))
	copy(toWrite, s.batchBuffer)
	s.batchBuffer = s.batchBuffer[:0]

	if err := s.store.CreateAuditLogBatch(context.Background(), toWrite); err != nil {
		s.log.Error("failed to write audit log batch",
			zap.Int("entries", len(toWrite)),
			zap.Error(err))
	}
}

func (s *AuditService) buildLog(ctx context.Context, entry AuditLogEntry) *models.AuditLog {
	if entry.ActorIP == "" {
		entry.ActorIP = util.GetIPFromContext(ctx)
	}
	if entry.ActorUserID == "" {
		entry.ActorUserID = util.GetUserIDFromContext(ctx)
	}
	if entry.Severity == "" {
		entry.Severity = models.SeverityInfo
	}

	now := time.Now()
	return &models.AuditLog{
		ID:           uuid.New().String(),
		EventType:    entry.EventType,
		EventTime:    now,
		Severity:     entry.Severity,
		ActorUserID:  entry.ActorUserID,
		ActorIP:      entry.ActorIP,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Provider:     entry.Provider,
		Action:       entry.Action,
		Details:      maskSensitiveDetails(entry.Details),
		Success:      entry.Success,
		ErrorMessage: entry.ErrorMessage,
		CreatedAt:    now,
	}
}

// Log records an audit log entry asynchronously
func (s *AuditService) Log(ctx context.Context, entry AuditLogEntry) {
	if !s.enabled {
		return
	}

	auditLog := s.buildLog(ctx, entry)

	select {
	case s.logChan <- auditLog:
	default:
		s.log.Warn("audit log buffer full, dropping event",
			zap.String("event_type", string(entry.EventType)),
			zap.String("action", entry.Action))
	}
}

// ResourceHistory returns the newest audit entries for one resource.
func (s *AuditService) ResourceHistory(
	ctx context.Context,
	resourceType models.ResourceType,
	resourceID string,
	limit int,
) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListAuditLogsForResource(ctx, resourceType, resourceID, limit)
}

// CleanupOldLogs deletes audit logs older than the retention period
func (s *AuditService) CleanupOldLogs(ctx context.Context, retention time.Duration) (int64, error) {
	return s.store.DeleteOldAuditLogs(ctx, time.Now().Add(-retention))
}

// Shutdown flushes pending entries and stops the worker.
func (s *AuditService) Shutdown(ctx context.Context) error {
	if !s.enabled {
		return nil
	}

	s.closeOnce.Do(func() {
		s.batchTicker.Stop()
		close(s.shutdownCh)
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("audit service shut down gracefully")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit service shutdown timeout: %w", ctx.Err())
	}
}

// maskSensitiveDetails masks sensitive information in audit log details
func maskSensitiveDetails(details models.AuditDetails) models.AuditDetails {
	if details == nil {
		return details
	}

	masked := make(models.AuditDetails, len(details))
	for key, value := range details {
		if isSensitiveField(key) {
			masked[key] = "***REDACTED***"
			continue
		}

		if isPartialMaskField(key) {
			if str, ok := value.(string); ok && len(str) > 12 {
				masked[key] = str[:8] + "..." + str[len(str)-4:]
				continue
			}
		}

		masked[key] = value
	}

	return masked
}

// isSensitiveField checks if a field should be completely masked
func isSensitiveField(key string) bool {
	key = strings.ToLower(key)
	sensitiveFields := []string{
		"password",
		"secret",
		"access_token",
		"refresh_token",
		"verifier",
		"authorization_code",
	}

	for _, field := range sensitiveFields {
		if strings.Contains(key, field) {
			return true
		}
	}
	return false
}

// isPartialMaskField checks if a field should be partially masked
func isPartialMaskField(key string) bool {
	key = strings.ToLower(key)
	partialMaskFields := []string{
		"handshake_token",
		"state",
	}

	for _, field := range partialMaskFields {
		if strings.Contains(key, field) {
			return true
		}
	}
	return false
}
