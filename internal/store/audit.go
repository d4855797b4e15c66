package store

import (
	"context"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/models"
)

// CreateAuditLogBatch writes entries in one statement
func (s *Store) CreateAuditLogBatch(ctx context.Context, logs []*models.AuditLog) error {
	if len(logs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(logs, 100).Error
}

// ListAuditLogsForResource returns the newest entries for one resource
func (s *Store) ListAuditLogsForResource(
	ctx context.Context,
	resourceType models.ResourceType,
	resourceID string,
	limit int,
) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := s.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("event_time DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// DeleteOldAuditLogs removes entries created before cutoff
func (s *Store) DeleteOldAuditLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	return res.RowsAffected, res.Error
}
