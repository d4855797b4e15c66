package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of audit event
type EventType string

const (
	// Authentication events
	EventAuthenticationSuccess EventType = "AUTHENTICATION_SUCCESS"
	EventAuthenticationFailure EventType = "AUTHENTICATION_FAILURE"
	EventLogout                EventType = "LOGOUT"
	EventUserDisabled          EventType = "USER_DISABLED"
	EventUserEnabled           EventType = "USER_ENABLED"

	// Connect flow events
	EventConnectInitiated EventType = "CONNECT_INITIATED"
	EventAccountConnected EventType = "ACCOUNT_CONNECTED"
	EventConnectFailed    EventType = "CONNECT_FAILED"
	EventAccountRevoked   EventType = "ACCOUNT_DISCONNECTED"

	// Background refresh events
	EventStatsRefreshed         EventType = "STATS_REFRESHED"
	EventProviderTokenRefreshed EventType = "PROVIDER_TOKEN_REFRESHED"

	// Security events
	EventRateLimitExceeded EventType = "RATE_LIMIT_EXCEEDED"
)

// EventSeverity represents the severity level of an audit event
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "INFO"
	SeverityWarning  EventSeverity = "WARNING"
	SeverityError    EventSeverity = "ERROR"
	SeverityCritical EventSeverity = "CRITICAL"
)

// ResourceType represents the type of resource being operated on
type ResourceType string

const (
	ResourceUser             ResourceType = "USER"
	ResourceConnectedAccount ResourceType = "CONNECTED_ACCOUNT"
	ResourceHandshake        ResourceType = "HANDSHAKE"
)

// AuditDetails stores additional event-specific information as JSON
type AuditDetails map[string]any

// Value implements the driver.Valuer interface for database storage
func (a AuditDetails) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil //nolint:nilnil // nil driver.Value represents SQL NULL, which is valid here
	}
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for database retrieval
func (a *AuditDetails) Scan(value any) error {
	if value == nil {
		*a = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal AuditDetails value: %v", value)
	}

	result := make(AuditDetails)
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}

	*a = result
	return nil
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID string `gorm:"primaryKey;type:varchar(36)" json:"id"`

	// Event information
	EventType EventType     `gorm:"type:varchar(50);index;not null" json:"event_type"`
	EventTime time.Time     `gorm:"index;not null"                  json:"event_time"`
	Severity  EventSeverity `gorm:"type:varchar(20);not null"       json:"severity"`

	// Actor information
	ActorUserID string `gorm:"type:varchar(36);index" json:"actor_user_id"`
	ActorIP     string `gorm:"type:varchar(45);index" json:"actor_ip"` // Support IPv6

	// Resource information
	ResourceType ResourceType `gorm:"type:varchar(50);index" json:"resource_type"`
	ResourceID   string       `gorm:"type:varchar(36);index" json:"resource_id"`
	Provider     Provider     `gorm:"type:varchar(20);index" json:"provider,omitempty"`

	// Operation details
	Action       string       `gorm:"type:varchar(255);not null" json:"action"`
	Details      AuditDetails `gorm:"type:json"                  json:"details"`
	Success      bool         `gorm:"index;not null"             json:"success"`
	ErrorMessage string       `gorm:"type:text"                  json:"error_message,omitempty"`

	// Timestamps (no UpdatedAt - immutable logs)
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`
}

// TableName specifies the table name for GORM
func (AuditLog) TableName() string {
	return "audit_logs"
}
