package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/barstock/barstock-backend/pkg/database"
)

// Audit actions
const (
	AuditActionCreate  = "create"
	AuditActionUpdate  = "update"
	AuditActionDelete  = "delete"
	AuditActionReceive = "receive"
	AuditActionInspect = "inspect"
)

// AuditEntry is one row of the append-only audit log
type AuditEntry struct {
	ID         string          `db:"id" json:"id"`
	EntityType string          `db:"entity_type" json:"entity_type"`
	EntityID   string          `db:"entity_id" json:"entity_id"`
	Action     string          `db:"action" json:"action"`
	Detail     json.RawMessage `db:"detail" json:"detail,omitempty"`
	ActorID    string          `db:"actor_id" json:"actor_id"`
	ActorName  *string         `db:"actor_name" json:"actor_name,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// AuditRepository handles audit log persistence. The log is
// append-only: there are no update or delete operations.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an audit entry
func (r *AuditRepository) Create(ctx context.Context, entry *AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO audit_log (id, entity_type, entity_id, action, detail, actor_id, actor_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	return r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action,
		entry.Detail, entry.ActorID, entry.ActorName,
	).Scan(&entry.CreatedAt)
}

// CreateTx appends an audit entry within the caller's transaction
func (r *AuditRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, entry *AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO audit_log (id, entity_type, entity_id, action, detail, actor_id, actor_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	return tx.QueryRowxContext(ctx, query,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action,
		entry.Detail, entry.ActorID, entry.ActorName,
	).Scan(&entry.CreatedAt)
}

// ListByEntity lists audit entries for one entity, newest first
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*AuditEntry, error) {
	var entries []*AuditEntry

	query := `
		SELECT id, entity_type, entity_id, action, detail, actor_id, actor_name, created_at
		FROM audit_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	if err := r.db.SelectContext(ctx, &entries, query, entityType, entityID, limit); err != nil {
		return nil, err
	}

	return entries, nil
}
