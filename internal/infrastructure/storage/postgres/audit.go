package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "procurement/internal/core/context"
	"procurement/internal/core/id"
	"procurement/internal/domain/audit"
)

// CompressionAlgo names how a stored change set is encoded.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the change-set size above which payloads are compressed.
const DefaultCompressThreshold = 10 * 1024

// AuditRecord is a row of sys_audit.
type AuditRecord struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            audit.Action    `db:"action"`
	UserID            string          `db:"user_id"`
	TraceID           string          `db:"trace_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditLog implements audit.Recorder over sys_audit.
type AuditLog struct {
	txManager *TxManager
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

var _ audit.Recorder = (*AuditLog)(nil)

// NewAuditLog creates the audit log. A threshold of zero uses DefaultCompressThreshold.
func NewAuditLog(txManager *TxManager, threshold int) (*AuditLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	return &AuditLog{
		txManager: txManager,
		encoder:   encoder,
		decoder:   decoder,
		threshold: threshold,
	}, nil
}

// Record implements audit.Recorder.
func (l *AuditLog) Record(ctx context.Context, entry audit.Entry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return fmt.Errorf("marshal audit changes: %w", err)
	}

	rec := AuditRecord{
		ID:         id.New(),
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		UserID:     entry.UserID,
		TraceID:    appctx.GetTraceID(ctx),
		CreatedAt:  time.Now().UTC(),
	}
	rec.Changes, rec.ChangesCompressed, rec.CompressionAlgo = l.encode(changes)

	const sql = `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, user_id, trace_id,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = l.txManager.GetQuerier(ctx).Exec(ctx, sql,
		rec.ID, rec.EntityType, rec.EntityID, rec.Action, rec.UserID, rec.TraceID,
		rec.Changes, rec.ChangesCompressed, rec.CompressionAlgo, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// History returns the newest audit records of an entity with changes decoded.
func (l *AuditLog) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditRecord, error) {
	const sql = `
		SELECT id, entity_type, entity_id, action, user_id, trace_id,
		       changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := l.txManager.GetQuerier(ctx).Query(ctx, sql, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var r AuditRecord
		err := rows.Scan(
			&r.ID, &r.EntityType, &r.EntityID, &r.Action, &r.UserID, &r.TraceID,
			&r.Changes, &r.ChangesCompressed, &r.CompressionAlgo, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		if r.Changes, err = l.decode(r); err != nil {
			return nil, err
		}
		r.ChangesCompressed = nil
		out = append(out, r)
	}
	return out, rows.Err()
}

// encode compresses change sets larger than the threshold.
func (l *AuditLog) encode(changes []byte) (json.RawMessage, []byte, CompressionAlgo) {
	if len(changes) <= l.threshold {
		return changes, nil, CompressionNone
	}
	return nil, l.encoder.EncodeAll(changes, nil), CompressionZstd
}

func (l *AuditLog) decode(r AuditRecord) (json.RawMessage, error) {
	if r.CompressionAlgo != CompressionZstd || len(r.ChangesCompressed) == 0 {
		return r.Changes, nil
	}
	raw, err := l.decoder.DecodeAll(r.ChangesCompressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress audit changes: %w", err)
	}
	return raw, nil
}
