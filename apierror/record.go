package apierror

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Record is the immutable server-side trace of one handled failure. Raw
// detail never leaves the server; clients only ever see the correlation
// id and the redacted message.
type Record struct {
	CorrelationID   string            `json:"correlation_id"`
	Timestamp       time.Time         `json:"timestamp"`
	Classification  Code              `json:"classification"`
	RedactedMessage string            `json:"redacted_message"`
	RawDetail       string            `json:"raw_detail"`
	Context         map[string]string `json:"context,omitempty"`
}

// Sink receives handled failure records.
type Sink interface {
	Emit(ctx context.Context, record Record)
}

// NoOpSink discards records.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Record) {}

// ChannelSink forwards records to a channel, for tests and custom
// consumers.
type ChannelSink struct {
	records chan Record
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{records: make(chan Record, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, record Record) {
	select {
	case s.records <- record:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Records() <-chan Record {
	return s.records
}

// JSONWriterSink appends one JSON line per record to a writer.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, record Record) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// SQLRecordStore persists records to the append-only error_log table:
//
//	create table error_log (
//	    id               bigserial primary key,
//	    correlation_id   text not null,
//	    created_at       timestamptz not null,
//	    classification   text not null,
//	    redacted_message text not null,
//	    raw_detail       text not null,
//	    context          jsonb
//	)
//
// It doubles as a [Sink] and carries the bounded-retention purge the
// sweeper calls out-of-band.
type SQLRecordStore struct {
	db *sql.DB
}

func NewSQLRecordStore(db *sql.DB) *SQLRecordStore {
	return &SQLRecordStore{db: db}
}

func (s *SQLRecordStore) Insert(ctx context.Context, record Record) error {
	recordCtx, _ := json.Marshal(record.Context)
	_, err := s.db.ExecContext(ctx,
		`insert into error_log (correlation_id, created_at, classification, redacted_message, raw_detail, context)
		 values ($1, $2, $3, $4, $5, $6)`,
		record.CorrelationID, record.Timestamp, string(record.Classification),
		record.RedactedMessage, record.RawDetail, recordCtx)
	if err != nil {
		return fmt.Errorf("error log insert: %w", err)
	}
	return nil
}

// PurgeOlderThan deletes records past the retention window and returns
// how many were removed.
func (s *SQLRecordStore) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from error_log where created_at < $1`, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("error log purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Emit implements [Sink]; insert failures are swallowed because the error
// path must never produce a second client-visible failure.
func (s *SQLRecordStore) Emit(ctx context.Context, record Record) {
	_ = s.Insert(ctx, record)
}
