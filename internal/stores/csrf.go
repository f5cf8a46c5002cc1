package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const csrfRecordVersionV1 = 1

var (
	ErrCSRFNotFound         = errors.New("csrf token not found")
	ErrCSRFMismatch         = errors.New("csrf token mismatch")
	ErrCSRFRedisUnavailable = errors.New("csrf redis unavailable")
)

// CSRFRecord is the stored shape of one issued anti-forgery token.
type CSRFRecord struct {
	ValueHash [32]byte
	IssuedAt  int64
	ExpiresAt int64
}

// CSRFStore persists per-session single-use anti-forgery tokens.
type CSRFStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewCSRFStore creates a [CSRFStore]. Keys are prefix + ":" + sessionID.
func NewCSRFStore(redisClient redis.UniversalClient, prefix string) *CSRFStore {
	if prefix == "" {
		prefix = "acsrf"
	}
	return &CSRFStore{redis: redisClient, prefix: prefix}
}

func (s *CSRFStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Save stores the token hash for the session, replacing any previous
// token. The TTL bounds the token lifetime even when never presented.
func (s *CSRFStore) Save(ctx context.Context, sessionID string, record *CSRFRecord, ttl time.Duration) error {
	encoded, err := encodeCSRFRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(sessionID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCSRFRedisUnavailable, err)
	}
	return nil
}

// Consume validates providedHash against the stored record and deletes it
// on success, all under WATCH so a concurrent duplicate presentation
// observes the deletion and fails.
func (s *CSRFStore) Consume(ctx context.Context, sessionID string, providedHash [32]byte) error {
	const maxRetries = 4
	key := s.key(sessionID)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			record, err := s.fetch(ctx, tx, key)
			if err != nil {
				return err
			}

			if subtle.ConstantTimeCompare(record.ValueHash[:], providedHash[:]) != 1 {
				return ErrCSRFMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return ErrCSRFNotFound
			case errors.Is(err, ErrCSRFNotFound), errors.Is(err, ErrCSRFMismatch):
				return err
			default:
				return fmt.Errorf("%w: %v", ErrCSRFRedisUnavailable, err)
			}
		}
		return nil
	}

	// Contention means another request just consumed the token.
	return ErrCSRFNotFound
}

// Peek validates providedHash without consuming the token. Used by flows
// that render a protected form multiple times before submission.
func (s *CSRFStore) Peek(ctx context.Context, sessionID string, providedHash [32]byte) error {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCSRFNotFound
		}
		return fmt.Errorf("%w: %v", ErrCSRFRedisUnavailable, err)
	}

	record, err := decodeCSRFRecord(data)
	if err != nil {
		return err
	}
	if time.Now().Unix() > record.ExpiresAt {
		return ErrCSRFNotFound
	}
	if subtle.ConstantTimeCompare(record.ValueHash[:], providedHash[:]) != 1 {
		return ErrCSRFMismatch
	}
	return nil
}

// fetch reads and decodes the record inside a WATCH block, treating
// expired records as absent (and clearing them).
func (s *CSRFStore) fetch(ctx context.Context, tx *redis.Tx, key string) (*CSRFRecord, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	record, err := decodeCSRFRecord(data)
	if err != nil {
		return nil, err
	}

	if time.Now().Unix() > record.ExpiresAt {
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return nil, ErrCSRFNotFound
	}

	return record, nil
}

func encodeCSRFRecord(record *CSRFRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(csrfRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	buf.Write(record.ValueHash[:])

	return buf.Bytes(), nil
}

func decodeCSRFRecord(data []byte) (*CSRFRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != csrfRecordVersionV1 {
		return nil, errors.New("invalid csrf record version")
	}

	record := &CSRFRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.ValueHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
