package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

const defaultMaxRetries = 5

type RedisOptions struct {
	MaxRecords int
	MaxRetries int
	Now        func() time.Time
	Logger     *slog.Logger
}

// RedisStore keeps each mailbox as a Redis list of JSON records at
// mailbox:<fid>, newest at the head.
type RedisStore struct {
	client     redis.UniversalClient
	maxRecords int
	maxRetries int
	now        func() time.Time
	logger     *slog.Logger
}

func NewRedisStore(client redis.UniversalClient, opts RedisOptions) *RedisStore {
	maxRecords := opts.MaxRecords
	if maxRecords <= 0 {
		maxRecords = MaxRecords
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &RedisStore{
		client:     client,
		maxRecords: maxRecords,
		maxRetries: maxRetries,
		now:        now,
		logger:     logger,
	}
}

// OpenRedis connects using a redis:// or rediss:// URL and pings once.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Send prepends and trims in one MULTI so a concurrent MarkRead watching the
// key is forced to retry.
func (s *RedisStore) Send(ctx context.Context, recipientFID, ipfsHash string) (Record, error) {
	fid, err := normalizeFID(recipientFID)
	if err != nil {
		return Record{}, err
	}
	if ipfsHash == "" {
		return Record{}, errors.New("ipfs hash is required")
	}

	rec := newRecord(s.now(), ipfsHash)
	payload, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("marshal record: %w", err)
	}

	key := Key(fid)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, int64(s.maxRecords-1))
		return nil
	})
	if err != nil {
		return Record{}, fmt.Errorf("send to %s: %w", key, err)
	}
	return rec, nil
}

func (s *RedisStore) List(ctx context.Context, userFID string) ([]Record, error) {
	fid, err := normalizeFID(userFID)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.LRange(ctx, Key(fid), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", Key(fid), err)
	}

	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			s.logger.Warn("skipping malformed mailbox record", "fid", fid, "err", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// MarkRead rewrites the whole list under WATCH. A write to the key between
// the read and EXEC aborts the transaction and the rewrite is retried from a
// fresh read, so interleaved sends are never lost.
func (s *RedisStore) MarkRead(ctx context.Context, userFID string, hashes []string) (int, error) {
	fid, err := normalizeFID(userFID)
	if err != nil {
		return 0, err
	}
	set := hashSet(hashes)
	key := Key(fid)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var marked int

		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.LRange(ctx, key, 0, -1).Result()
			if err != nil {
				return err
			}

			rewritten := make([]interface{}, 0, len(raw))
			marked = 0
			for _, item := range raw {
				var rec Record
				if err := json.Unmarshal([]byte(item), &rec); err != nil {
					rewritten = append(rewritten, item)
					continue
				}
				if _, ok := set[rec.IPFSHash]; ok {
					marked++
					if !rec.Read {
						rec.Read = true
						b, err := json.Marshal(rec)
						if err != nil {
							return err
						}
						rewritten = append(rewritten, string(b))
						continue
					}
				}
				rewritten = append(rewritten, item)
			}

			if marked == 0 {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.RPush(ctx, key, rewritten...)
				return nil
			})
			return err
		}, key)

		switch {
		case err == nil:
			return marked, nil
		case errors.Is(err, redis.TxFailedErr):
			s.logger.Debug("mailbox markRead conflict", "fid", fid, "attempt", attempt+1)
			continue
		default:
			return 0, fmt.Errorf("mark read %s: %w", key, err)
		}
	}
	return 0, ErrConflict
}
