// Package redis provides a Redis-backed opinion ledger for deployments where
// several workers share one record set.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
)

// Ensure OpinionLedger implements the interface.
var _ driven.OpinionLedger = (*OpinionLedger)(nil)

// DefaultPrefix namespaces every key the ledger writes.
const DefaultPrefix = "mentions"

// Config holds configuration for the Redis ledger.
type Config struct {
	// Addr is host:port of the Redis server.
	Addr string

	// DB selects the logical database.
	DB int

	// Prefix namespaces keys (default: mentions).
	Prefix string
}

// OpinionLedger stores each record as a JSON string under its chunk ID and
// keeps a per-video set of chunk IDs for listing.
type OpinionLedger struct {
	client *redis.Client
	prefix string
}

// NewOpinionLedger connects to Redis and verifies the connection.
func NewOpinionLedger(ctx context.Context, cfg Config) (*OpinionLedger, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewOpinionLedgerWithClient(client, cfg.Prefix), nil
}

// NewOpinionLedgerWithClient wraps an existing client.
func NewOpinionLedgerWithClient(client *redis.Client, prefix string) *OpinionLedger {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &OpinionLedger{client: client, prefix: prefix}
}

// Close releases the client.
func (l *OpinionLedger) Close() error {
	return l.client.Close()
}

func (l *OpinionLedger) recordKey(chunkID string) string {
	return l.prefix + ":opinion:" + chunkID
}

func (l *OpinionLedger) videoKey(videoID string) string {
	return l.prefix + ":video:" + videoID + ":opinions"
}

// GetOpinion looks up a record by exact chunk ID.
func (l *OpinionLedger) GetOpinion(ctx context.Context, chunkID string) (*domain.OpinionRecord, error) {
	data, err := l.client.Get(ctx, l.recordKey(chunkID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading opinion: %w", err)
	}
	return decodeRecord(data)
}

// PutOpinion writes a record. Without force the write is SETNX, so
// concurrent writers of one chunk ID store exactly one record.
func (l *OpinionLedger) PutOpinion(
	ctx context.Context,
	rec domain.OpinionRecord,
	force bool,
) (*domain.OpinionRecord, bool, error) {
	if rec.ChunkID == "" {
		return nil, false, fmt.Errorf("%w: opinion record has no chunk id", domain.ErrInvalidInput)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal opinion: %w", err)
	}

	key := l.recordKey(rec.ChunkID)
	if force {
		if err := l.client.Set(ctx, key, data, 0).Err(); err != nil {
			return nil, false, fmt.Errorf("error writing opinion: %w", err)
		}
	} else {
		ok, err := l.client.SetNX(ctx, key, data, 0).Result()
		if err != nil {
			return nil, false, fmt.Errorf("error writing opinion: %w", err)
		}
		if !ok {
			stored, err := l.GetOpinion(ctx, rec.ChunkID)
			if err != nil {
				return nil, false, err
			}
			return stored, false, nil
		}
	}

	if err := l.client.SAdd(ctx, l.videoKey(rec.VideoID), rec.ChunkID).Err(); err != nil {
		return nil, false, fmt.Errorf("error indexing opinion: %w", err)
	}
	return &rec, true, nil
}

// ListOpinions returns a video's records ordered by start time.
func (l *OpinionLedger) ListOpinions(ctx context.Context, videoID string) ([]domain.OpinionRecord, error) {
	chunkIDs, err := l.client.SMembers(ctx, l.videoKey(videoID)).Result()
	if err != nil {
		return nil, fmt.Errorf("error listing opinions: %w", err)
	}
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	keys := make([]string, len(chunkIDs))
	for i, id := range chunkIDs {
		keys[i] = l.recordKey(id)
	}
	values, err := l.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("error reading opinions: %w", err)
	}

	records := make([]domain.OpinionRecord, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// Index entry whose record was deleted.
			continue
		}
		rec, err := decodeRecord([]byte(s))
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Start == records[j].Start {
			return records[i].BlockID < records[j].BlockID
		}
		return records[i].Start < records[j].Start
	})
	return records, nil
}

// InvalidateOpinions deletes every record of a video.
func (l *OpinionLedger) InvalidateOpinions(ctx context.Context, videoID string) (int, error) {
	setKey := l.videoKey(videoID)
	chunkIDs, err := l.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, fmt.Errorf("error listing opinions: %w", err)
	}

	keys := make([]string, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		keys = append(keys, l.recordKey(id))
	}

	var deleted int64
	if len(keys) > 0 {
		if deleted, err = l.client.Del(ctx, keys...).Result(); err != nil {
			return 0, fmt.Errorf("error deleting opinions: %w", err)
		}
	}
	if err := l.client.Del(ctx, setKey).Err(); err != nil {
		return 0, fmt.Errorf("error deleting opinion index: %w", err)
	}
	return int(deleted), nil
}

func decodeRecord(data []byte) (*domain.OpinionRecord, error) {
	var rec domain.OpinionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal opinion: %w", err)
	}
	return &rec, nil
}
