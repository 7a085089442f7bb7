// Package cache keeps rendered run reports in Redis so repeated API reads
// skip the database. A nil *ReportCache is valid and caches nothing.
package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tripaudit:"

// ReportCache stores gzip-compressed JSON documents under a fixed prefix
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache connects to Redis and verifies the connection
func NewReportCache(addr, password string, db int, ttl time.Duration) (*ReportCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log.Printf("Cache: connected to %s (ttl %v)", addr, ttl)
	return &ReportCache{client: client, ttl: ttl}, nil
}

// Close releases the Redis connection
func (c *ReportCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// RunKey is the cache key of a stored run's full report
func RunKey(runID string) string {
	return "run:" + runID
}

// ListKey is the cache key of a run listing
func ListKey(train, date string, limit int) string {
	return fmt.Sprintf("runs:%s:%s:%d", train, date, limit)
}

func key(k string) string {
	return keyPrefix + k
}

// SetJSON stores value compressed under key with the cache TTL
func (c *ReportCache) SetJSON(ctx context.Context, k string, value interface{}) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	compressed, err := gzipCompress(data)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	if err := c.client.Set(ctx, key(k), compressed, c.ttl).Err(); err != nil {
		log.Printf("Warning: cache set %s failed: %v", k, err)
		return err
	}
	return nil
}

// GetJSON loads key into dest. It reports false on a miss.
func (c *ReportCache) GetJSON(ctx context.Context, k string, dest interface{}) (bool, error) {
	if c == nil {
		return false, nil
	}
	val, err := c.client.Get(ctx, key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		log.Printf("Warning: cache get %s failed: %v", k, err)
		return false, err
	}
	data, err := gzipDecompress(val)
	if err != nil {
		return false, fmt.Errorf("decompress: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("json unmarshal: %w", err)
	}
	return true, nil
}

// InvalidateRun drops a run's report and every cached listing
func (c *ReportCache) InvalidateRun(ctx context.Context, runID string) error {
	if c == nil {
		return nil
	}
	if err := c.client.Del(ctx, key(RunKey(runID))).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", RunKey(runID), err)
	}
	return c.deletePattern(ctx, "runs:*")
}

func (c *ReportCache) deletePattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, key(pattern), 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}
