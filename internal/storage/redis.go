package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jwebster45206/rule-horror/pkg/storage"
	"github.com/redis/go-redis/v9"
)

const sessionRegistryKey = "sessions"

// RedisStorage implements the Storage interface with one Redis string per
// slot, a set of slot names per session key, and a registry set of keys.
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

// NewRedisStorage parses a redis:// URL and creates a storage instance.
// A zero ttl keeps slots until they are deleted.
func NewRedisStorage(redisURL string, ttl time.Duration, logger *slog.Logger) (*RedisStorage, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return NewRedisStorageWithClient(redis.NewClient(opt), ttl, logger), nil
}

// NewRedisStorageWithClient wraps an existing client.
func NewRedisStorageWithClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisStorage {
	return &RedisStorage{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// Client exposes the underlying client so pub/sub can share the pool.
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

func slotKey(key, name string) string {
	if name == storage.DefaultSlot {
		return "session:" + key
	}
	return "session:" + key + ":slot:" + name
}

func slotIndexKey(key string) string {
	return "session:" + key + ":slots"
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	cmd := r.client.Ping(ctx)
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Slot operations

func (r *RedisStorage) SaveSlot(ctx context.Context, slot *storage.SaveSlot) error {
	data, err := storage.EncodeSlot(slot)
	if err != nil {
		r.logger.Error("Failed to marshal slot", "session_key", slotKeyOf(slot), "error", err)
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, slotKey(slot.Key, slot.Name), data, r.ttl)
		pipe.SAdd(ctx, slotIndexKey(slot.Key), slot.Name)
		pipe.SAdd(ctx, sessionRegistryKey, slot.Key)
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save slot", "session_key", slot.Key, "slot", slot.Name, "error", err)
		return fmt.Errorf("failed to save slot: %w", err)
	}
	return nil
}

func slotKeyOf(slot *storage.SaveSlot) string {
	if slot == nil {
		return ""
	}
	return slot.Key
}

func (r *RedisStorage) LoadSlot(ctx context.Context, key, name string) (*storage.SaveSlot, error) {
	data, err := r.client.Get(ctx, slotKey(key, name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Return nil for not found
		}
		r.logger.Error("Failed to load slot", "session_key", key, "slot", name, "error", err)
		return nil, fmt.Errorf("failed to load slot: %w", err)
	}

	slot, err := storage.DecodeSlot(data)
	if err != nil {
		r.logger.Warn("Stored slot does not decode", "session_key", key, "slot", name, "error", err)
		return nil, err
	}
	return slot, nil
}

func (r *RedisStorage) DeleteSlot(ctx context.Context, key, name string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, slotKey(key, name))
		pipe.SRem(ctx, slotIndexKey(key), name)
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to delete slot", "session_key", key, "slot", name, "error", err)
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	return nil
}

func (r *RedisStorage) ListSlots(ctx context.Context, key string) ([]storage.SlotInfo, error) {
	names, err := r.client.SMembers(ctx, slotIndexKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}

	infos := make([]storage.SlotInfo, 0, len(names))
	for _, name := range names {
		data, err := r.client.Get(ctx, slotKey(key, name)).Bytes()
		if errors.Is(err, redis.Nil) {
			// expired under TTL
			r.client.SRem(ctx, slotIndexKey(key), name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read slot %q: %w", name, err)
		}
		slot, err := storage.DecodeSlot(data)
		if err != nil {
			infos = append(infos, storage.SlotInfo{Name: name})
			continue
		}
		infos = append(infos, slot.Info())
	}
	storage.SortSlotInfos(infos)
	return infos, nil
}

func (r *RedisStorage) DeleteAllSlots(ctx context.Context, key string) (int, error) {
	names, err := r.client.SMembers(ctx, slotIndexKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list slots: %w", err)
	}

	keys := make([]string, 0, len(names)+1)
	for _, name := range names {
		keys = append(keys, slotKey(key, name))
	}
	// the default slot may exist without an index entry after a partial write
	keys = append(keys, slotKey(key, storage.DefaultSlot))

	var del *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, keys...)
		pipe.Del(ctx, slotIndexKey(key))
		pipe.SRem(ctx, sessionRegistryKey, key)
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to purge slots", "session_key", key, "error", err)
		return 0, fmt.Errorf("failed to purge slots: %w", err)
	}
	return int(del.Val()), nil
}

func (r *RedisStorage) ListKeys(ctx context.Context) ([]string, error) {
	keys, err := r.client.SMembers(ctx, sessionRegistryKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list session keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
