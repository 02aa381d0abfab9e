package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisKeyPrefix = "leadloop"
	redisPingTimeout      = 5 * time.Second

	errorMessageInvalidRedisURL = "storage: invalid redis url"
	errorMessageRedisConnect    = "storage: connect redis"
)

// RedisDocumentStore keeps each document body and its version counter in two keys.
type RedisDocumentStore struct {
	client *redis.Client
	prefix string
}

// OpenRedisDocumentStore parses url and verifies connectivity.
func OpenRedisDocumentStore(ctx context.Context, url string) (*RedisDocumentStore, error) {
	options, parseErr := redis.ParseURL(url)
	if parseErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageInvalidRedisURL, parseErr)
	}
	client := redis.NewClient(options)

	pingContext, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingContext).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", errorMessageRedisConnect, err)
	}
	return NewRedisDocumentStore(client, defaultRedisKeyPrefix), nil
}

// NewRedisDocumentStore wraps an existing client.
func NewRedisDocumentStore(client *redis.Client, prefix string) *RedisDocumentStore {
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	return &RedisDocumentStore{client: client, prefix: prefix}
}

func (store *RedisDocumentStore) bodyKey(key DocumentKey) string {
	return fmt.Sprintf("%s:doc:%s", store.prefix, key)
}

func (store *RedisDocumentStore) versionKey(key DocumentKey) string {
	return fmt.Sprintf("%s:ver:%s", store.prefix, key)
}

func (store *RedisDocumentStore) updatedKey(key DocumentKey) string {
	return fmt.Sprintf("%s:upd:%s", store.prefix, key)
}

func (store *RedisDocumentStore) Get(ctx context.Context, key DocumentKey) (StoredDocument, error) {
	values, err := store.client.MGet(ctx, store.bodyKey(key), store.versionKey(key), store.updatedKey(key)).Result()
	if err != nil {
		return StoredDocument{}, fmt.Errorf("%s: %w", errorMessageLoadDocument, err)
	}
	body, present := values[0].(string)
	if !present {
		return StoredDocument{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, key)
	}
	document := StoredDocument{Key: key, Body: []byte(body)}
	if rawVersion, ok := values[1].(string); ok {
		document.Version, _ = strconv.ParseInt(rawVersion, 10, 64)
	}
	if rawUpdated, ok := values[2].(string); ok {
		document.UpdatedAt, _ = time.Parse(time.RFC3339Nano, rawUpdated)
	}
	return document, nil
}

func (store *RedisDocumentStore) Put(ctx context.Context, key DocumentKey, body []byte) (int64, error) {
	var increment *redis.IntCmd
	_, err := store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, store.bodyKey(key), body, 0)
		pipe.Set(ctx, store.updatedKey(key), time.Now().UTC().Format(time.RFC3339Nano), 0)
		increment = pipe.Incr(ctx, store.versionKey(key))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", errorMessageSaveDocument, err)
	}
	return increment.Val(), nil
}

func (store *RedisDocumentStore) Delete(ctx context.Context, key DocumentKey) error {
	if err := store.client.Del(ctx, store.bodyKey(key), store.versionKey(key), store.updatedKey(key)).Err(); err != nil {
		return fmt.Errorf("%s: %w", errorMessageDeleteDocument, err)
	}
	return nil
}

func (store *RedisDocumentStore) Versions(ctx context.Context, keys []DocumentKey) (map[DocumentKey]int64, error) {
	versions := make(map[DocumentKey]int64, len(keys))
	if len(keys) == 0 {
		return versions, nil
	}
	redisKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		redisKeys = append(redisKeys, store.versionKey(key))
	}
	values, err := store.client.MGet(ctx, redisKeys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %w", errorMessageLoadVersions, err)
	}
	for index, key := range keys {
		versions[key] = 0
		if index >= len(values) {
			continue
		}
		if rawVersion, ok := values[index].(string); ok {
			versions[key], _ = strconv.ParseInt(rawVersion, 10, 64)
		}
	}
	return versions, nil
}

// Close releases the underlying connection pool.
func (store *RedisDocumentStore) Close() error {
	return store.client.Close()
}
