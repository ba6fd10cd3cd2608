package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout:
//
//	rollcall:col:<collection>             set of document keys
//	rollcall:doc:<collection>:<key>       hash of scalar fields
//	rollcall:setfields:<collection>:<key> set of field names stored as sets
//	rollcall:set:<collection>:<key>:<f>   members of set-valued field f
const (
	redisColPrefix       = "rollcall:col:"
	redisDocPrefix       = "rollcall:doc:"
	redisSetFieldsPrefix = "rollcall:setfields:"
	redisSetPrefix       = "rollcall:set:"
)

// RedisStore is a Redis-backed document store. Set-valued fields map onto
// native Redis sets, so UpdateUnion inherits SADD's idempotent merge
// semantics under concurrent writers.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) GetAll(ctx context.Context, collection string) (map[string]Document, error) {
	keys, err := s.client.SMembers(ctx, redisColPrefix+collection).Result()
	if err != nil {
		return nil, fmt.Errorf("list collection %s: %w", collection, err)
	}

	out := make(map[string]Document, len(keys))
	for _, key := range keys {
		doc, err := s.Get(ctx, collection, key)
		if err == ErrNotFound {
			// Deleted between the index read and the document read.
			continue
		}
		if err != nil {
			return nil, err
		}
		out[key] = doc
	}
	return out, nil
}

func (s *RedisStore) Get(ctx context.Context, collection, key string) (Document, error) {
	member, err := s.client.SIsMember(ctx, redisColPrefix+collection, key).Result()
	if err != nil {
		return nil, fmt.Errorf("check document %s/%s: %w", collection, key, err)
	}
	if !member {
		return nil, ErrNotFound
	}

	scalars, err := s.client.HGetAll(ctx, redisDocPrefix+collection+":"+key).Result()
	if err != nil {
		return nil, fmt.Errorf("read document %s/%s: %w", collection, key, err)
	}

	doc := make(Document, len(scalars))
	for field, value := range scalars {
		doc[field] = value
	}

	setFields, err := s.client.SMembers(ctx, redisSetFieldsPrefix+collection+":"+key).Result()
	if err != nil {
		return nil, fmt.Errorf("read set fields %s/%s: %w", collection, key, err)
	}
	for _, field := range setFields {
		members, err := s.client.SMembers(ctx, redisSetPrefix+collection+":"+key+":"+field).Result()
		if err != nil {
			return nil, fmt.Errorf("read set field %s of %s/%s: %w", field, collection, key, err)
		}
		doc[field] = members
	}
	return doc, nil
}

func (s *RedisStore) Set(ctx context.Context, collection, key string, fields Document) error {
	pipe := s.client.TxPipeline()
	docKey := redisDocPrefix + collection + ":" + key

	for field, value := range fields {
		switch v := value.(type) {
		case []string:
			setKey := redisSetPrefix + collection + ":" + key + ":" + field
			pipe.Del(ctx, setKey)
			if len(v) > 0 {
				pipe.SAdd(ctx, setKey, toAnySlice(v)...)
			}
			pipe.SAdd(ctx, redisSetFieldsPrefix+collection+":"+key, field)
		case time.Time:
			pipe.HSet(ctx, docKey, field, v.UTC().Format(time.RFC3339))
		default:
			pipe.HSet(ctx, docKey, field, fmt.Sprint(v))
		}
	}
	pipe.SAdd(ctx, redisColPrefix+collection, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write document %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *RedisStore) UpdateUnion(ctx context.Context, collection, key, field string, values ...string) error {
	if len(values) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, redisSetPrefix+collection+":"+key+":"+field, toAnySlice(values)...)
	pipe.SAdd(ctx, redisSetFieldsPrefix+collection+":"+key, field)
	pipe.SAdd(ctx, redisColPrefix+collection, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("union into %s of %s/%s: %w", field, collection, key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, collection, key string) error {
	setFields, err := s.client.SMembers(ctx, redisSetFieldsPrefix+collection+":"+key).Result()
	if err != nil {
		return fmt.Errorf("read set fields %s/%s: %w", collection, key, err)
	}

	pipe := s.client.TxPipeline()
	pipe.SRem(ctx, redisColPrefix+collection, key)
	pipe.Del(ctx, redisDocPrefix+collection+":"+key)
	pipe.Del(ctx, redisSetFieldsPrefix+collection+":"+key)
	for _, field := range setFields {
		pipe.Del(ctx, redisSetPrefix+collection+":"+key+":"+field)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete document %s/%s: %w", collection, key, err)
	}
	return nil
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
