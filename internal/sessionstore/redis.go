package sessionstore

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	"contractrisk/internal/model"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "contractrisk:session:"
	indexKey         = "contractrisk:session-index"
)

// RedisStore persists sessions as JSON blobs under sessionKeyPrefix<id>,
// with a parallel hash (indexKey) of id -> SessionSummary JSON so List
// never has to fetch or decode a full session body.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore connects to dsn (a redis:// or rediss:// URL) and pings it.
func NewRedisStore(ctx context.Context, dsn string) (*RedisStore, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: parse redis dsn: %w", err)
	}
	opts := &redis.Options{Addr: parsed.Host}
	if parsed.User != nil {
		if pw, ok := parsed.User.Password(); ok {
			opts.Password = pw
		}
	}
	if parsed.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("sessionstore: redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Save(ctx context.Context, session model.AnalysisSession) error {
	body, err := json.Marshal(session)
	if err != nil {
		return err
	}
	summaryBody, err := json.Marshal(summarize(session))
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+session.ID, body, 0)
	pipe.HSet(ctx, indexKey, session.ID, summaryBody)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) Get(ctx context.Context, id string) (model.AnalysisSession, bool, error) {
	body, err := r.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return model.AnalysisSession{}, false, nil
	}
	if err != nil {
		return model.AnalysisSession{}, false, err
	}
	var out model.AnalysisSession
	if err := json.Unmarshal(body, &out); err != nil {
		return model.AnalysisSession{}, false, err
	}
	return out, true, nil
}

func (r *RedisStore) List(ctx context.Context) ([]model.SessionSummary, error) {
	raw, err := r.client.HGetAll(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.SessionSummary, 0, len(raw))
	for _, v := range raw {
		var s model.SessionSummary
		if err := json.Unmarshal([]byte(v), &s); err != nil {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+id)
	pipe.HDel(ctx, indexKey, id)
	_, err := pipe.Exec(ctx)
	return err
}

var _ Store = (*RedisStore)(nil)
