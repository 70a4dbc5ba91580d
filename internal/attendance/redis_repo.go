package attendance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps the roster in a set and one hash per session
// mapping identifier to "id|timestamp". HSETNX gives the uniqueness guarantee.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository builds a repository under key prefix.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "checkin"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) registeredKey() string { return r.prefix + ":registered" }
func (r *RedisRepository) sessionsKey() string   { return r.prefix + ":sessions" }
func (r *RedisRepository) attendanceKey(session string) string {
	return r.prefix + ":attendance:" + session
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Register(ctx context.Context, identifiers ...string) error {
	members := make([]any, 0, len(identifiers))
	for _, id := range identifiers {
		if id = NormalizeIdentifier(id); id != "" {
			members = append(members, id)
		}
	}
	if len(members) == 0 {
		return nil
	}
	return r.client.SAdd(ctx, r.registeredKey(), members...).Err()
}

func (r *RedisRepository) IsRegistered(ctx context.Context, identifier string) (bool, error) {
	return r.client.SIsMember(ctx, r.registeredKey(), identifier).Result()
}

func (r *RedisRepository) Exists(ctx context.Context, identifier, session string) (bool, error) {
	return r.client.HExists(ctx, r.attendanceKey(session), identifier).Result()
}

func (r *RedisRepository) Append(ctx context.Context, rec Record) error {
	value := rec.ID + "|" + rec.Timestamp.UTC().Format(time.RFC3339Nano)
	var set *redis.BoolCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		set = pipe.HSetNX(ctx, r.attendanceKey(rec.Session), rec.Identifier, value)
		pipe.SAdd(ctx, r.sessionsKey(), rec.Session)
		return nil
	})
	if err != nil {
		return err
	}
	if !set.Val() {
		return ErrAlreadyRecorded
	}
	return nil
}

func (r *RedisRepository) CountsBySession(ctx context.Context) (map[string]int, error) {
	sessions, err := r.client.SMembers(ctx, r.sessionsKey()).Result()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(sessions))
	for _, s := range sessions {
		n, err := r.client.HLen(ctx, r.attendanceKey(s)).Result()
		if err != nil {
			return nil, err
		}
		counts[s] = int(n)
	}
	return counts, nil
}

func (r *RedisRepository) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	sessions := []string{filter.Session}
	if filter.Session == "" {
		var err error
		if sessions, err = r.client.SMembers(ctx, r.sessionsKey()).Result(); err != nil {
			return nil, err
		}
	}
	var res []Record
	for _, s := range sessions {
		entries, err := r.client.HGetAll(ctx, r.attendanceKey(s)).Result()
		if err != nil {
			return nil, err
		}
		for identifier, value := range entries {
			rec, err := decodeRedisRecord(identifier, s, value)
			if err != nil {
				return nil, err
			}
			res = append(res, rec)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Timestamp.After(res[j].Timestamp) })
	if limit := normalizeLimit(filter.Limit); len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func decodeRedisRecord(identifier, session, value string) (Record, error) {
	id, stamp, ok := strings.Cut(value, "|")
	if !ok {
		return Record{}, fmt.Errorf("malformed attendance entry for %s in %s", identifier, session)
	}
	ts, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return Record{}, fmt.Errorf("attendance entry for %s in %s: %w", identifier, session, err)
	}
	return Record{ID: id, Identifier: identifier, Session: session, Timestamp: ts}, nil
}
