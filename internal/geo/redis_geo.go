package geo

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/fleet-tracking/internal/models"
)

// RedisLastKnown implements LastKnown on Redis GEO commands so multiple
// readers (server, analytics) share one last-position view.
type RedisLastKnown struct {
	client *redis.Client
	key    string
	ctx    context.Context
}

func NewRedisLastKnown(addr, password, key string) *RedisLastKnown {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisLastKnown{client: c, key: key, ctx: context.Background()}
}

func (r *RedisLastKnown) Upsert(rec models.PositionRecord) {
	// GEOADD for the coordinate plus HSET for the report timestamp
	_, _ = r.client.GeoAdd(r.ctx, r.key, &redis.GeoLocation{Longitude: rec.Longitude, Latitude: rec.Latitude, Name: rec.ActorID}).Result()
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_ = r.client.HSet(r.ctx, metaKey(rec.ActorID), map[string]interface{}{"ts": strconv.FormatInt(ts.UnixMilli(), 10)}).Err()
}

func (r *RedisLastKnown) Last(actorID string) (models.PositionRecord, bool) {
	pos, err := r.client.GeoPos(r.ctx, r.key, actorID).Result()
	if err != nil || len(pos) == 0 || pos[0] == nil {
		return models.PositionRecord{}, false
	}
	rec := models.PositionRecord{ActorID: actorID, Latitude: pos[0].Latitude, Longitude: pos[0].Longitude}
	if m, err := r.client.HGetAll(r.ctx, metaKey(actorID)).Result(); err == nil {
		if v, ok := m["ts"]; ok {
			if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
				rec.Timestamp = time.UnixMilli(ms)
			}
		}
	}
	return rec, true
}

func (r *RedisLastKnown) Close() error { return r.client.Close() }

func metaKey(id string) string { return "actor:pos:" + id }
