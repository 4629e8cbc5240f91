package data

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statePrefix    = "oauthstate:"
	streamProgress = "broadcaster.progress"
)

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

func SetOAuthState(ctx context.Context, rdb *redis.Client, state string) error {
	return rdb.Set(ctx, statePrefix+state, "1", 5*time.Minute).Err()
}

func ConsumeOAuthState(ctx context.Context, rdb *redis.Client, state string) (bool, error) {
	res, err := rdb.GetDel(ctx, statePrefix+state).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res == "1", nil
}

// PublishProgress emits a job progress checkpoint to the progress stream.
func PublishProgress(ctx context.Context, rdb *redis.Client, payload map[string]interface{}) error {
	_, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamProgress,
		Values: payload,
	}).Result()
	return err
}
