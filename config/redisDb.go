package config

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)

func GetRedisDB() *redis.Client {
	return rdb
}

func GetRedisLock() *redislock.Client {
	return locker
}

func init() {
	godotenv.Load()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		// Redis is optional: CLI tools run without it (the MySQL advisory lock
		// is the correctness guard); the admin server uses redislock only to
		// shed duplicate trigger requests.
		return
	}

	rdb = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       IntFromEnv("REDIS_DB", 0),
	})
	locker = redislock.New(rdb)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("redis configured but not reachable: %v", err)
	}
}

// ObtainRunLock takes a short redis lock keyed per business, used by the admin
// server to reject concurrent classify triggers early (before a DB connection
// is even touched). Returns nil lock when redis is not configured.
func ObtainRunLock(ctx context.Context, businessId string, ttl time.Duration) (*redislock.Lock, error) {
	lk := GetRedisLock()
	if lk == nil {
		return nil, nil
	}
	lock, err := lk.Obtain(ctx, "settlement:classify:"+businessId, ttl, nil)
	if err == redislock.ErrNotObtained {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}
