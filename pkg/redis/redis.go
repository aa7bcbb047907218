package redis

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func Connect(config Config, log *zap.Logger) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%s", config.Host, config.Port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     100,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("redis connected", zap.String("addr", addr))
	return client, nil
}

var statKeys = map[string]bool{
	"redis_version":     true,
	"connected_clients": true,
	"used_memory_human": true,
	"keyspace_hits":     true,
	"keyspace_misses":   true,
	"uptime_in_seconds": true,
}

// GetStats returns a few INFO fields for the system stats endpoint.
func GetStats(ctx context.Context, client *redis.Client) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	info, err := client.Info(ctx).Result()
	if err != nil {
		return nil, err
	}
	return ParseInfo(info), nil
}

// ParseInfo extracts the fields in statKeys from an INFO reply.
func ParseInfo(info string) map[string]string {
	stats := make(map[string]string)

	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if found && statKeys[key] {
			stats[key] = value
		}
	}
	return stats
}
