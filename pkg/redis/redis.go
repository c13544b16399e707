package redis

import (
	"SkiMonitor/internal/entity"
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const latestTTL = time.Minute

type Config struct {
	Address  string
	Password string
	DB       int
	Channel  string
}

// IRedis mirrors published snapshots so other processes on the network can
// read the sensor without polling HTTP.
type IRedis interface {
	PublishSnapshot(ctx context.Context, snapshot entity.Snapshot) error
	Close() error
}

type redisClient struct {
	client  *redis.Client
	channel string
	key     string
	log     *logrus.Logger
}

func New(cfg Config, logger *logrus.Logger) IRedis {
	logger.Info(fmt.Sprintf("Connecting to Redis at %s...", cfg.Address))

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logger.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logger.Info("Successfully connected to Redis")
	}

	return NewWithClient(client, cfg.Channel, logger)
}

func NewWithClient(client *redis.Client, channel string, logger *logrus.Logger) IRedis {
	return &redisClient{
		client:  client,
		channel: channel,
		key:     channel + ":latest",
		log:     logger,
	}
}

func (r *redisClient) PublishSnapshot(ctx context.Context, snapshot entity.Snapshot) error {
	payload, err := jsoniter.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key, payload, latestTTL)
	pipe.Publish(ctx, r.channel, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Debug(fmt.Sprintf("Error mirroring snapshot to %s: %v", r.channel, err))
		return fmt.Errorf("mirror snapshot: %w", err)
	}

	return nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}
