package deps

import (
	"context"
	"log/slog"

	"github.com/bwise1/sosedi/config"
	"github.com/bwise1/sosedi/internal/activity"
	"github.com/bwise1/sosedi/internal/auth"
	"github.com/bwise1/sosedi/internal/chat"
	"github.com/bwise1/sosedi/internal/db"
	"github.com/bwise1/sosedi/internal/feed"
	"github.com/bwise1/sosedi/internal/http/geocoder"
	"github.com/bwise1/sosedi/internal/relations"
	"github.com/bwise1/sosedi/internal/store"
	"github.com/bwise1/sosedi/internal/store/memory"
	"github.com/bwise1/sosedi/internal/store/postgres"
	"github.com/bwise1/sosedi/util/storage"
	"github.com/bwise1/sosedi/util/websockets"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type Dependencies struct {
	Logger    *slog.Logger
	DB        *db.DB
	Store     store.Store
	Feed      *feed.Service
	Relations *relations.Engine
	Chat      *chat.Engine
	Hub       *chat.Hub
	Relay     *chat.RedisRelay
	Activity  activity.Publisher
	Blobs     storage.Blobs
	Verifier  auth.Verifier
	WebSocket *websockets.WebSocketManager

	redis *redis.Client
	kafka *activity.Kafka
}

// New assembles the service graph from cfg. Optional backends (postgres,
// redis, kafka, cloudinary, geocoder) are used only when configured.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	if cfg.JwtSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}
	d := &Dependencies{Logger: logger, Activity: activity.Nop{}}

	if cfg.Dsn != "" {
		database, err := db.New(cfg.Dsn)
		if err != nil {
			return nil, errors.Wrap(err, "connect to database")
		}
		d.DB = database
		d.Store = postgres.New(database)
	} else {
		logger.Warn("DSN not set, using the in-memory store")
		d.Store = memory.New()
	}

	if len(cfg.KafkaBrokers) > 0 {
		d.kafka = activity.NewKafka(activity.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, logger)
		d.Activity = d.kafka
	}

	if cfg.UseCloudinary() {
		c, err := storage.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			d.Close()
			return nil, errors.Wrap(err, "configure cloudinary")
		}
		d.Blobs = c
	} else {
		d.Blobs = storage.NewDisk(cfg.UploadDir)
	}

	opts := []feed.Option{feed.WithActivity(d.Activity), feed.WithLogger(logger)}
	if cfg.GeocoderURL != "" || cfg.GeocoderAPIKey != "" {
		gc, err := geocoder.NewClient(cfg.GeocoderURL, cfg.GeocoderAPIKey)
		if err != nil {
			d.Close()
			return nil, err
		}
		opts = append(opts, feed.WithAddressResolver(gc))
	}
	d.Feed = feed.New(d.Store, opts...)
	if err := d.Feed.Warm(ctx); err != nil {
		d.Close()
		return nil, errors.Wrap(err, "warm proximity indexes")
	}

	d.Relations = relations.New(d.Store, d.Activity)

	d.Hub = chat.NewHub(logger)
	var out chat.Publisher
	if cfg.RedisAddr != "" {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := d.redis.Ping(ctx).Err(); err != nil {
			d.Close()
			return nil, errors.Wrap(err, "connect to redis")
		}
		d.Relay = chat.NewRedisRelay(d.redis, d.Hub, logger)
		out = d.Relay
	}
	d.Chat = chat.New(d.Store, d.Hub, out, d.Activity)
	d.WebSocket = websockets.NewWebSocketManager(d.Chat, logger)

	d.Verifier = auth.NewJWTVerifier(cfg.JwtSecret)
	return d, nil
}

// Run drives the background loops until ctx is done.
func (d *Dependencies) Run(ctx context.Context) {
	go d.Hub.Run(ctx)
	if d.Relay != nil {
		go func() {
			if err := d.Relay.Run(ctx); err != nil {
				d.Logger.Error("chat relay stopped", "error", err)
			}
		}()
	}
}

// Close releases every backend connection.
func (d *Dependencies) Close() {
	if d.WebSocket != nil {
		d.WebSocket.Shutdown()
	}
	if d.kafka != nil {
		if err := d.kafka.Close(); err != nil {
			d.Logger.Warn("close activity writer", "error", err)
		}
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.Store != nil {
		_ = d.Store.Close()
	}
}
