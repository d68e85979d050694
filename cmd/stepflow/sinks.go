package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spetersoncode/stepflow/sink"
	"github.com/spetersoncode/stepflow/sink/kafka"
	"github.com/spetersoncode/stepflow/sink/mongo"
	"github.com/spetersoncode/stepflow/sink/postgres"
	"github.com/spetersoncode/stepflow/sink/redis"
	"github.com/spetersoncode/stepflow/sink/s3"
	"github.com/spetersoncode/stepflow/sink/sqlite"
	"github.com/spetersoncode/stepflow/workflow"
)

// sinkSet is the set of configured exporters.
type sinkSet struct {
	sink.Sink

	// Store is the first configured sink that can be queried, or nil.
	Store RunStore

	Close func()
}

// openSinks connects every configured sink. Close releases all connections.
func openSinks(ctx context.Context, cfg *Config) (*sinkSet, error) {
	var (
		sinks   []sink.Sink
		closers []func()
		store   RunStore
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	for _, name := range cfg.Sinks {
		switch name {
		case "sqlite":
			db, err := sqlite.Open(ctx, cfg.SQLitePath)
			if err != nil {
				closeAll()
				return nil, fmt.Errorf("sqlite sink: %w", err)
			}
			sinks = append(sinks, db)
			closers = append(closers, func() { db.Close() })
			if store == nil {
				store = db
			}
		case "postgres":
			pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
			if err != nil {
				closeAll()
				return nil, fmt.Errorf("postgres sink: %w", err)
			}
			sinks = append(sinks, pool)
			closers = append(closers, pool.Close)
			if store == nil {
				store = pool
			}
		case "mongo":
			docs, err := mongo.Connect(ctx, cfg.MongoURI, "", "")
			if err != nil {
				closeAll()
				return nil, fmt.Errorf("mongo sink: %w", err)
			}
			sinks = append(sinks, docs)
			closers = append(closers, func() { docs.Close(context.Background()) })
			if store == nil {
				store = docs
			}
		case "kafka":
			k := kafka.Dial(cfg.KafkaTopic, cfg.KafkaBrokers...)
			sinks = append(sinks, k)
			closers = append(closers, func() { k.Close() })
		case "redis":
			var opts []redis.Option
			if cfg.RedisTTL > 0 {
				opts = append(opts, redis.WithTTL(cfg.RedisTTL))
			}
			r, client, err := redis.Dial(cfg.RedisURL, opts...)
			if err != nil {
				closeAll()
				return nil, fmt.Errorf("redis sink: %w", err)
			}
			sinks = append(sinks, r)
			closers = append(closers, func() { client.Close() })
		case "s3":
			s, err := s3.Dial(s3.Config{
				Endpoint:  cfg.S3Endpoint,
				AccessKey: cfg.S3AccessKey,
				SecretKey: cfg.S3SecretKey,
				Bucket:    cfg.S3Bucket,
				Region:    cfg.S3Region,
				UseSSL:    cfg.S3UseSSL,
			})
			if err == nil {
				err = s.EnsureBucket(ctx)
			}
			if err != nil {
				closeAll()
				return nil, fmt.Errorf("s3 sink: %w", err)
			}
			sinks = append(sinks, s)
		}
		slog.Debug("sink enabled", "sink", name)
	}

	set := &sinkSet{Sink: sink.Discard, Store: store, Close: closeAll}
	if len(sinks) > 0 {
		set.Sink = sink.Multi(sinks...)
	}
	return set, nil
}

// exportResult writes res to s, logging failures instead of returning them.
func exportResult(ctx context.Context, s sink.Sink, res *workflow.RunResult) {
	if res == nil {
		return
	}
	if err := s.Write(context.WithoutCancel(ctx), sink.FromResult(res)); err != nil {
		slog.Error("failed to export run", "run_id", res.RunID, "workflow", res.Workflow, "error", err)
	}
}
