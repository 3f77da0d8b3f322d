package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/soclens/soclens/internal/bus"
	"github.com/soclens/soclens/internal/cache"
	"github.com/soclens/soclens/internal/checkpoint"
	"github.com/soclens/soclens/internal/config"
	"github.com/soclens/soclens/internal/handlers"
	"github.com/soclens/soclens/internal/hub"
	"github.com/soclens/soclens/internal/logging"
	"github.com/soclens/soclens/internal/model"
	"github.com/soclens/soclens/internal/normalize"
	"github.com/soclens/soclens/internal/pipeline"
	"github.com/soclens/soclens/internal/server"
	"github.com/soclens/soclens/internal/store"
	"github.com/soclens/soclens/internal/syslog"
	"github.com/soclens/soclens/internal/upstream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Live caches, one per stream.
	alertCache := cache.New(cfg.Pipelines.Alerts.CacheSize)
	agentCache := cache.New(cfg.Pipelines.Agents.CacheSize)

	liveHub := hub.New(
		[]hub.Stream{
			{Name: model.StreamAlerts, Snapshot: alertCache.Snapshot},
			{Name: model.StreamAgents, Snapshot: agentCache.Snapshot},
		},
		hub.Options{
			SendBuffer:     cfg.Hub.SendBuffer,
			WriteTimeout:   cfg.Hub.WriteTimeout,
			PingInterval:   cfg.Hub.PingInterval,
			AllowedOrigins: cfg.Server.CORSOrigins,
		},
		log,
	)
	defer liveHub.Close()

	alertSinks := []pipeline.Sink{liveHub}
	agentSinks := []pipeline.Sink{liveHub}

	// Optional Postgres mirror.
	var pgStore *store.PostgresStore
	if cfg.Postgres.Enabled {
		log.Info("running database migrations")
		if err := store.RunMigrations(cfg.Postgres.Migrations, cfg.Postgres.ConnString()); err != nil {
			return err
		}
		pgStore, err = store.NewPostgresStore(ctx, cfg.Postgres.ConnString())
		if err != nil {
			return err
		}
		defer pgStore.Close()
		alertSinks = append(alertSinks, store.NewEventSink(pgStore))
	}

	// Optional NATS delta mirror.
	if cfg.NATS.Enabled {
		nc, err := bus.Connect(cfg.NATS.URL, cfg.NATS.Name)
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		defer nc.Close()
		mirror := bus.NewMirror(nc)
		alertSinks = append(alertSinks, mirror)
		agentSinks = append(agentSinks, mirror)
	}

	// Optional Redis checkpoint.
	var checkpointer pipeline.Checkpointer
	var checkpoints *checkpoint.Store
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
		checkpoints = checkpoint.New(client)
		checkpointer = checkpoints
	}

	alertSource, err := upstream.NewAlertSource(cfg.OpenSearch)
	if err != nil {
		return err
	}
	wazuhClient := upstream.NewWazuhClient(upstream.WazuhOptions{
		URL:      cfg.Wazuh.URL,
		Username: cfg.Wazuh.Username,
		Password: cfg.Wazuh.Password,
		Insecure: cfg.Wazuh.Insecure,
		Timeout:  cfg.Wazuh.Timeout,
		TokenTTL: cfg.Wazuh.TokenTTL,
	})
	// When the manager API is down the agent set is derived from recent
	// alerts, so the agents stream degrades instead of going silent.
	agentSource := upstream.NewFallbackAgentSource(wazuhClient, alertCache.Snapshot)

	offlineAfter := cfg.Pipelines.OfflineAfter

	alertPipeline := pipeline.New(
		pipeline.Config{
			Stream:   model.StreamAlerts,
			Interval: cfg.Pipelines.Alerts.Interval,
			PageSize: cfg.Pipelines.Alerts.PageSize,
		},
		alertSource,
		func(raw map[string]any) (model.Entity, error) { return normalize.Alert(raw) },
		alertCache,
		alertSinks,
		checkpointer,
		log,
	)
	agentPipeline := pipeline.New(
		pipeline.Config{
			Stream:   model.StreamAgents,
			Interval: cfg.Pipelines.Agents.Interval,
			PageSize: cfg.Pipelines.Agents.PageSize,
			Upsert:   true,
		},
		agentSource,
		func(raw map[string]any) (model.Entity, error) {
			return normalize.Agent(raw, time.Now().UTC(), offlineAfter)
		},
		agentCache,
		agentSinks,
		checkpointer,
		log,
	)

	if checkpoints != nil {
		restore(ctx, checkpoints, model.StreamAlerts, checkpoint.DecodeEvent, alertPipeline, alertCache, log)
		restore(ctx, checkpoints, model.StreamAgents, checkpoint.DecodeAgent, agentPipeline, agentCache, log)
	}

	if err := alertPipeline.Start(ctx); err != nil {
		return err
	}
	defer alertPipeline.Stop()
	if err := agentPipeline.Start(ctx); err != nil {
		return err
	}
	defer agentPipeline.Stop()

	// Optional UDP intake. Pushed events share the alert cache and sinks,
	// minus the hub-independent paths already wired above.
	if cfg.Syslog.Enabled {
		listener := syslog.NewListener(cfg.Syslog.Addr, alertCache, alertSinks, log)
		if err := listener.Start(ctx); err != nil {
			return err
		}
		defer listener.Stop()
	}

	handler := handlers.New(alertCache, agentCache, pgStore, alertSinks, offlineAfter, log)
	srv := server.New(cfg.Server, server.NewRouter(handler, liveHub, cfg.Server.CORSOrigins), log)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// restore loads a stream's checkpoint into its pipeline and cache before
// the first poll, so a restart resumes instead of refetching history.
func restore(
	ctx context.Context,
	cp *checkpoint.Store,
	stream string,
	decode func(raw json.RawMessage) (model.Entity, error),
	p *pipeline.Pipeline,
	c *cache.Cache,
	log *logging.Logger,
) {
	watermark, entities, err := cp.Load(ctx, stream, decode)
	if err != nil {
		log.Warn("checkpoint restore failed, starting cold", "stream", stream, "error", err)
		return
	}
	if watermark.IsZero() && len(entities) == 0 {
		return
	}
	p.SetWatermark(watermark)
	c.InsertBatch(entities)
	log.Info("checkpoint restored", "stream", stream,
		"watermark", watermark.Format(time.RFC3339), "entries", len(entities))
}
