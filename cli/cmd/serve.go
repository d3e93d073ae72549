package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lmsfoundry/scormhost/adapter"
	"github.com/lmsfoundry/scormhost/adapter/redis"
	"github.com/lmsfoundry/scormhost/adapter/webhook"
	"github.com/lmsfoundry/scormhost/cli/config"
	"github.com/lmsfoundry/scormhost/content"
	"github.com/lmsfoundry/scormhost/fetch"
	"github.com/lmsfoundry/scormhost/httpapi"
	"github.com/lmsfoundry/scormhost/log"
	"github.com/lmsfoundry/scormhost/metrics"
	"github.com/lmsfoundry/scormhost/player"
	"github.com/lmsfoundry/scormhost/service"
)

// shutdownGrace bounds the drain of in-flight HTTP requests on stop.
const shutdownGrace = 10 * time.Second

// ServeCommand returns the serve command, the long-running server
// entrypoint.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the course hosting server",
		Flags: []cli.Flag{
			ConfigFlag,
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Listen address (overrides config)",
			},
			&cli.StringFlag{
				Name:  "scratch-dir",
				Usage: "Directory for extracted package trees (overrides config)",
			},
			&cli.IntFlag{
				Name:  "pass-mark",
				Usage: "Default pass-mark percentage (overrides config)",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyServeOverrides(c, cfg)

	logger := log.NewLogger("scormhost")
	collector := metrics.NewCollector()

	svc, err := buildService(cfg, logger, collector)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	server := httpapi.New(httpapi.Config{Addr: cfg.ListenAddr}, svc, logger)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start http server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return server.Stop(shutdownCtx)
}

// applyServeOverrides layers CLI flags over config file values.
func applyServeOverrides(c *cli.Context, cfg *config.Config) {
	if v := c.String("listen"); v != "" {
		cfg.ListenAddr = v
	}
	if v := c.String("scratch-dir"); v != "" {
		cfg.ScratchDir = v
	}
	if v := c.Int("pass-mark"); v > 0 {
		cfg.PassMark = v
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = filepath.Join(os.TempDir(), "scormhost")
	}
}

// buildService assembles the service facade from configuration.
func buildService(cfg *config.Config, logger *log.Logger, collector *metrics.Collector) (*service.Service, error) {
	fetcher := fetch.New(fetch.Config{
		Timeout:         cfg.Fetch.Timeout.Duration,
		MaxArchiveBytes: cfg.Fetch.MaxArchiveBytes,
		S3: fetch.S3Config{
			Region:       cfg.Fetch.S3.Region,
			Endpoint:     cfg.Fetch.S3.Endpoint,
			UsePathStyle: cfg.Fetch.S3.PathStyle,
		},
	}, logger)

	cache, err := content.NewCache(content.CacheConfig{
		ScratchDir:      cfg.ScratchDir,
		TTL:             cfg.Cache.TTL.Duration,
		MaxEntries:      cfg.Cache.MaxEntries,
		PipelineTimeout: cfg.Cache.PipelineTimeout.Duration,
	}, fetcher, logger, collector)
	if err != nil {
		return nil, err
	}

	adapters, err := buildAdapters(cfg.Adapter)
	if err != nil {
		return nil, err
	}

	return service.New(service.Config{
		PassMark: cfg.PassMark,
	}, cache, player.NewSynthesizer(logger), adapters, collector, logger), nil
}

// buildAdapters constructs the configured completion-event publisher.
// An empty type means no publication.
func buildAdapters(cfg config.AdapterConfig) ([]adapter.Adapter, error) {
	switch cfg.Type {
	case "":
		return nil, nil

	case "webhook":
		retries := webhook.DefaultRetries
		if cfg.Retries != nil {
			retries = *cfg.Retries
		}
		a, err := webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return []adapter.Adapter{a}, nil

	case "redis":
		retries := redis.DefaultRetries
		if cfg.Retries != nil {
			retries = *cfg.Retries
		}
		a, err := redis.New(redis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return []adapter.Adapter{a}, nil

	default:
		return nil, fmt.Errorf("unsupported adapter type: %s (must be webhook or redis)", cfg.Type)
	}
}
