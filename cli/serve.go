package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Xangel0s/docqr-Flex-sub000/api"
	"github.com/Xangel0s/docqr-Flex-sub000/config"
	"github.com/Xangel0s/docqr-Flex-sub000/lock"
	"github.com/Xangel0s/docqr-Flex-sub000/logging"
	"github.com/Xangel0s/docqr-Flex-sub000/orchestrator"
	"github.com/Xangel0s/docqr-Flex-sub000/qrcode"
	"github.com/Xangel0s/docqr-Flex-sub000/storage"
	"github.com/Xangel0s/docqr-Flex-sub000/store"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFromContext(ctx)
			logger := logging.FromContext(ctx)
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func serve(ctx context.Context, cfg *config.AppConfig, logger *log.Logger) error {
	files, err := storage.NewLocal(cfg.Storage.Root)
	if err != nil {
		return err
	}

	records, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	locker, closeLock, err := openLocker(ctx, cfg.Lock, logger)
	if err != nil {
		return err
	}
	defer closeLock()

	orch, err := buildOrchestrator(cfg, orchestrator.Deps{
		Storage: files,
		Store:   records,
		Locker:  locker,
	}, orchestrator.ObserverFunc(func(_ context.Context, t orchestrator.Transition) {
		if t.To == orchestrator.Failed {
			logger.Warn("job failed", "job_id", t.JobID, "document_id", t.DocumentID, "err", t.Err)
		}
	}), logger)
	if err != nil {
		return err
	}

	codes, err := qrcode.New(cfg.Code.BaseURL, cfg.Code.Size, cfg.Code.Level)
	if err != nil {
		return err
	}

	srv := api.New(orch, records, files, codes,
		api.WithLogger(logger),
		api.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	)
	logger.Info("storage ready", "root", files.Root(), "store", cfg.Store.Driver, "lock", cfg.Lock.Driver)
	return api.ListenAndServe(ctx, cfg.Server.Addr, srv.Routes(), cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, logger)
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, func(), error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemory(), func() {}, nil
	case "mongo":
		m, err := store.NewMongo(ctx, cfg.URI, cfg.Database, cfg.Collection)
		if err != nil {
			return nil, nil, fmt.Errorf("open record store: %w", err)
		}
		return m, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			m.Close(closeCtx)
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func openLocker(ctx context.Context, cfg config.LockConfig, logger *log.Logger) (lock.Locker, func(), error) {
	switch cfg.Driver {
	case "local":
		return lock.NewLocal(), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		return lock.NewRedis(client, lock.WithTTL(cfg.TTL), lock.WithLogger(logger)), func() { client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown lock driver %q", cfg.Driver)
}
