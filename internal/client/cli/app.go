package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/iudanet/fieldsync/internal/client/api"
	"github.com/iudanet/fieldsync/internal/client/connectivity"
	"github.com/iudanet/fieldsync/internal/client/coordinator"
	"github.com/iudanet/fieldsync/internal/client/drafts"
	"github.com/iudanet/fieldsync/internal/client/iocli"
	"github.com/iudanet/fieldsync/internal/client/retry"
	"github.com/iudanet/fieldsync/internal/client/storage"
	"github.com/iudanet/fieldsync/internal/client/storage/boltdb"
	"github.com/iudanet/fieldsync/internal/client/upload"
	"github.com/iudanet/fieldsync/internal/config"
	"github.com/iudanet/fieldsync/internal/metrics"
	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/syncerr"
)

// tokenKey хранит токен в той же БД, что и черновики (не пересекается с draft:)
const tokenKey = "auth:token"

// app is the wired client for one command invocation
type app struct {
	kv     *boltdb.Storage
	drafts *drafts.Store
	client *api.Client
	prober *connectivity.Prober
	coord  *coordinator.Coordinator
	router *remoteRouter
	io     iocli.IO
	logger *slog.Logger
	reg    *prometheus.Registry
	stop   context.CancelFunc
	cfg    config.Client
	opts   RootOptions
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func loadClientConfig(opts *RootOptions) (config.Client, error) {
	cfg, err := config.Load(opts.ConfigPath, true)
	if err != nil {
		return config.Client{}, err
	}
	if opts.ServerURL != "" {
		cfg.Client.ServerURL = opts.ServerURL
	}
	if opts.DBPath != "" {
		cfg.Client.DBPath = opts.DBPath
	}
	return cfg.Client, nil
}

// openStore opens only the local database
func openStore(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*boltdb.Storage, *drafts.Store, error) {
	cfg, err := loadClientConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	kv, err := boltdb.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return kv, drafts.New(kv, newLogger(cmd.ErrOrStderr(), opts.Verbose)), nil
}

// openApp wires storage, transport, connectivity and the session registry
func openApp(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*app, error) {
	cfg, err := loadClientConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	policy, err := retry.NewPolicy(cfg.Retry)
	if err != nil {
		return nil, err
	}

	kv, err := boltdb.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a := &app{
		kv:     kv,
		drafts: drafts.New(kv, logger),
		client: api.NewClient(cfg.ServerURL),
		io:     iocli.NewStdio(cmd.InOrStdin(), cmd.OutOrStdout()),
		logger: logger,
		reg:    prometheus.NewRegistry(),
		cfg:    cfg,
		opts:   *opts,
	}
	a.client.SetToken(a.resolveToken(ctx))

	a.router = newRemoteRouter(a.client, upload.NewSaver(a.client, a.client, logger))
	a.prober = connectivity.NewProber(a.client, cfg.HealthInterval, logger)

	// Первая проверка синхронно: от нее зависит, армятся ли сохранения
	a.prober.Probe(ctx)
	probeCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	a.stop = stop
	go a.prober.Run(probeCtx)

	a.coord, err = coordinator.New(coordinator.Options{
		Remote:      a.router,
		Drafts:      a.drafts,
		Policy:      policy,
		Signal:      a.prober,
		Logger:      logger,
		Metrics:     metrics.NewEngine(a.reg),
		Window:      cfg.SettleWindow,
		SaveTimeout: cfg.SaveTimeout,
	})
	if err != nil {
		stop()
		_ = kv.Close()
		return nil, err
	}

	return a, nil
}

func (a *app) resolveToken(ctx context.Context) string {
	if a.opts.Token != "" {
		return a.opts.Token
	}
	if token := os.Getenv("FIELDSYNC_TOKEN"); token != "" {
		return token
	}
	if a.cfg.Token != "" {
		return a.cfg.Token
	}
	data, err := a.kv.Get(ctx, tokenKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			a.logger.Warn("Failed to read stored token", "error", err)
		}
		return ""
	}
	return string(data)
}

// Close persists unsent edits and releases resources
func (a *app) Close(ctx context.Context) error {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.SaveTimeout)
	defer cancel()

	err := a.coord.Close(closeCtx)
	a.stop()
	if a.opts.Verbose {
		a.logMetrics()
	}
	return multierr.Append(err, a.kv.Close())
}

// logMetrics выводит счетчики движка за время команды
func (a *app) logMetrics() {
	families, err := a.reg.Gather()
	if err != nil {
		a.logger.Debug("Failed to gather metrics", "error", err)
		return
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			attrs := []any{"metric", mf.GetName()}
			for _, lp := range m.GetLabel() {
				attrs = append(attrs, lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				attrs = append(attrs, "value", m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				attrs = append(attrs, "value", m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				attrs = append(attrs,
					"count", m.GetHistogram().GetSampleCount(),
					"sum", m.GetHistogram().GetSampleSum())
			}
			a.logger.Debug("Engine metric", attrs...)
		}
	}
}

// fetch returns the remote state of a field. While the store is unreachable
// it falls back to the local draft and reports confirmed=false.
func (a *app) fetch(ctx context.Context, entityID, fieldID string) (field models.EditableField, confirmed bool, err error) {
	if a.prober.Online() {
		field, err = a.client.Get(ctx, entityID, fieldID)
		if err == nil {
			return field, true, nil
		}
		if syncerr.Classify(err) != syncerr.KindNetwork {
			return models.EditableField{}, false, err
		}
		a.prober.Set(false)
	}

	field = models.EditableField{EntityID: entityID, FieldID: fieldID}
	if draft, ok := a.drafts.Load(ctx, entityID, fieldID); ok {
		field.Version = draft.Version
	}
	return field, false, nil
}

func (a *app) waitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.opts.Timeout)
}

func (a *app) since(t time.Time) string {
	return time.Since(t).Round(time.Second).String()
}
