package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	httpapi "github.com/fleetdispatch/fleetdispatch/internal/api/http"
	appCampaign "github.com/fleetdispatch/fleetdispatch/internal/application/campaign"
	appCommand "github.com/fleetdispatch/fleetdispatch/internal/application/command"
	appPosition "github.com/fleetdispatch/fleetdispatch/internal/application/position"
	"github.com/fleetdispatch/fleetdispatch/internal/application/presence"
	"github.com/fleetdispatch/fleetdispatch/internal/application/scheduler"
	appStatus "github.com/fleetdispatch/fleetdispatch/internal/application/status"
	"github.com/fleetdispatch/fleetdispatch/internal/application/sweeper"
	"github.com/fleetdispatch/fleetdispatch/internal/application/syncer"
	"github.com/fleetdispatch/fleetdispatch/internal/config"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/campaign"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/command"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/measurement"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/outbox"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/position"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/status"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/auth"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/backend"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/boltdb"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/metrics"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/postgres"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/stream"
)

// repositories is the state store selected by configuration.
type repositories struct {
	campaigns    campaign.Repository
	commands     command.Repository
	statuses     status.Repository
	outbox       outbox.Repository
	measurements measurement.Repository
	positions    position.Repository
	close        func()
}

// app is the wired service graph shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
	repos   *repositories

	commandStream *stream.CommandStream
	updateStream  *stream.UpdateStream
	pusher        *syncer.Pusher
	puller        *syncer.Puller
	sweeper       *sweeper.Service
	api           *httpapi.Server
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

func openRepositories(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*repositories, error) {
	switch cfg.StoreDriver {
	case config.StoreBolt:
		store, err := boltdb.Open(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("bolt error: %w", err)
		}
		logger.Info().Str("path", cfg.BoltPath).Msg("using bolt store")
		return &repositories{
			campaigns:    store.Campaigns(),
			commands:     store.Commands(),
			statuses:     store.StatusEvents(),
			outbox:       store.Outbox(),
			measurements: store.Measurements(),
			positions:    store.Positions(),
			close:        func() { _ = store.Close() },
		}, nil
	default:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migration error: %w", err)
		}
		return &repositories{
			campaigns:    postgres.NewCampaignRepository(pool),
			commands:     postgres.NewCommandRepository(pool),
			statuses:     postgres.NewStatusRepository(pool),
			outbox:       postgres.NewOutboxRepository(pool),
			measurements: postgres.NewMeasurementRepository(pool),
			positions:    postgres.NewPositionRepository(pool),
			close:        pool.Close,
		}, nil
	}
}

func buildApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	logger := newLogger(cfg.LogLevel)
	m := metrics.New()

	repos, err := openRepositories(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}

	streamOpts := func(name string) stream.Options {
		return stream.Options{
			Name:              name,
			HeartbeatInterval: cfg.HeartbeatInterval,
			IdleTimeout:       cfg.StreamIdleTimeout,
		}
	}
	commandStream := stream.NewCommandStream(streamOpts("commands"), repos.commands, m, logger)
	updateStream := stream.NewUpdateStream(streamOpts("updates"), m, logger)

	client := backend.NewClient(cfg.BackendURL, cfg.BackendToken, cfg.BackendTimeout, cfg.BackendShortTimeout)
	laneOpts := syncer.LaneOptions{MaxBackoff: cfg.OutboxMaxBackoff, Metrics: m, Logger: logger}
	campaignLane := syncer.NewLane(outbox.KindCampaign, backend.CampaignsPath, repos.outbox, client,
		func(ctx context.Context, id uuid.UUID) (*campaign.Campaign, bool, error) {
			c, err := repos.campaigns.GetByID(ctx, id)
			return c, c != nil, err
		}, laneOpts)
	positionLane := syncer.NewLane(outbox.KindPosition, backend.PositionsPath, repos.outbox, client,
		func(ctx context.Context, id uuid.UUID) (*position.Position, bool, error) {
			p, err := repos.positions.GetByID(ctx, id)
			return p, p != nil, err
		}, laneOpts)
	pusher := syncer.NewPusher(logger, campaignLane, positionLane)
	puller := syncer.NewPuller(repos.campaigns, repos.measurements, client, updateStream, m, logger)

	presenceSvc := presence.NewService(repos.statuses, repos.campaigns)
	schedulerSvc := scheduler.NewService(repos.commands, presenceSvc, commandStream, logger)
	campaignSvc := appCampaign.NewService(repos.campaigns, repos.outbox, pusher, schedulerSvc, presenceSvc,
		appCampaign.Options{RequireOnline: cfg.CampaignRequireOnline}, logger)
	statusSvc := appStatus.NewService(repos.statuses, repos.commands, repos.campaigns, schedulerSvc, campaignSvc, updateStream, logger)
	positionSvc := appPosition.NewService(repos.positions, repos.campaigns, repos.outbox, pusher, updateStream, logger)
	commandSvc := appCommand.NewService(repos.commands, repos.campaigns, schedulerSvc, logger)
	sweeperSvc := sweeper.NewService(repos.commands, cfg.CommandTimeout, m, logger)

	api := httpapi.NewServer(httpapi.Deps{
		Campaigns:     campaignSvc,
		Commands:      commandSvc,
		Statuses:      statusSvc,
		Positions:     positionSvc,
		CommandStream: commandStream,
		UpdateStream:  updateStream,
		Outbox:        repos.outbox,
		Verifier:      auth.NewVerifier(cfg.APITokens),
		Metrics:       m,
		Logger:        logger,
	})

	return &app{
		cfg:           cfg,
		logger:        logger,
		metrics:       m,
		repos:         repos,
		commandStream: commandStream,
		updateStream:  updateStream,
		pusher:        pusher,
		puller:        puller,
		sweeper:       sweeperSvc,
		api:           api,
	}, nil
}

func (a *app) Close() {
	a.repos.close()
}
