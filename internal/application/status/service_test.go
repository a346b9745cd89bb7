package status

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appCampaign "github.com/fleetdispatch/fleetdispatch/internal/application/campaign"
	"github.com/fleetdispatch/fleetdispatch/internal/application/presence"
	"github.com/fleetdispatch/fleetdispatch/internal/application/scheduler"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/apperror"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/campaign"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/command"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/outbox"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/status"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/boltdb"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/metrics"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/stream"
)

type nopTrigger struct{}

func (nopTrigger) Trigger() {}

type fixture struct {
	store     *boltdb.Store
	commands  command.Repository
	statuses  status.Repository
	campaigns campaign.Repository
	scheduler *scheduler.Service
	campaign  *appCampaign.Service
	updates   *stream.UpdateStream
	svc       *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := boltdb.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := zerolog.Nop()
	m := metrics.New()
	f := &fixture{
		store:     store,
		commands:  store.Commands(),
		statuses:  store.StatusEvents(),
		campaigns: store.Campaigns(),
	}
	presenceSvc := presence.NewService(f.statuses, f.campaigns)
	commandStream := stream.NewCommandStream(stream.Options{}, f.commands, m, logger)
	f.scheduler = scheduler.NewService(f.commands, presenceSvc, commandStream, logger)
	f.campaign = appCampaign.NewService(f.campaigns, store.Outbox(), nopTrigger{}, f.scheduler, presenceSvc, appCampaign.Options{}, logger)
	f.updates = stream.NewUpdateStream(stream.Options{}, m, logger)
	f.svc = NewService(f.statuses, f.commands, f.campaigns, f.scheduler, f.campaign, f.updates, logger)
	return f
}

func (f *fixture) startCampaign(t *testing.T, vehicles ...string) *campaign.Campaign {
	t.Helper()
	configs := make([]campaign.Configuration, 0, len(vehicles))
	for _, v := range vehicles {
		configs = append(configs, campaign.Configuration{ClientID: "client-" + v, EndpointID: "endpoint-" + v, VehicleID: v})
	}
	c, err := f.campaign.Create(context.Background(), appCampaign.CreateInput{
		Name:           "survey",
		SiteID:         "site-1",
		State:          campaign.StateRunning,
		Configurations: configs,
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) get(t *testing.T, id uuid.UUID) *command.Command {
	t.Helper()
	cmd, err := f.commands.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, cmd)
	return cmd
}

func (f *fixture) latest(t *testing.T, vehicleID string, typ command.Type) *command.Command {
	t.Helper()
	cmd, err := command.First(context.Background(), f.commands, command.Filter{
		VehicleID: vehicleID,
		Types:     []command.Type{typ},
	}, command.NewestFirst)
	require.NoError(t, err)
	require.NotNil(t, cmd)
	return cmd
}

func online(t *testing.T, f *fixture, vehicleID string) {
	t.Helper()
	_, err := f.svc.Ingest(context.Background(), vehicleID, Report{Type: status.TypeOnline})
	require.NoError(t, err)
}

func ref(id uuid.UUID) *uuid.UUID {
	return &id
}

func codes(err error) []apperror.Code {
	var out []apperror.Code
	for _, e := range apperror.Entries(err) {
		out = append(out, e.Code)
	}
	return out
}

func TestService_OnlineSchedulesQueuedCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.startCampaign(t, "agv-1")
	start := f.latest(t, "agv-1", command.TypeStartCampaign)
	assert.Equal(t, command.StateCreated, start.State)

	sub := f.updates.Subscribe("agv-1")
	<-sub.Messages

	event, err := f.svc.Ingest(ctx, "agv-1", Report{Type: status.TypeOnline, Payload: "boot"})
	require.NoError(t, err)
	assert.Equal(t, status.TypeOnline, event.Type)
	assert.Equal(t, command.StateSent, f.get(t, start.ID).State)

	var update stream.Update
	require.NoError(t, json.Unmarshal(<-sub.Messages, &update))
	require.NotNil(t, update.Status)
	assert.Equal(t, event.ID, update.Status.ID)
}

func TestService_AcknowledgeRequiresSentCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.startCampaign(t, "agv-1")
	start := f.latest(t, "agv-1", command.TypeStartCampaign)

	_, err := f.svc.Ingest(ctx, "agv-1", Report{Type: status.TypeAcknowledgeRequest, CommandID: ref(start.ID)})

	require.Error(t, err)
	assert.Equal(t, apperror.CodeInvalidOperation, apperror.CodeOf(err))
	assert.Equal(t, command.StateCreated, f.get(t, start.ID).State)
	events, err := f.statuses.List(ctx, status.Filter{VehicleID: "agv-1"}, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestService_CommandLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.startCampaign(t, "agv-1")
	online(t, f, "agv-1")
	start := f.latest(t, "agv-1", command.TypeStartCampaign)
	require.Equal(t, command.StateSent, start.State)

	_, err := f.svc.Ingest(ctx, "agv-1", Report{Type: status.TypeAcknowledgeRequest, CommandID: ref(start.ID)})
	require.NoError(t, err)
	assert.Equal(t, command.StateAcknowledged, f.get(t, start.ID).State)

	_, err = f.svc.Ingest(ctx, "agv-1", Report{Type: status.TypeAcknowledgeRequest, CommandID: ref(start.ID)})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInvalidOperation, apperror.CodeOf(err))

	_, err = f.svc.Ingest(ctx, "agv-1", Report{Type: status.TypeCompleteRequest, CommandID: ref(start.ID)})
	require.NoError(t, err)
	assert.Equal(t, command.StateCompleted, f.get(t, start.ID).State)

	_, err = f.svc.Ingest(ctx, "agv-1", Report{Type: status.TypeRejectRequest, CommandID: ref(start.ID)})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInvalidOperation, apperror.CodeOf(err))
}

func TestService_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown event type", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Ingest(ctx, "agv-1", Report{Type: "REBOOT"})
		assert.Equal(t, []apperror.Code{apperror.CodeValidation}, codes(err))
	})

	t.Run("missing command reference", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Ingest(ctx, "agv-1", Report{Type: status.TypeCompleteRequest})
		assert.Equal(t, []apperror.Code{apperror.CodeValidation}, codes(err))
	})

	t.Run("unknown command", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Ingest(ctx, "agv-1", Report{Type: status.TypeAcknowledgeRequest, CommandID: ref(uuid.New())})
		assert.Equal(t, []apperror.Code{apperror.CodeNotFound}, codes(err))
	})

	t.Run("violations accumulate", func(t *testing.T) {
		f := newFixture(t)
		f.startCampaign(t, "agv-1")
		start := f.latest(t, "agv-1", command.TypeStartCampaign)

		_, err := f.svc.Ingest(ctx, "agv-2", Report{Type: status.TypeAcknowledgeRequest, CommandID: ref(start.ID)})

		assert.Equal(t, []apperror.Code{apperror.CodeValidation, apperror.CodeInvalidOperation}, codes(err))
	})

	t.Run("campaign must be active", func(t *testing.T) {
		f := newFixture(t)
		c := campaign.New("idle", "site-1", []campaign.Configuration{{ClientID: "c", EndpointID: "e", VehicleID: "agv-1"}})
		require.NoError(t, f.campaigns.Save(ctx, c))
		cmd := command.New("agv-1", c.ID, command.TypeGoTo, command.Payload{})
		cmd.MarkSent(time.Now())
		require.NoError(t, f.commands.Save(ctx, cmd))

		_, err := f.svc.Ingest(ctx, "agv-1", Report{Type: status.TypeAcknowledgeRequest, CommandID: ref(cmd.ID)})

		assert.Equal(t, []apperror.Code{apperror.CodeInvalidOperation}, codes(err))
		assert.Equal(t, command.StateSent, f.get(t, cmd.ID).State)
	})
}

func TestService_CompletionFinalizesCampaign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.startCampaign(t, "agv-1", "agv-2")
	online(t, f, "agv-1")
	online(t, f, "agv-2")

	completed := campaign.StateCompleted
	patched, err := f.campaign.Patch(ctx, c.ID, appCampaign.PatchInput{State: &completed})
	require.NoError(t, err)
	require.Equal(t, campaign.StateCompletePending, patched.State)

	complete := f.latest(t, "agv-1", command.TypeCompleteCampaign)
	require.Equal(t, command.StateSent, complete.State)

	_, err = f.svc.Ingest(ctx, "agv-1", Report{Type: status.TypeAcknowledgeRequest, CommandID: ref(complete.ID)})
	require.NoError(t, err)
	_, err = f.svc.Ingest(ctx, "agv-1", Report{Type: status.TypeCompleteRequest, CommandID: ref(complete.ID)})
	require.NoError(t, err)

	stored, err := f.campaigns.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, campaign.StateCompleted, stored.State)
	assert.NotNil(t, stored.StoppedAt)
	assert.Equal(t, command.StateCompleted, f.get(t, complete.ID).State)

	n, err := f.store.Outbox().Count(ctx, outbox.KindCampaign)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestService_ErrorEventIsRecordedOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.startCampaign(t, "agv-1")
	online(t, f, "agv-1")
	start := f.latest(t, "agv-1", command.TypeStartCampaign)

	event, err := f.svc.Ingest(ctx, "agv-1", Report{Type: status.TypeError, CommandID: ref(start.ID), Payload: "motor fault"})
	require.NoError(t, err)
	assert.Equal(t, "motor fault", event.Payload)
	assert.Equal(t, command.StateSent, f.get(t, start.ID).State)

	events, err := f.svc.List(ctx, "agv-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, status.TypeError, events[0].Type)
}
