//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/expertbooking/backend/internal/adapters/events"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/providers"
)

func waitForEvent(t *testing.T, ch <-chan *entities.RealtimeEvent) *entities.RealtimeEvent {
	t.Helper()
	select {
	case event := <-ch:
		require.NotNil(t, event)
		return event
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestRedisEventBusFanoutIntegration(t *testing.T) {
	requireEnv(t, "TEST_REDIS_HOST")

	eventBus := events.NewRedisEventBus(newTestRedisClient(t))
	defer eventBus.Close()

	channel := providers.GetRoomChannel(entities.UserRoom("seeker-fanout"))
	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel1()
	defer cancel2()

	sub1, err := eventBus.Subscribe(ctx1, channel)
	require.NoError(t, err)
	sub2, err := eventBus.Subscribe(ctx2, channel)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	event := entities.NewRealtimeEvent(entities.EventAppointmentCreated, map[string]string{"id": "appt-1"}, entities.UserRoom("seeker-fanout"))
	require.NoError(t, eventBus.Publish(context.Background(), channel, event))

	assert.Equal(t, event.ID, waitForEvent(t, sub1).ID)
	assert.Equal(t, event.ID, waitForEvent(t, sub2).ID)
}

func TestBroadcasterReachesOnlyTheRoom(t *testing.T) {
	requireEnv(t, "TEST_REDIS_HOST")

	eventBus := events.NewRedisEventBus(newTestRedisClient(t))
	defer eventBus.Close()
	broadcaster := events.NewBusBroadcaster(eventBus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine, err := eventBus.Subscribe(ctx, providers.GetRoomChannel(entities.UserRoom("prov-user")))
	require.NoError(t, err)
	other, err := eventBus.Subscribe(ctx, providers.GetRoomChannel(entities.UserRoom("someone-else")))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	broadcaster.Publish(ctx, entities.EventWalletCredited, map[string]int64{"amount": 50000}, entities.UserRoom("prov-user"))

	received := waitForEvent(t, mine)
	assert.Equal(t, entities.EventWalletCredited, received.Name)
	assert.Equal(t, entities.UserRoom("prov-user"), received.Room)

	select {
	case event := <-other:
		t.Fatalf("unexpected event in other room: %+v", event)
	case <-time.After(200 * time.Millisecond):
	}
}
