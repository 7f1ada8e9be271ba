package status

import (
	"testing"
	"time"

	"github.com/berfenger/wattpilot2ess/internal/clock"
	"github.com/berfenger/wattpilot2ess/internal/core/domain"
	"github.com/berfenger/wattpilot2ess/internal/events"

	"github.com/stretchr/testify/require"
)

type published struct {
	id     string
	retain bool
}

type recordingPublisher struct {
	events []published
}

func (p *recordingPublisher) PublishEvent(event domain.SensorUpdateEvent, retain bool) {
	p.events = append(p.events, published{id: event.SensorId(), retain: retain})
}

func TestMQTTSinkPublishesConnectionRetained(t *testing.T) {
	require := require.New(t)

	pub := &recordingPublisher{}
	sink := NewMQTTSink(pub)

	sink.ConnectionChanged(domain.Connected)
	require.Equal([]published{{id: events.SENSOR_ID_WALLBOX_CONNECTION, retain: true}}, pub.events)
}

func TestMQTTSinkPublishesTick(t *testing.T) {
	require := require.New(t)

	pub := &recordingPublisher{}
	sink := NewMQTTSink(pub)

	sink.TickCompleted(domain.TickReport{
		Settings: []domain.SettingOutcome{{Key: domain.DischargePowerLimit, Before: -1, Target: -1}},
	})

	ids := map[string]bool{}
	for _, p := range pub.events {
		require.False(p.retain)
		ids[p.id] = true
	}
	require.True(ids[events.SENSOR_ID_CAR_STATE])
	require.True(ids[events.SENSOR_ID_MAX_DISCHARGE_POWER])
	require.False(ids[events.SENSOR_ID_BATTERY_SOC])
}

func TestFanoutForwardsToEverySink(t *testing.T) {
	require := require.New(t)

	clk := clock.NewFakeClock(testStart)
	board := NewBoard(clk, time.Minute)
	pub := &recordingPublisher{}
	fan := Fanout{board, NewMQTTSink(pub)}

	fan.ConnectionChanged(domain.Connecting)
	fan.TickCompleted(domain.TickReport{Time: clk.Now()})

	require.Equal("connecting", board.Status().Connection)
	require.NotNil(board.Status().LastTick)
	require.NotEmpty(pub.events)
}
