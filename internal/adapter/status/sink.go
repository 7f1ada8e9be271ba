package status

import (
	"github.com/berfenger/wattpilot2ess/internal/core/domain"
	coreevents "github.com/berfenger/wattpilot2ess/internal/core/events"
	"github.com/berfenger/wattpilot2ess/internal/core/port"
)

// ensure interface compliance
var (
	_ port.StatusSink = (*MQTTSink)(nil)
	_ port.StatusSink = Fanout(nil)
)

// EventPublisher sends sensor updates without blocking the caller.
type EventPublisher interface {
	PublishEvent(event domain.SensorUpdateEvent, retain bool)
}

// MQTTSink turns connection changes and tick reports into sensor updates.
type MQTTSink struct {
	publisher EventPublisher
}

func NewMQTTSink(publisher EventPublisher) *MQTTSink {
	return &MQTTSink{publisher: publisher}
}

func (s *MQTTSink) ConnectionChanged(state domain.ConnectionState) {
	for _, ev := range coreevents.ConnectionStateToUpdateEvents(state) {
		s.publisher.PublishEvent(ev, true)
	}
}

func (s *MQTTSink) TickCompleted(report domain.TickReport) {
	for _, ev := range coreevents.TickReportToUpdateEvents(report) {
		s.publisher.PublishEvent(ev, false)
	}
}

// Fanout forwards to every sink in order.
type Fanout []port.StatusSink

func (f Fanout) ConnectionChanged(state domain.ConnectionState) {
	for _, sink := range f {
		sink.ConnectionChanged(state)
	}
}

func (f Fanout) TickCompleted(report domain.TickReport) {
	for _, sink := range f {
		sink.TickCompleted(report)
	}
}
