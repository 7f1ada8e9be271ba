// Package status collects what the control loop reports and hands it to the HTTP and MQTT surfaces.
package status

import (
	"sync"
	"time"

	"github.com/berfenger/wattpilot2ess/internal/clock"
	"github.com/berfenger/wattpilot2ess/internal/core/domain"
	"github.com/berfenger/wattpilot2ess/internal/core/port"
)

// ensure interface compliance
var _ port.StatusSink = (*Board)(nil)

// TickView is the JSON form of a tick report.
type TickView struct {
	Time             time.Time          `json:"time"`
	CarState         string             `json:"car_state"`
	ChargeMode       string             `json:"charge_mode"`
	AmpsPerPhase     uint               `json:"amps_per_phase"`
	ForceSinglePhase bool               `json:"force_single_phase"`
	PowerWatt        float64            `json:"power_watt"`
	StateOfCharge    *float64           `json:"state_of_charge,omitempty"`
	Settings         map[string]float64 `json:"settings"`
	Commands         []string           `json:"commands,omitempty"`
	Errors           []string           `json:"errors,omitempty"`
}

type BoardStatus struct {
	Connection string    `json:"connection"`
	Since      time.Time `json:"since"`
	LastUpdate time.Time `json:"last_update"`
	Healthy    bool      `json:"healthy"`
	LastTick   *TickView `json:"last_tick,omitempty"`
}

// Board keeps the latest state of the control loop for readers on other goroutines.
type Board struct {
	clock  clock.Clock
	maxAge time.Duration

	mu         sync.RWMutex
	state      domain.ConnectionState
	since      time.Time
	lastUpdate time.Time
	lastTick   *TickView
}

// NewBoard considers the loop unhealthy once it has not reported for longer than maxAge.
func NewBoard(clk clock.Clock, maxAge time.Duration) *Board {
	now := clk.Now()
	return &Board{
		clock:      clk,
		maxAge:     maxAge,
		state:      domain.Disconnected,
		since:      now,
		lastUpdate: now,
	}
}

func (b *Board) ConnectionChanged(state domain.ConnectionState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.clock.Now()
	if state != b.state {
		b.since = now
	}
	b.state = state
	b.lastUpdate = now
}

func (b *Board) TickCompleted(report domain.TickReport) {
	view := tickView(report)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastTick = &view
	b.lastUpdate = b.clock.Now()
}

// Healthy is true while connecting or when the loop reported recently enough.
func (b *Board) Healthy() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.healthy()
}

func (b *Board) healthy() bool {
	if b.state == domain.Connecting {
		return true
	}
	return b.clock.Now().Sub(b.lastUpdate) <= b.maxAge
}

func (b *Board) Status() BoardStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BoardStatus{
		Connection: b.state.String(),
		Since:      b.since,
		LastUpdate: b.lastUpdate,
		Healthy:    b.healthy(),
		LastTick:   b.lastTick,
	}
}

func tickView(report domain.TickReport) TickView {
	snap := report.Snapshot
	view := TickView{
		Time:             report.Time,
		CarState:         snap.CarState.String(),
		ChargeMode:       snap.Mode.String(),
		AmpsPerPhase:     snap.AmpsPerPhase,
		ForceSinglePhase: snap.ForceSinglePhase,
		PowerWatt:        snap.PowerWatt(),
		StateOfCharge:    report.StateOfCharge,
		Settings:         make(map[string]float64, len(report.Settings)),
		Commands:         append([]string(nil), report.Commands...),
	}
	for _, outcome := range report.Settings {
		if outcome.Err == nil {
			view.Settings[outcome.Key.String()] = outcome.Effective()
		}
	}
	for _, err := range report.Errors {
		view.Errors = append(view.Errors, err.Error())
	}
	return view
}
