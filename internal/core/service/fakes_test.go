package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/berfenger/wattpilot2ess/internal/clock"
	"github.com/berfenger/wattpilot2ess/internal/core/domain"
	"github.com/berfenger/wattpilot2ess/internal/core/port"
)

// recorder is a single ordered event log shared by the fakes of one test.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) indexOf(event string) int {
	for i, e := range r.all() {
		if e == event {
			return i
		}
	}
	return -1
}

type fakeSettings struct {
	rec    *recorder
	values map[domain.SettingKey]float64
	getErr map[domain.SettingKey]error
	setErr map[domain.SettingKey]error
	sets   []domain.SettingTarget
	gets   int
}

func newFakeSettings(rec *recorder, charge, discharge, grid float64) *fakeSettings {
	return &fakeSettings{
		rec: rec,
		values: map[domain.SettingKey]float64{
			domain.ChargeCurrentLimit:  charge,
			domain.DischargePowerLimit: discharge,
			domain.GridSetPoint:        grid,
		},
		getErr: map[domain.SettingKey]error{},
		setErr: map[domain.SettingKey]error{},
	}
}

func (f *fakeSettings) Get(key domain.SettingKey) (float64, error) {
	f.gets++
	f.rec.add("get:%s", key)
	if err := f.getErr[key]; err != nil {
		return 0, err
	}
	return f.values[key], nil
}

func (f *fakeSettings) Set(key domain.SettingKey, value float64) error {
	f.rec.add("set:%s=%g", key, value)
	if err := f.setErr[key]; err != nil {
		return err
	}
	f.sets = append(f.sets, domain.SettingTarget{Key: key, Value: value})
	f.values[key] = value
	return nil
}

type fakeSoC struct {
	soc   float64
	err   error
	reads int
}

func (f *fakeSoC) StateOfCharge() (float64, error) {
	f.reads++
	return f.soc, f.err
}

type fakeActuator struct {
	rec *recorder

	connectFailures int
	connectCalls    int
	connected       bool
	disconnects     int

	snapshot domain.ActuatorSnapshot
	snapErr  error
	// dropAfter disconnects the link after that many snapshots, 0 keeps it up
	dropAfter int
	snapshots int

	phaseErr error
	ampErr   error
	phases   []domain.PhaseSwitchMode
	amps     []uint
}

func (a *fakeActuator) Connect(_ context.Context) error {
	a.connectCalls++
	a.rec.add("connect")
	if a.connectCalls <= a.connectFailures {
		return fmt.Errorf("connection refused")
	}
	a.connected = true
	return nil
}

func (a *fakeActuator) Disconnect() error {
	a.disconnects++
	a.rec.add("disconnect")
	a.connected = false
	return nil
}

func (a *fakeActuator) Connected() bool {
	return a.connected
}

func (a *fakeActuator) Snapshot() (domain.ActuatorSnapshot, error) {
	a.snapshots++
	a.rec.add("snapshot")
	if a.dropAfter > 0 && a.snapshots >= a.dropAfter {
		a.connected = false
	}
	return a.snapshot, a.snapErr
}

func (a *fakeActuator) SendRawCommand(key string, value any) error {
	a.rec.add("%s=%v", key, value)
	return nil
}

func (a *fakeActuator) SetPhaseMode(mode domain.PhaseSwitchMode) error {
	a.rec.add("psm=%d", mode)
	if a.phaseErr != nil {
		return a.phaseErr
	}
	a.phases = append(a.phases, mode)
	return nil
}

func (a *fakeActuator) SetCurrentLimit(amps uint) error {
	a.rec.add("amp=%d", amps)
	if a.ampErr != nil {
		return a.ampErr
	}
	a.amps = append(a.amps, amps)
	return nil
}

// recordingSink keeps every notification of the supervisor.
type recordingSink struct {
	states  []domain.ConnectionState
	reports []domain.TickReport
}

func (s *recordingSink) ConnectionChanged(state domain.ConnectionState) {
	s.states = append(s.states, state)
}

func (s *recordingSink) TickCompleted(report domain.TickReport) {
	s.reports = append(s.reports, report)
}

var testStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// newRecordingClock logs every wait into rec, so sleeps can be ordered against commands.
func newRecordingClock(rec *recorder) *clock.FakeClock {
	clk := clock.NewFakeClock(testStart)
	clk.OnWait(func(d time.Duration) {
		rec.add("wait:%s", d)
	})
	return clk
}

// ensure interface compliance
var _ port.SettingsClient = (*fakeSettings)(nil)
var _ port.SoCReader = (*fakeSoC)(nil)
var _ port.Actuator = (*fakeActuator)(nil)
var _ port.StatusSink = (*recordingSink)(nil)
