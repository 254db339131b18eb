package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/progressor/internal/device"
	"github.com/srg/progressor/internal/protocol"
	"github.com/srg/progressor/internal/samplelog"
)

// Phase is a state of the session state machine
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubscribed
	PhaseQueryVersion
	PhaseQueryBattery
	PhaseQueryErrors
	PhaseMeasurementActive
	PhaseMeasurementStopped
)

var phaseNames = [...]string{
	PhaseIdle:               "idle",
	PhaseSubscribed:         "subscribed",
	PhaseQueryVersion:       "query-version",
	PhaseQueryBattery:       "query-battery",
	PhaseQueryErrors:        "query-errors",
	PhaseMeasurementActive:  "measurement-active",
	PhaseMeasurementStopped: "measurement-stopped",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Options configure a session run
type Options struct {
	// Quiescence is the blind wait after each query; replies arriving later are misattributed
	Quiescence          time.Duration `default:"500ms"`
	MeasurementDuration time.Duration `default:"10s"`
	NotificationBuffer  int           `default:"256"`
	LogDir              string        `default:"."`

	// SessionID names the sample log; generated when empty
	SessionID string

	// OnPhase observes every phase transition, on the control goroutine
	OnPhase func(Phase)

	// Events additionally receives replies, warnings and diagnostics
	Events Events
}

// DefaultOptions returns Options with every default applied
func DefaultOptions() Options {
	opts := Options{}
	defaults.SetDefaults(&opts)
	return opts
}

// GaugeInfo is what the query phase learned about the gauge
type GaugeInfo struct {
	Version           string
	BatteryMillivolts uint32
	HasBattery        bool
	ErrorInformation  string
	HasErrorInfo      bool
}

// Result summarizes a session; on failure it holds whatever was reached
type Result struct {
	SessionID        string
	LogPath          string
	Samples          int
	Gauge            GaugeInfo
	LowPowerWarnings int
	Diagnostics      int
	DroppedFrames    int
	Stats            Stats
	LastPhase        Phase
}

// Orchestrator drives the fixed command sequence over one connected link
type Orchestrator struct {
	link   device.Link
	opts   Options
	logger *logrus.Logger
	state  *State

	mu    sync.RWMutex
	phase Phase
}

// New creates an orchestrator for link; zero option values fall back to defaults
func New(link device.Link, opts Options, logger *logrus.Logger) *Orchestrator {
	defaults.SetDefaults(&opts)
	return &Orchestrator{
		link:   link,
		opts:   opts,
		logger: logger,
		state:  NewState(),
	}
}

// State exposes the outstanding-command slot
func (o *Orchestrator) State() *State {
	return o.state
}

// Phase returns the current phase
func (o *Orchestrator) Phase() Phase {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.phase
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	prev := o.phase
	o.phase = p
	o.mu.Unlock()

	o.logger.WithFields(logrus.Fields{
		"from": prev.String(),
		"to":   p.String(),
	}).Debug("Session phase")

	if o.opts.OnPhase != nil {
		o.opts.OnPhase(p)
	}
}

var querySequence = []struct {
	phase Phase
	cmd   protocol.Command
}{
	{PhaseQueryVersion, protocol.CmdGetAppVersion},
	{PhaseQueryBattery, protocol.CmdGetBatteryVoltage},
	{PhaseQueryErrors, protocol.CmdGetErrorInformation},
}

// Run executes one full session: subscribe, query version, battery and crash log,
// measure for MeasurementDuration, then put the gauge to sleep.
// Transport failures abort without retry. On cancellation the samples received so far
// stay in the log and ctx.Err() is returned with the partial Result. The link is not
// disconnected.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	sessionID := o.opts.SessionID
	if sessionID == "" {
		sessionID = samplelog.NewSessionID(time.Now())
	}
	res := &Result{SessionID: sessionID}

	log, err := samplelog.Open(o.opts.LogDir, sessionID, o.logger)
	if err != nil {
		return res, err
	}
	res.LogPath = log.Path()

	rec := newRecorder(o.opts.Events, o.logger)
	demux := NewDemux(o.state, log, rec, o.logger)
	p := startPump(demux, o.opts.NotificationBuffer, o.logger)

	finish := func(runErr error) (*Result, error) {
		p.stop()
		if closeErr := log.Close(); closeErr != nil && runErr == nil {
			runErr = closeErr
		}
		o.state.Clear()

		res.LastPhase = o.Phase()
		res.Samples = log.Count()
		res.Stats = demux.Stats()
		res.DroppedFrames = p.Dropped()
		rec.fill(res)
		o.setPhase(PhaseIdle)

		entry := o.logger.WithFields(logrus.Fields{
			"session": res.SessionID,
			"samples": res.Samples,
			"path":    res.LogPath,
		})
		if runErr != nil {
			entry.WithField("error", runErr).Warn("Session aborted")
		} else {
			entry.Info("Session finished")
		}
		return res, runErr
	}

	o.setPhase(PhaseSubscribed)
	if err := o.link.Subscribe(device.DataCharUUID, p.deliver); err != nil {
		return finish(asTransportError("subscribe", device.DataCharUUID, err))
	}

	for _, step := range querySequence {
		o.setPhase(step.phase)
		if err := o.Issue(ctx, step.cmd, nil, true); err != nil {
			return finish(err)
		}
		if err := o.wait(ctx, o.opts.Quiescence); err != nil {
			return finish(err)
		}
	}

	o.setPhase(PhaseMeasurementActive)
	if err := o.Issue(ctx, protocol.CmdStartWeightMeasurement, nil, true); err != nil {
		return finish(err)
	}
	if err := o.wait(ctx, o.opts.MeasurementDuration); err != nil {
		return finish(err)
	}

	o.setPhase(PhaseMeasurementStopped)
	if err := o.Issue(ctx, protocol.CmdEnterSleep, nil, false); err != nil {
		return finish(err)
	}
	return finish(nil)
}

// Issue encodes and writes one command to the control point. Query commands become
// the outstanding command before the write.
func (o *Orchestrator) Issue(ctx context.Context, cmd protocol.Command, payload []byte, withResponse bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cmd == protocol.CmdAddCalibrationPoint && len(payload) != protocol.CalibrationPointSize {
		return fmt.Errorf("%s needs a %d-byte payload, got %d", cmd, protocol.CalibrationPointSize, len(payload))
	}

	if cmd.IsQuery() {
		o.state.SetOutstanding(cmd)
	}

	frame := protocol.EncodeCommand(cmd, payload...)
	o.logger.WithFields(logrus.Fields{
		"command":       cmd.String(),
		"frame":         fmt.Sprintf("%x", frame),
		"with_response": withResponse,
	}).Debug("Issuing command")

	if err := o.link.Write(device.ControlPointCharUUID, frame, withResponse); err != nil {
		return asTransportError("write", device.ControlPointCharUUID, err)
	}
	return nil
}

// Exchange is the outcome of Send
type Exchange struct {
	// Reply is the first reply to a query; nil for other commands or when none arrived
	Reply *Reply

	// Diagnostics holds the frame failures seen before Send returned, including
	// replies whose payload was rejected
	Diagnostics []error
}

// Send subscribes, issues a single command and, for queries, waits up to the quiescence
// interval for the first reply. Frame diagnostics reported meanwhile are returned with it.
func (o *Orchestrator) Send(ctx context.Context, cmd protocol.Command, payload []byte) (*Exchange, error) {
	rec := newRecorder(o.opts.Events, o.logger)
	demux := NewDemux(o.state, nil, rec, o.logger)
	p := startPump(demux, o.opts.NotificationBuffer, o.logger)
	defer func() {
		p.stop()
		o.state.Clear()
	}()

	if err := o.link.Subscribe(device.DataCharUUID, p.deliver); err != nil {
		return nil, asTransportError("subscribe", device.DataCharUUID, err)
	}

	withResponse := cmd != protocol.CmdEnterSleep
	if err := o.Issue(ctx, cmd, payload, withResponse); err != nil {
		return nil, err
	}
	if !cmd.IsQuery() {
		return &Exchange{Diagnostics: rec.diagnostics()}, nil
	}

	timer := time.NewTimer(o.opts.Quiescence)
	defer timer.Stop()
	select {
	case r := <-rec.replies:
		return &Exchange{Reply: &r, Diagnostics: rec.diagnostics()}, nil
	case <-timer.C:
		return &Exchange{Diagnostics: rec.diagnostics()}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-o.link.Done():
		return nil, &device.TransportError{Op: "notify", UUID: device.DataCharUUID, Err: device.ErrNotConnected}
	}
}

// wait blocks for d unless ctx is done or the link drops
func (o *Orchestrator) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-o.link.Done():
		return &device.TransportError{Op: "notify", UUID: device.DataCharUUID, Err: device.ErrNotConnected}
	}
}

func asTransportError(op, uuid string, err error) error {
	var terr *device.TransportError
	if errors.As(err, &terr) {
		return err
	}
	var nf *device.NotFoundError
	if errors.As(err, &nf) {
		return &device.TransportError{Op: op, UUID: uuid, Err: err}
	}
	return &device.TransportError{Op: op, UUID: uuid, Err: device.NormalizeError(err)}
}

// recorder collects session facts from events and forwards them
type recorder struct {
	next    Events
	replies chan Reply

	mu          sync.Mutex
	gauge    GaugeInfo
	lowPower int
	errs     []error
}

func newRecorder(next Events, logger *logrus.Logger) *recorder {
	if next == nil {
		next = LogEvents{Logger: logger}
	}
	return &recorder{next: next, replies: make(chan Reply, 1)}
}

func (r *recorder) Reply(reply Reply) {
	r.mu.Lock()
	switch reply.Command {
	case protocol.CmdGetAppVersion:
		r.gauge.Version = reply.Version
	case protocol.CmdGetBatteryVoltage:
		r.gauge.BatteryMillivolts = reply.BatteryMillivolts
		r.gauge.HasBattery = true
	case protocol.CmdGetErrorInformation:
		r.gauge.ErrorInformation = reply.ErrorInformation
		r.gauge.HasErrorInfo = true
	}
	r.mu.Unlock()

	select {
	case r.replies <- reply:
	default:
	}
	r.next.Reply(reply)
}

func (r *recorder) LowPower() {
	r.mu.Lock()
	r.lowPower++
	r.mu.Unlock()
	r.next.LowPower()
}

func (r *recorder) Diagnostic(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.next.Diagnostic(err)
}

func (r *recorder) diagnostics() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.errs)
}

func (r *recorder) fill(res *Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res.Gauge = r.gauge
	res.LowPowerWarnings = r.lowPower
	res.Diagnostics = len(r.errs)
}
