package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/progressor/internal/protocol"
	"github.com/srg/progressor/internal/samplelog"
)

// Reply is an interpreted CommandResponse frame.
// Command is zero when no command was outstanding (every opcode is >= 100).
type Reply struct {
	Command           protocol.Command
	Version           string
	BatteryMillivolts uint32
	ErrorInformation  string
	Raw               []byte
}

// Attributed reports whether the reply was matched to an outstanding command
func (r Reply) Attributed() bool {
	return r.Command != 0
}

// Events receives everything the demux surfaces besides samples.
// Methods are called from the notification goroutine.
type Events interface {
	Reply(Reply)
	LowPower()
	Diagnostic(err error)
}

// SampleSink accepts decoded samples in arrival order
type SampleSink interface {
	Append(s protocol.Sample) error
}

// LogEvents reports events through logrus
type LogEvents struct {
	Logger *logrus.Logger
}

func (e LogEvents) Reply(r Reply) {
	e.Logger.WithFields(logrus.Fields{
		"command": r.Command.String(),
		"raw":     fmt.Sprintf("%x", r.Raw),
	}).Info("Command reply")
}

func (e LogEvents) LowPower() {
	e.Logger.Warn("Received low battery warning")
}

func (e LogEvents) Diagnostic(err error) {
	e.Logger.WithFields(DiagnosticFields(err)).Warn("Diagnostic")
}

// DiagnosticFields extracts structured fields from the typed errors a session produces
func DiagnosticFields(err error) logrus.Fields {
	fields := logrus.Fields{"error": err}

	var perr *protocol.ProtocolError
	if errors.As(err, &perr) {
		fields["kind"] = "protocol"
		fields["code"] = string(perr.Code)
		return fields
	}

	var lerr *samplelog.LogError
	if errors.As(err, &lerr) {
		fields["kind"] = "log"
		fields["code"] = string(lerr.Kind)
		if lerr.Path != "" {
			fields["path"] = lerr.Path
		}
	}
	return fields
}

// Stats counts what the demux has seen
type Stats struct {
	Frames      int
	Samples     int
	Replies     int
	LowPower    int
	PeakRFD     int
	Diagnostics int
}

// Demux classifies inbound frames and routes them to the sample sink or events.
// Failures are frame-scoped: each is reported to Events.Diagnostic and returned,
// later frames are processed normally.
type Demux struct {
	state  *State
	sink   SampleSink
	events Events
	logger *logrus.Logger

	mu    sync.Mutex
	stats Stats
}

// NewDemux creates a demux; a nil sink discards samples, nil events log through logger
func NewDemux(state *State, sink SampleSink, events Events, logger *logrus.Logger) *Demux {
	if events == nil {
		events = LogEvents{Logger: logger}
	}
	return &Demux{
		state:  state,
		sink:   sink,
		events: events,
		logger: logger,
	}
}

// HandleFrame processes one inbound frame
func (d *Demux) HandleFrame(frame []byte) error {
	d.count(func(s *Stats) { s.Frames++ })

	resp, err := protocol.DecodeResponse(frame)
	if resp == nil {
		return d.report(err)
	}

	switch resp.Kind {
	case protocol.KindCommandResponse:
		return d.handleReply(resp.Payload)

	case protocol.KindWeightMeasurement:
		d.logger.WithFields(logrus.Fields{
			"declared_len": resp.Header,
			"samples":      len(resp.Samples),
		}).Debug("Weight measurement frame")

		var errs []error
		for _, s := range resp.Samples {
			if d.sink != nil {
				if appendErr := d.sink.Append(s); appendErr != nil {
					errs = append(errs, d.report(appendErr))
					continue
				}
			}
			d.count(func(st *Stats) { st.Samples++ })
		}
		if err != nil {
			errs = append(errs, d.report(err))
		}
		return errors.Join(errs...)

	case protocol.KindLowPowerWarning:
		d.count(func(s *Stats) { s.LowPower++ })
		d.events.LowPower()
		return nil

	case protocol.KindPeakRFD, protocol.KindPeakRFDSeries:
		d.count(func(s *Stats) { s.PeakRFD++ })
		d.logger.WithFields(logrus.Fields{
			"kind":    resp.Kind.String(),
			"payload": fmt.Sprintf("%x", resp.Payload),
		}).Debug("Ignoring RFD frame")
		return nil
	}

	return nil
}

func (d *Demux) handleReply(payload []byte) error {
	reply := Reply{Raw: payload}

	cmd, ok := d.state.Outstanding()
	if !ok || !cmd.IsQuery() {
		d.count(func(s *Stats) { s.Replies++ })
		d.events.Reply(reply)
		return nil
	}
	reply.Command = cmd

	var err error
	switch cmd {
	case protocol.CmdGetAppVersion:
		reply.Version, err = protocol.DecodeAppVersion(payload)
	case protocol.CmdGetErrorInformation:
		reply.ErrorInformation, err = protocol.DecodeErrorInformation(payload)
	case protocol.CmdGetBatteryVoltage:
		reply.BatteryMillivolts, err = protocol.DecodeBatteryVoltage(payload)
		if err != nil {
			return d.report(err)
		}
	}

	// text that fails to decode is reported and delivered as empty
	if err != nil {
		err = d.report(err)
	}
	d.count(func(s *Stats) { s.Replies++ })
	d.events.Reply(reply)
	return err
}

func (d *Demux) report(err error) error {
	d.count(func(s *Stats) { s.Diagnostics++ })
	d.events.Diagnostic(err)
	return err
}

func (d *Demux) count(fn func(*Stats)) {
	d.mu.Lock()
	fn(&d.stats)
	d.mu.Unlock()
}

// Stats returns a snapshot of the counters
func (d *Demux) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}
