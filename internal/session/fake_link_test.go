package session

import (
	"sync"

	"github.com/srg/progressor/internal/device"
	"github.com/srg/progressor/internal/protocol"
)

// linkWrite is a control point write together with the outstanding slot observed at that moment
type linkWrite struct {
	Command        protocol.Command
	Data           []byte
	WithResponse   bool
	Outstanding    protocol.Command
	HasOutstanding bool
}

// fakeLink is an in-memory device.Link answering writes through respond
type fakeLink struct {
	mu           sync.Mutex
	state        *State
	handler      func([]byte)
	writes       []linkWrite
	respond      func(cmd protocol.Command) [][]byte
	writeErr     map[protocol.Command]error
	subscribeErr error
	onWrite      func(cmd protocol.Command)
	done         chan struct{}
	doneOnce     sync.Once
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		writeErr: make(map[protocol.Command]error),
		done:     make(chan struct{}),
	}
}

func (l *fakeLink) Subscribe(charUUID string, handler func([]byte)) error {
	if l.subscribeErr != nil {
		return l.subscribeErr
	}
	if !device.SameUUID(charUUID, device.DataCharUUID) {
		return &device.NotFoundError{Resource: "characteristic", UUIDs: []string{charUUID}}
	}
	l.mu.Lock()
	l.handler = handler
	l.mu.Unlock()
	return nil
}

func (l *fakeLink) Write(charUUID string, data []byte, withResponse bool) error {
	if !device.SameUUID(charUUID, device.ControlPointCharUUID) {
		return &device.NotFoundError{Resource: "characteristic", UUIDs: []string{charUUID}}
	}
	cmd := protocol.Command(data[0])

	w := linkWrite{Command: cmd, Data: append([]byte(nil), data...), WithResponse: withResponse}
	if l.state != nil {
		w.Outstanding, w.HasOutstanding = l.state.Outstanding()
	}

	l.mu.Lock()
	l.writes = append(l.writes, w)
	err := l.writeErr[cmd]
	respond := l.respond
	onWrite := l.onWrite
	l.mu.Unlock()

	if err != nil {
		return err
	}
	if onWrite != nil {
		onWrite(cmd)
	}
	if respond != nil {
		for _, frame := range respond(cmd) {
			l.notify(frame)
		}
	}
	return nil
}

func (l *fakeLink) notify(frame []byte) {
	l.mu.Lock()
	h := l.handler
	l.mu.Unlock()
	if h != nil {
		h(frame)
	}
}

func (l *fakeLink) Disconnect() error {
	l.drop()
	return nil
}

func (l *fakeLink) Done() <-chan struct{} {
	return l.done
}

func (l *fakeLink) drop() {
	l.doneOnce.Do(func() { close(l.done) })
}

func (l *fakeLink) recorded() []linkWrite {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]linkWrite(nil), l.writes...)
}

// recordingEvents captures everything the demux reports
type recordingEvents struct {
	mu          sync.Mutex
	replies     []Reply
	lowPower    int
	diagnostics []error
}

func (e *recordingEvents) Reply(r Reply) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replies = append(e.replies, r)
}

func (e *recordingEvents) LowPower() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lowPower++
}

func (e *recordingEvents) Diagnostic(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.diagnostics = append(e.diagnostics, err)
}

func (e *recordingEvents) snapshot() ([]Reply, int, []error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Reply(nil), e.replies...), e.lowPower, append([]error(nil), e.diagnostics...)
}

// memorySink is a SampleSink kept in memory
type memorySink struct {
	mu      sync.Mutex
	samples []protocol.Sample
	fail    map[uint32]error
}

func (s *memorySink) Append(sample protocol.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[sample.TimestampUs]; err != nil {
		return err
	}
	s.samples = append(s.samples, sample)
	return nil
}

func (s *memorySink) all() []protocol.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Sample(nil), s.samples...)
}
