package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/srg/progressor/internal/groutine"
)

// pump moves frames from the transport callback to a single demux goroutine.
// Frames are copied on delivery since the transport may reuse its buffer.
type pump struct {
	demux  *Demux
	logger *logrus.Logger
	frames chan []byte
	done   <-chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

func startPump(demux *Demux, buffer int, logger *logrus.Logger) *pump {
	if buffer < 1 {
		buffer = 1
	}
	p := &pump{
		demux:  demux,
		logger: logger,
		frames: make(chan []byte, buffer),
	}
	p.done = groutine.Go(context.Background(), "notification-pump", func(ctx context.Context) {
		for frame := range p.frames {
			// errors already went to Events.Diagnostic
			_ = p.demux.HandleFrame(frame)
		}
		p.logger.WithField("goroutine", groutine.GetName(ctx)).Debug("Notification pump drained")
	})
	return p
}

// deliver is the transport notification handler
func (p *pump) deliver(data []byte) {
	frame := append([]byte(nil), data...)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		p.logger.WithField("len", len(frame)).Debug("Dropping frame after session end")
		return
	}
	p.frames <- frame
}

// stop refuses further frames and waits until queued ones are handled
func (p *pump) stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.frames)
	}
	p.mu.Unlock()
	<-p.done
}

// Dropped returns how many frames arrived after stop
func (p *pump) Dropped() int {
	return int(p.dropped.Load())
}
