package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/srg/progressor/internal/groutine"
	"golang.org/x/term"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ProgressPrinter shows a single, continuously rewritten status line with the current
// phase and its elapsed (or, for countdown phases, remaining) seconds.
//
// Usage:
//
//	p := NewProgressPrinter(out, "Measuring", "Scanning", "Processing results")
//	p.Start()
//	defer p.Stop()
//
// Nothing is printed when out is not a terminal; Callback still tracks phases.
// A ProgressPrinter is single-use: Start at most once, Stop any number of times.
type ProgressPrinter struct {
	out        io.Writer
	enabled    bool
	prefix     string
	stopPhases map[string]struct{}
	countdowns map[string]time.Duration

	phase      atomic.Value // string
	phaseStart atomic.Int64 // unix nanos of the last phase change

	started  atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}
	done     <-chan struct{}
}

// NewProgressPrinter creates a progress printer that counts up per phase.
// stopPhases are phase names that end the display when set via Callback.
func NewProgressPrinter(out io.Writer, prefix, phase string, stopPhases ...string) *ProgressPrinter {
	p := &ProgressPrinter{
		out:        out,
		enabled:    isTerminal(out),
		prefix:     prefix,
		stopPhases: make(map[string]struct{}, len(stopPhases)),
		countdowns: make(map[string]time.Duration),
		stopChan:   make(chan struct{}),
	}
	for _, s := range stopPhases {
		p.stopPhases[s] = struct{}{}
	}
	p.setPhase(phase)
	return p
}

// WithCountdown shows the remaining time of d while phase is current. Call before Start.
func (p *ProgressPrinter) WithCountdown(phase string, d time.Duration) *ProgressPrinter {
	p.countdowns[phase] = d
	return p
}

// Phase returns the current phase name
func (p *ProgressPrinter) Phase() string {
	return p.phase.Load().(string)
}

func (p *ProgressPrinter) setPhase(phase string) {
	p.phase.Store(phase)
	p.phaseStart.Store(time.Now().UnixNano())
}

// Start begins displaying progress updates in a background goroutine.
// Panics if called more than once on the same ProgressPrinter instance.
func (p *ProgressPrinter) Start() {
	if !p.started.CompareAndSwap(false, true) {
		panic("ProgressPrinter.Start called more than once")
	}
	if !p.enabled {
		return
	}

	p.render()
	p.done = groutine.Go(context.Background(), "progress-printer", func(context.Context) {
		ticker := time.NewTicker(progressUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stopChan:
				return
			case <-ticker.C:
				p.render()
			}
		}
	})
}

// line formats the status line for the current phase
func (p *ProgressPrinter) line(now time.Time) string {
	phase := p.Phase()
	elapsed := now.Sub(time.Unix(0, p.phaseStart.Load()))

	seconds := int(elapsed.Seconds())
	if d, ok := p.countdowns[phase]; ok {
		remaining := d - elapsed
		seconds = 0
		if remaining > 0 {
			// Round to the nearest second, e.g. 3.7s -> 4s
			seconds = int(remaining.Seconds() + 0.5)
		}
	}

	if seconds > 0 {
		return fmt.Sprintf("\r%s (%s %ds)   ", p.prefix, phase, seconds)
	}
	return fmt.Sprintf("\r%s (%s...)   ", p.prefix, phase)
}

func (p *ProgressPrinter) render() {
	fmt.Fprint(p.out, p.line(time.Now()))
}

// Callback returns a function that updates the phase. Setting a stop phase stops the
// display. Safe to call from multiple goroutines.
func (p *ProgressPrinter) Callback() func(phase string) {
	return func(phase string) {
		p.setPhase(phase)
		if _, isStopPhase := p.stopPhases[phase]; isStopPhase {
			p.Stop()
		}
	}
}

// Stop ends the display and clears the line. Safe to call multiple times.
func (p *ProgressPrinter) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
		if p.done == nil {
			return
		}
		<-p.done
		fmt.Fprint(p.out, clearLineSequence)
	})
}
