package flight

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/gwillem/dronearm/pkg/motion"
)

// Defaults for the sequencer.
const (
	DefaultHz              = 100
	DefaultShutdownTimeout = 5 * time.Second
	scriptLength           = 3
)

// Config selects which preset sequences a flight runs.
type Config struct {
	Condition      motion.Condition
	Randomize      bool // random script instead of the condition's preset
	TraceBox       bool // trace the box edges after reaching neutral
	ResetToNeutral bool // only return to neutral, no script
	Hz             int
	Seed           uint64 // for Randomize; 0 picks one from the clock
	// ShutdownTimeout bounds the final stop directive.
	ShutdownTimeout time.Duration
}

// Event reports a completed step of the flight.
type Event struct {
	Label     string
	Waypoints []motion.Waypoint
	OK        bool
	Timestamp time.Time
}

// Sequencer flies the drone sequence and idles until shut down.
type Sequencer struct {
	d     *Dispatcher
	cfg   Config
	clock clock.Clock
	log   *zap.SugaredLogger
	rng   *rand.Rand

	mu      sync.Mutex
	running bool
	events  chan Event
}

// NewSequencer creates a sequencer driving d. A nil clock means wall-clock time.
func NewSequencer(d *Dispatcher, cfg Config, clk clock.Clock, logger *zap.SugaredLogger) *Sequencer {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.Condition == "" {
		cfg.Condition = motion.Calm
	}
	if cfg.Hz <= 0 {
		cfg.Hz = DefaultHz
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(clk.Now().UnixNano())
	}

	return &Sequencer{
		d:      d,
		cfg:    cfg,
		clock:  clk,
		log:    logger.Named("sequencer"),
		rng:    rand.New(rand.NewPCG(seed, seed>>1)),
		events: make(chan Event, 16),
	}
}

// Events returns a channel that receives a value after every move.
func (s *Sequencer) Events() <-chan Event {
	return s.events
}

// Hz returns the idle loop frequency.
func (s *Sequencer) Hz() int {
	return s.cfg.Hz
}

// Script returns the three-point sequence this flight runs.
func (s *Sequencer) Script() []motion.Waypoint {
	if s.cfg.Randomize {
		return motion.RandomSequence(s.rng, s.cfg.Condition, scriptLength)
	}
	return s.cfg.Condition.Sequence()
}

// Fly runs the scripted part of the flight: neutral, the optional box trace,
// then the script. Failed moves are logged and the flight carries on.
func (s *Sequencer) Fly(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Infow("flying", "condition", s.cfg.Condition, "randomize", s.cfg.Randomize, "box", s.cfg.TraceBox)

	s.step("neutral", []motion.Waypoint{motion.Neutral}, s.d.MoveToNeutral(ctx))
	if s.cfg.ResetToNeutral {
		return ctx.Err()
	}

	if s.cfg.TraceBox {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.step("box", motion.BoxCorners(), s.d.TraceBox(ctx))
		s.step("neutral", []motion.Waypoint{motion.Neutral}, s.d.MoveToNeutral(ctx))
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	script := s.Script()
	s.step(string(s.cfg.Condition), script, s.d.Move(ctx, script))
	return ctx.Err()
}

// Run flies, then idles at the configured rate until ctx is cancelled, and
// finally stops the arm.
func (s *Sequencer) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if err := s.Fly(ctx); err != nil {
		s.Shutdown()
		return err
	}

	s.log.Infow("holding position", "hz", s.cfg.Hz)
	ticker := s.clock.Ticker(time.Second / time.Duration(s.cfg.Hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Shutdown()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Shutdown requests a stop and issues the stop directive. It never panics;
// a failure is logged and reported as false.
func (s *Sequencer) Shutdown() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("error while stopping arm", "panic", r)
			ok = false
		}
	}()

	s.log.Info("stopping arm")
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.d.RequestStop()
	ok = s.d.Move(ctx, nil)
	s.step("stop", nil, ok)
	if ok {
		s.log.Info("stop successful")
	} else {
		s.log.Warn("arm may not have stopped cleanly")
	}
	return ok
}

func (s *Sequencer) step(label string, wps []motion.Waypoint, ok bool) {
	if !ok {
		s.log.Warnw("move failed", "step", label)
	}
	s.sendEvent(Event{Label: label, Waypoints: wps, OK: ok, Timestamp: s.clock.Now()})
}

func (s *Sequencer) sendEvent(e Event) {
	for {
		select {
		case s.events <- e:
			return
		default:
		}
		// Drop the oldest event to make room.
		select {
		case <-s.events:
		default:
		}
	}
}
