package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	dlog "github.com/gwillem/dronearm/internal/log"
	"github.com/gwillem/dronearm/pkg/flight"
	"github.com/gwillem/dronearm/pkg/motion"
	"github.com/gwillem/dronearm/pkg/robot"
)

type FlyCommand struct {
	Condition   string  `long:"condition" default:"calm" choice:"calm" choice:"average" choice:"rough" description:"Weather preset to fly"`
	Randomize   bool    `long:"randomize" description:"Fly a random sequence within the condition's envelope"`
	Box         bool    `long:"box" description:"Trace the box before flying"`
	Reset       bool    `long:"reset" description:"Only return to neutral"`
	Sim         bool    `long:"sim" description:"Use the in-process simulator instead of the robot"`
	TimeScale   float64 `long:"time-scale" default:"1" description:"Simulator time multiplier, 0 for instant moves"`
	URL         string  `long:"url" description:"Override the rosbridge URL"`
	Hz          int     `long:"hz" default:"100" description:"Idle loop frequency"`
	Seed        uint64  `long:"seed" description:"Seed for --randomize"`
	Yes         bool    `short:"y" long:"yes" description:"Do not wait for confirmation after enabling"`
	Plain       bool    `long:"plain" description:"Plain log output instead of the dashboard"`
	MetricsAddr string  `long:"metrics-addr" description:"Serve Prometheus metrics on this address, e.g. :9100"`
}

// arm is everything fly needs from the robot side.
type arm interface {
	flight.Enabler
	flight.MotionController
	motion.LimbSource
}

func (c *FlyCommand) Execute(args []string) error {
	cfg, err := c.config()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	condition, err := motion.ParseCondition(c.Condition)
	if err != nil {
		return err
	}

	printBanner()

	// The dashboard owns the terminal, so logs go to its log box.
	var logs chan string
	var logger *zap.SugaredLogger
	if c.Plain {
		logger = dlog.NewStdout("dronearm", cfg.LogLevel)
	} else {
		logs = make(chan string, 64)
		logger = dlog.New("dronearm", cfg.LogLevel, logWriter(logs))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, closeArm, err := c.connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeArm()

	fmt.Println("Getting robot state... ")
	if err := a.Enable(ctx); err != nil {
		return fmt.Errorf("enable robot: %w", err)
	}
	if !c.Yes && !confirmEnabled() {
		return nil
	}

	reg := prometheus.NewRegistry()
	metrics, err := flight.NewMetrics(reg)
	if err != nil {
		return err
	}
	if c.MetricsAddr != "" {
		srv := serveMetrics(c.MetricsAddr, reg, logger)
		defer srv.Close()
	}

	d := flight.NewDispatcher(a, motion.NewBuilder(a, nil), motion.NewSession(), logger)
	d.SetLimits(cfg.Limits)
	d.SetMetrics(metrics)

	seq := flight.NewSequencer(d, flight.Config{
		Condition:      condition,
		Randomize:      c.Randomize,
		TraceBox:       c.Box,
		ResetToNeutral: c.Reset,
		Hz:             c.Hz,
		Seed:           c.Seed,
	}, nil, logger)

	if c.Plain {
		err = seq.Run(ctx)
	} else {
		err = runDashboard(ctx, seq, d, logs)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *FlyCommand) config() (*robot.Config, error) {
	cfg, err := loadConfig()
	switch {
	case err == nil:
	case c.Sim && errors.Is(err, os.ErrNotExist):
		cfg = robot.Default()
	case errors.Is(err, os.ErrNotExist):
		return nil, errors.New("no configuration found, run 'dronearm setup' first")
	default:
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if c.URL != "" {
		cfg.Bridge.URL = c.URL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *FlyCommand) connect(ctx context.Context, cfg *robot.Config, logger *zap.SugaredLogger) (arm, func(), error) {
	if c.Sim {
		sim := robot.NewSim(nil, logger)
		sim.TimeScale = c.TimeScale
		return sim, func() {}, nil
	}
	b, err := robot.Dial(ctx, cfg.Bridge, logger)
	if err != nil {
		return nil, nil, err
	}
	return b, func() {
		if err := b.Close(); err != nil {
			logger.Warnw("closing bridge", "error", err)
		}
	}, nil
}

func printBanner() {
	fmt.Println()
	fmt.Println(headerStyle.Render("dronearm"))
	fmt.Println("Pose for arm set to front: ")
	fmt.Printf("\tPosition: x: %.2f, y: %.1f, z: %.1f\n", motion.Neutral.X, motion.Neutral.Y, motion.Neutral.Z)
	fmt.Println("\tOrientation: roll: 0.0, pitch: 0.0, yaw: 0.0")
	fmt.Println()
	fmt.Println(dimStyle.Render("Coordinate system is RHS - +z up, +x in front, +y to left"))
	fmt.Println()
}

func confirmEnabled() bool {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Robot enabled").
				Description("The arm will move to neutral and start flying.").
				Affirmative("Continue").
				Negative("Abort").
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		return false
	}
	return ok
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.SugaredLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Infow("serving metrics", "addr", addr)
	return srv
}

// logWriter feeds log lines into the dashboard, dropping them when it lags.
type logWriter chan string

func (w logWriter) Write(p []byte) (int, error) {
	line := string(p)
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	select {
	case w <- line:
	default:
	}
	return len(p), nil
}

func runDashboard(ctx context.Context, seq *flight.Sequencer, d *flight.Dispatcher, logs <-chan string) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(initialDashboard(seq, d, logs, cancel), tea.WithAltScreen(), tea.WithContext(ctx))

	done := make(chan error, 1)
	go func() {
		err := seq.Run(runCtx)
		done <- err
		p.Send(doneMsg{err: err})
	}()

	_, err := p.Run()
	cancel()
	runErr := <-done
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return runErr
}
