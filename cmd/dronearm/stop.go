package main

import (
	"context"
	"fmt"
	"os"
	"time"

	dlog "github.com/gwillem/dronearm/internal/log"
	"github.com/gwillem/dronearm/pkg/robot"
)

type StopCommand struct {
	Timeout time.Duration `long:"timeout" default:"5s" description:"Give up after this long"`
}

func (c *StopCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "No configuration found. Run 'dronearm setup' first.")
		os.Exit(1)
	}

	logger := dlog.NewStdout("dronearm", cfg.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	b, err := robot.Dial(ctx, cfg.Bridge, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	logger.Info("Stopping arm...")
	if err := b.StopTrajectory(ctx); err != nil {
		logger.Errorw("There may have been an error exiting", "error", err)
		return err
	}
	logger.Info("Stop successful")
	return nil
}
