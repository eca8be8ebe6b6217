package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/dronearm/pkg/robot"
)

type Options struct {
	ConfigFile string `short:"c" long:"config" default:"dronearm.json" description:"Path to the configuration file"`
	LogLevel   string `long:"log-level" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Override the configured log level"`

	Setup SetupCommand `command:"setup" description:"Configure and probe the rosbridge connection"`
	Fly   FlyCommand   `command:"fly" description:"Move the arm through the drone flight sequence"`
	Stop  StopCommand  `command:"stop" description:"Stop the running trajectory"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "dronearm - fly a simulated drone on a Sawyer arm"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the global overrides.
func loadConfig() (*robot.Config, error) {
	cfg, err := robot.LoadConfigFrom(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", opts.ConfigFile, err)
	}
	return cfg, nil
}
