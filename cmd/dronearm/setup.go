package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	dlog "github.com/gwillem/dronearm/internal/log"
	"github.com/gwillem/dronearm/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct {
	URL string `long:"url" description:"rosbridge websocket URL (skips the prompt)"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("dronearm Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg, err := robot.LoadConfigFrom(opts.ConfigFile)
	if err != nil {
		cfg = robot.Default()
	}

	// Step 1: ask for the bridge URL
	bridgeURL := c.URL
	if bridgeURL == "" {
		bridgeURL = cfg.Bridge.URL
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("rosbridge URL").
					Description("Where rosbridge_server listens on the robot's ROS master").
					Value(&bridgeURL).
					Validate(validateBridgeURL),
			),
		)
		if err := form.Run(); err != nil {
			fmt.Println()
			os.Exit(0)
		}
	}
	cfg.Bridge.URL = bridgeURL
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}

	// Step 2: probe the bridge
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Probing robot ━━━"))
	fmt.Println()
	if err := probe(cfg); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("Probe failed: %v", err)))
		fmt.Println("Check that rosbridge_server is running and the robot is powered on.")
		os.Exit(1)
	}

	if err := cfg.SaveTo(opts.ConfigFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.ConfigFile)
	fmt.Println()
	fmt.Println("Start flying with: " + headerStyle.Render("dronearm fly"))
	return nil
}

func validateBridgeURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.New("use a ws:// or wss:// URL")
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// probe connects to the bridge and prints the limb's current joint angles.
func probe(cfg *robot.Config) error {
	logger := dlog.NewStdout("dronearm", "warn")
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Bridge.HandshakeTimeout+cfg.Bridge.LimbTimeout))
	defer cancel()

	fmt.Printf("Connecting to %s...\n", cfg.Bridge.URL)
	b, err := robot.Dial(ctx, cfg.Bridge, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	limb, err := b.Limb(ctx)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(limb.JointNames))
	for i, name := range limb.JointNames {
		rows = append(rows, []string{name, fmt.Sprintf("%.3f", limb.JointAngles[i])})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Joint", "Angle (rad)").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			if col == 0 {
				return subHeaderStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	fmt.Println(successStyle.Render(fmt.Sprintf("Found limb %q with endpoint %q", limb.Name, limb.Tip)))
	fmt.Println(t.Render())
	return nil
}
