// Package main runs a gridbot mission in the simulated field, or checks a configuration.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gridbot/gridbot/config"
	"github.com/gridbot/gridbot/field"
	"github.com/gridbot/gridbot/logging"
	robotimpl "github.com/gridbot/gridbot/robot/impl"
)

const (
	configFlag       = "config"
	debugFlag        = "debug"
	waitFlag         = "wait-handshake"
	telemetryDirFlag = "telemetry-dir"
	displayFlag      = "display"
)

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:            "gridbot",
		Usage:           "run an autonomous block-stacking robot",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     configFlag,
				Aliases:  []string{"c"},
				Usage:    "load configuration from `FILE`",
				Required: true,
			},
			&cli.BoolFlag{
				Name:    debugFlag,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "localize, then search and build until the tower is complete",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  waitFlag,
						Usage: "wait for the handshake file to be written instead of failing when it is missing",
					},
					&cli.StringFlag{
						Name:  telemetryDirFlag,
						Usage: "write a telemetry CSV to `DIR`",
					},
					&cli.BoolFlag{
						Name:  displayFlag,
						Usage: "draw the robot's state on the terminal",
					},
				},
				Action: RunAction,
			},
			{
				Name:   "validate",
				Usage:  "check the configuration and handshake and print the field geometry",
				Action: ValidateAction,
			},
		},
	}
}

func readConfig(c *cli.Context) (*config.Config, logging.Logger, func() error, error) {
	cfg, err := config.Read(c.String(configFlag))
	if err != nil {
		return nil, nil, nil, err
	}

	var logger logging.Logger
	if c.Bool(debugFlag) {
		logging.GlobalLogLevel.SetLevel(zap.DebugLevel)
		logger = logging.NewDebugLogger("gridbot")
	} else {
		logger = logging.NewLogger("gridbot")
		logger.SetLevel(cfg.Logging.Level)
	}
	if err := logging.UpdateLogConfig(cfg.Logging.Patterns); err != nil {
		return nil, nil, nil, err
	}
	closeLog := func() error { return logger.Sync() }
	if cfg.Logging.File != "" {
		appender, closer := logging.NewFileAppender(cfg.Logging.File)
		logger.AddAppender(appender)
		closeLog = func() error { return multierr.Combine(logger.Sync(), closer.Close()) }
	}
	logging.ReplaceGlobal(logger)
	return cfg, logger, closeLog, nil
}

// RunAction runs a whole mission.
func RunAction(c *cli.Context) (err error) {
	cfg, logger, closeLog, err := readConfig(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, closeLog())
	}()
	if dir := c.String(telemetryDirFlag); dir != "" {
		cfg.Telemetry.Dir = dir
	}
	if c.Bool(displayFlag) {
		cfg.Telemetry.Display = true
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var g *field.Geometry
	if c.Bool(waitFlag) {
		h, err := field.WaitForHandshakeFile(ctx, cfg.HandshakePath(), logger)
		if err != nil {
			return err
		}
		if g, err = field.NewGeometry(h, cfg.TeamNumber, cfg.Field); err != nil {
			return err
		}
	} else if g, err = cfg.Geometry(); err != nil {
		return errors.Wrap(err, "no usable handshake; refusing to move")
	}

	r, err := robotimpl.New(ctx, cfg, g, logger, robotimpl.WithDisplayWriter(c.App.Writer))
	if err != nil {
		return err
	}
	defer func() {
		//nolint:contextcheck
		err = multierr.Combine(err, r.Close(context.Background()))
	}()

	result, err := r.Run(ctx)
	fmt.Fprintf(c.App.Writer, "captured %d, rejected %d, relocated %d times, tower complete: %v\n",
		result.Captured, result.Rejected, result.Relocations, result.Complete)
	if errors.Is(err, context.Canceled) {
		logger.Info("mission stopped")
		return nil
	}
	return err
}

// ValidateAction checks the configuration and prints what the robot derives from it.
func ValidateAction(c *cli.Context) error {
	cfg, _, closeLog, err := readConfig(c)
	if err != nil {
		return err
	}
	g, err := cfg.Geometry()
	if err != nil {
		return multierr.Combine(err, closeLog())
	}
	fmt.Fprintln(c.App.Writer, GeometryTable(g))
	return closeLog()
}

// GeometryTable lays out the derived field geometry.
func GeometryTable(g *field.Geometry) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Item", "Value"})
	point := func(x, y float64) string { return fmt.Sprintf("(%.1f, %.1f)", x, y) }
	t.AppendRows([]table.Row{
		{"role", g.Role.String()},
		{"starting corner", g.StartingCorner},
		{"builder zone", g.BuilderZone.String()},
		{"collector zone", g.CollectorZone.String()},
		{"interior", g.Interior.String()},
		{"map center", point(g.MapCenter.X, g.MapCenter.Y)},
		{"search point", point(g.SearchPoint.X, g.SearchPoint.Y)},
		{"stack point", point(g.StackPoint.X, g.StackPoint.Y)},
		{"correction anchor", point(g.CorrectionAnchor.X, g.CorrectionAnchor.Y)},
		{"search sector", field.SectorFor(g.SearchPoint, g.MapCenter).String()},
	})
	return t.Render()
}

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
