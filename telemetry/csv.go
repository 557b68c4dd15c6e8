package telemetry

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/gridbot/gridbot/logging"
	"github.com/gridbot/gridbot/spatialmath"
	"github.com/gridbot/gridbot/utils"
)

var csvHeader = []string{
	"run_id", "elapsed_ms", "x", "y", "heading_deg", "phase", "tower_height", "flags",
}

// CSVLogger appends one row per period to a CSV file named after the run.
type CSVLogger struct {
	runID    uuid.UUID
	path     string
	provider Provider
	period   time.Duration
	clk      clock.Clock
	logger   logging.Logger
	start    time.Time

	mu     sync.Mutex
	file   *os.File
	w      *csv.Writer
	closed bool

	workersMu sync.Mutex
	workers   *utils.StoppableWorkers
}

// NewCSVLogger creates dir if needed and opens a new log file in it.
func NewCSVLogger(
	dir string,
	provider Provider,
	period time.Duration,
	clk clock.Clock,
	logger logging.Logger,
) (*CSVLogger, error) {
	if clk == nil {
		clk = clock.New()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "creating telemetry directory")
	}
	runID := uuid.New()
	path := filepath.Join(dir, fmt.Sprintf("gridbot-%s.csv", runID))
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "creating telemetry log")
	}
	l := &CSVLogger{
		runID:    runID,
		path:     path,
		provider: provider,
		period:   period,
		clk:      clk,
		logger:   logger,
		start:    clk.Now(),
		file:     f,
		w:        csv.NewWriter(f),
	}
	if err := l.writeRow(csvHeader); err != nil {
		return nil, multierr.Combine(err, f.Close())
	}
	return l, nil
}

// RunID identifies the run in every row.
func (l *CSVLogger) RunID() uuid.UUID {
	return l.runID
}

// Path is the log file.
func (l *CSVLogger) Path() string {
	return l.path
}

func (l *CSVLogger) writeRow(row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.New("telemetry log is closed")
	}
	if err := l.w.Write(row); err != nil {
		return err
	}
	l.w.Flush()
	return l.w.Error()
}

// Write samples the provider and appends a row.
func (l *CSVLogger) Write() error {
	e := l.provider.Entry()
	return l.writeRow([]string{
		l.runID.String(),
		strconv.FormatInt(e.Time.Sub(l.start).Milliseconds(), 10),
		strconv.FormatFloat(e.Pose.X, 'f', 2, 64),
		strconv.FormatFloat(e.Pose.Y, 'f', 2, 64),
		strconv.FormatFloat(spatialmath.FromRadians(e.Pose.Heading, spatialmath.PolarDegrees), 'f', 1, 64),
		e.Phase,
		strconv.Itoa(e.TowerHeight),
		e.Flags(),
	})
}

// Start writes a row every period in the background until Close.
func (l *CSVLogger) Start() {
	l.workersMu.Lock()
	defer l.workersMu.Unlock()
	if l.workers != nil {
		return
	}
	l.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		if err := utils.RunPeriodically(ctx, l.clk, l.period, func(ctx context.Context) (bool, error) {
			if err := l.Write(); err != nil {
				return true, err
			}
			return false, nil
		}); err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Errorw("telemetry log stopped", "path", l.path, "error", err)
		}
	})
}

// Close stops logging and closes the file.
func (l *CSVLogger) Close() error {
	l.workersMu.Lock()
	if l.workers != nil {
		l.workers.Stop()
	}
	l.workersMu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.w.Flush()
	return multierr.Combine(l.w.Error(), l.file.Close())
}
