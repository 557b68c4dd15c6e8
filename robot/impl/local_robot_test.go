package robotimpl

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/gridbot/gridbot/config"
	"github.com/gridbot/gridbot/field"
	"github.com/gridbot/gridbot/logging"
	"github.com/gridbot/gridbot/robot"
	"github.com/gridbot/gridbot/testutils"
	"github.com/gridbot/gridbot/testutils/inject"
)

func TestMain(m *testing.M) {
	testutils.VerifyTestMain(m)
}

func testConfig(t *testing.T, corner int) (*config.Config, *field.Geometry) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "handshake.json")
	contents := `{"BTN": 4, "BSC": 1, "CSC": 3,
		"LGZx": 2, "LGZy": 2, "UGZx": 4, "UGZy": 3,
		"LRZx": 7, "LRZy": 7, "URZx": 9, "URZy": 9}`
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)

	cfg := config.Default()
	cfg.TeamNumber = 4
	if corner == field.TopRight {
		cfg.TeamNumber = 7
	}
	cfg.Handshake = path
	cfg.Telemetry.Dir = filepath.Join(dir, "telemetry")
	cfg.Telemetry.Display = true
	test.That(t, cfg.Validate(), test.ShouldBeNil)
	g, err := cfg.Geometry()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, g.StartingCorner, test.ShouldEqual, corner)
	return cfg, g
}

func TestNewAndClose(t *testing.T) {
	cfg, g := testConfig(t, field.BottomLeft)
	var out bytes.Buffer
	r, err := New(context.Background(), cfg, g, logging.NewTestLogger(t), WithDisplayWriter(&out))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, r.State().Localizing(), test.ShouldBeTrue)
	test.That(t, r.State().SearchPoint(), test.ShouldResemble, g.SearchPoint)
	test.That(t, r.Navigator().Pose().X(), test.ShouldEqual, 0.)

	e := r.Entry()
	test.That(t, e.Phase, test.ShouldEqual, "idle")
	test.That(t, e.Flags(), test.ShouldEqual, "localizing")

	// the robot really starts in its corner tile
	truth := r.World().TruePose()
	test.That(t, truth.X, test.ShouldBeLessThan, 0)
	test.That(t, truth.Y, test.ShouldBeLessThan, 0)

	test.That(t, r.Close(context.Background()), test.ShouldBeNil)
	test.That(t, r.Close(context.Background()), test.ShouldBeNil)

	_, err = r.Run(context.Background())
	test.That(t, err, test.ShouldBeError, "robot is closed")

	entries, err := os.ReadDir(cfg.Telemetry.Dir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, entries, test.ShouldHaveLength, 1)
}

func TestStartsInCollectorCorner(t *testing.T) {
	cfg, g := testConfig(t, field.TopRight)
	cfg.Telemetry.Dir = ""
	r, err := New(context.Background(), cfg, g, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, r.Close(context.Background()), test.ShouldBeNil)
	}()

	truth := r.World().TruePose()
	far := 10 * cfg.Field.TileWidth
	test.That(t, truth.X, test.ShouldBeGreaterThan, far)
	test.That(t, truth.Y, test.ShouldBeGreaterThan, far)
}

func TestRunCancelled(t *testing.T) {
	cfg, g := testConfig(t, field.BottomLeft)
	cfg.Telemetry.Display = false

	var signals []robot.Signal
	signaler := inject.NewSignaler()
	signaler.SignalFunc = func(ctx context.Context, s robot.Signal) {
		signals = append(signals, s)
	}
	r, err := New(context.Background(), cfg, g, logging.NewTestLogger(t), WithSignaler(signaler))
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "localization failed")
	test.That(t, signals, test.ShouldResemble, []robot.Signal{robot.SignalReady})

	_, err = r.Run(context.Background())
	test.That(t, err, test.ShouldBeError, "robot is already running")
	test.That(t, r.Close(context.Background()), test.ShouldBeNil)
}
