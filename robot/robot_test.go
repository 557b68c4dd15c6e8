package robot

import (
	"context"
	"sync"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"github.com/gridbot/gridbot/logging"
)

func TestState(t *testing.T) {
	s := NewState(r2.Point{X: 10, Y: 20})
	test.That(t, s.Localizing(), test.ShouldBeTrue)
	test.That(t, s.Searching(), test.ShouldBeFalse)
	test.That(t, s.SearchPoint(), test.ShouldResemble, r2.Point{X: 10, Y: 20})

	s.SetLocalizing(false)
	s.SetSearching(true)
	s.SetAvoiding(true)
	s.SetHoldingBlock(true)
	test.That(t, s.Localizing(), test.ShouldBeFalse)
	test.That(t, s.Searching(), test.ShouldBeTrue)
	test.That(t, s.Avoiding(), test.ShouldBeTrue)
	test.That(t, s.HoldingBlock(), test.ShouldBeTrue)

	s.SetLiftPosition(-350)
	test.That(t, s.LiftPosition(), test.ShouldEqual, -350.)
	s.SetSearchPoint(r2.Point{X: 1})
	test.That(t, s.SearchPoint(), test.ShouldResemble, r2.Point{X: 1})

	var wg sync.WaitGroup
	for i := 0; i < MaxTowerHeight; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.IncrementTowerHeight()
		}()
	}
	wg.Wait()
	test.That(t, s.TowerHeight(), test.ShouldEqual, MaxTowerHeight)
}

func TestBodyValidate(t *testing.T) {
	b := DefaultBody()
	test.That(t, b.Validate("body"), test.ShouldBeNil)
	b.Track = 0
	test.That(t, b.Validate("body").Error(), test.ShouldContainSubstring, "track")
	b = DefaultBody()
	b.BumperToCenter = -1
	test.That(t, b.Validate("body").Error(), test.ShouldContainSubstring, "must not be negative")
}

func TestLogSignaler(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	NewLogSignaler(logger).Signal(context.Background(), SignalLocalized)
	test.That(t, logs.FilterMessage("signal").Len(), test.ShouldEqual, 1)
	test.That(t, logs.All()[0].ContextMap()["signal"], test.ShouldEqual, "localized")
	test.That(t, Signal(99).String(), test.ShouldEqual, "unknown")
}
