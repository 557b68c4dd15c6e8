package robot

import (
	"sync"

	"github.com/golang/geo/r2"
	"go.uber.org/atomic"
)

// MaxTowerHeight is the number of blocks in a finished tower.
const MaxTowerHeight = 4

// State is the mission state shared between the control task and the avoidance monitor. Flags are
// independent; the tower and the search point each have their own lock.
type State struct {
	localizing   atomic.Bool
	searching    atomic.Bool
	avoiding     atomic.Bool
	holdingBlock atomic.Bool

	towerMu      sync.Mutex
	towerHeight  int
	liftPosition float64

	searchMu    sync.Mutex
	searchPoint r2.Point
}

// NewState returns the state at power on: localizing, nothing stacked, the initial search point.
func NewState(searchPoint r2.Point) *State {
	s := &State{searchPoint: searchPoint}
	s.localizing.Store(true)
	return s
}

// Localizing reports whether the robot is still finding its absolute position.
func (s *State) Localizing() bool { return s.localizing.Load() }

// SetLocalizing sets the localizing flag.
func (s *State) SetLocalizing(v bool) { s.localizing.Store(v) }

// Searching reports whether the robot is scanning for blocks.
func (s *State) Searching() bool { return s.searching.Load() }

// SetSearching sets the searching flag.
func (s *State) SetSearching(v bool) { s.searching.Store(v) }

// Avoiding reports whether an avoidance episode owns the wheels.
func (s *State) Avoiding() bool { return s.avoiding.Load() }

// SetAvoiding sets the avoiding flag.
func (s *State) SetAvoiding(v bool) { s.avoiding.Store(v) }

// HoldingBlock reports whether a block is in the gripper.
func (s *State) HoldingBlock() bool { return s.holdingBlock.Load() }

// SetHoldingBlock sets the holding flag.
func (s *State) SetHoldingBlock(v bool) { s.holdingBlock.Store(v) }

// TowerHeight returns how many blocks have been stacked.
func (s *State) TowerHeight() int {
	s.towerMu.Lock()
	defer s.towerMu.Unlock()
	return s.towerHeight
}

// IncrementTowerHeight records a placed block and returns the new height.
func (s *State) IncrementTowerHeight() int {
	s.towerMu.Lock()
	defer s.towerMu.Unlock()
	s.towerHeight++
	return s.towerHeight
}

// LiftPosition returns how far the lift is from its rest position, in motor degrees.
func (s *State) LiftPosition() float64 {
	s.towerMu.Lock()
	defer s.towerMu.Unlock()
	return s.liftPosition
}

// SetLiftPosition records the lift offset.
func (s *State) SetLiftPosition(degrees float64) {
	s.towerMu.Lock()
	defer s.towerMu.Unlock()
	s.liftPosition = degrees
}

// SearchPoint returns where scanning happens from.
func (s *State) SearchPoint() r2.Point {
	s.searchMu.Lock()
	defer s.searchMu.Unlock()
	return s.searchPoint
}

// SetSearchPoint moves the search point.
func (s *State) SetSearchPoint(p r2.Point) {
	s.searchMu.Lock()
	defer s.searchMu.Unlock()
	s.searchPoint = p
}
