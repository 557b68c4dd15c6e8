package field

import (
	"encoding/json"
	"sort"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Handshake is the startup parameter set delivered to the robot before a run: which team builds,
// where each team starts and the grid cells bounding the two zones. Keys match the names used on
// the wire.
type Handshake struct {
	BuilderTeam          int `mapstructure:"BTN" json:"BTN"`
	BuilderStartCorner   int `mapstructure:"BSC" json:"BSC"`
	CollectorStartCorner int `mapstructure:"CSC" json:"CSC"`

	// green zone, where the builder stacks
	LowerGreenX int `mapstructure:"LGZx" json:"LGZx"`
	LowerGreenY int `mapstructure:"LGZy" json:"LGZy"`
	UpperGreenX int `mapstructure:"UGZx" json:"UGZx"`
	UpperGreenY int `mapstructure:"UGZy" json:"UGZy"`

	// red zone, where the collector drops
	LowerRedX int `mapstructure:"LRZx" json:"LRZx"`
	LowerRedY int `mapstructure:"LRZy" json:"LRZy"`
	UpperRedX int `mapstructure:"URZx" json:"URZx"`
	UpperRedY int `mapstructure:"URZy" json:"URZy"`
}

// DecodeHandshake decodes the raw key/value exchange. Numbers may arrive as any numeric type or
// as strings. Every key is required.
func DecodeHandshake(raw map[string]interface{}) (*Handshake, error) {
	var h Handshake
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         &md,
		WeaklyTypedInput: true,
		Result:           &h,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "cannot decode handshake")
	}
	if len(md.Unset) > 0 {
		sort.Strings(md.Unset)
		return nil, errors.Errorf("handshake is missing %v", md.Unset)
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return &h, nil
}

// ReadHandshakeFile reads a JSON object of handshake keys from path, expanding environment
// variables first.
func ReadHandshakeFile(path string) (*Handshake, error) {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read handshake file %q", path)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(buf, &raw); err != nil {
		return nil, errors.Wrapf(err, "handshake file %q is not a JSON object", path)
	}
	return DecodeHandshake(raw)
}

// Validate reports every inconsistency in the handshake.
func (h *Handshake) Validate() error {
	var err error
	if !validCorner(h.BuilderStartCorner) {
		err = multierr.Append(err, errors.Errorf("BSC must be a corner between 1 and 4, got %d", h.BuilderStartCorner))
	}
	if !validCorner(h.CollectorStartCorner) {
		err = multierr.Append(err, errors.Errorf("CSC must be a corner between 1 and 4, got %d", h.CollectorStartCorner))
	}
	if h.UpperGreenX <= h.LowerGreenX || h.UpperGreenY <= h.LowerGreenY {
		err = multierr.Append(err, errors.Errorf("green zone (%d, %d)-(%d, %d) is empty",
			h.LowerGreenX, h.LowerGreenY, h.UpperGreenX, h.UpperGreenY))
	}
	if h.UpperRedX <= h.LowerRedX || h.UpperRedY <= h.LowerRedY {
		err = multierr.Append(err, errors.Errorf("red zone (%d, %d)-(%d, %d) is empty",
			h.LowerRedX, h.LowerRedY, h.UpperRedX, h.UpperRedY))
	}
	return err
}

// GreenZone returns the green zone scaled by tile.
func (h *Handshake) GreenZone(tile float64) Zone {
	return ZoneFromCells(h.LowerGreenX, h.LowerGreenY, h.UpperGreenX, h.UpperGreenY, tile)
}

// RedZone returns the red zone scaled by tile.
func (h *Handshake) RedZone(tile float64) Zone {
	return ZoneFromCells(h.LowerRedX, h.LowerRedY, h.UpperRedX, h.UpperRedY, tile)
}

func validCorner(c int) bool {
	return c >= 1 && c <= 4
}
