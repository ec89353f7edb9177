package strategy

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Strategy type names accepted in a Record.
const (
	TypeDeclarative = "declarative"
	TypeORB         = "orb"
	TypeCustom      = "custom"
	TypeRSI         = "rsi"
	TypeMACross     = "ma_cross"
)

// ErrUnknownType is returned by Build for an unsupported strategy type.
var ErrUnknownType = errors.New("unknown strategy type")

// ErrInvalidParameters wraps parameter decoding and validation failures.
var ErrInvalidParameters = errors.New("invalid strategy parameters")

// Build instantiates the strategy described by rec.
func Build(rec Record) (Strategy, error) {
	switch strings.ToLower(rec.Type) {
	case TypeDeclarative:
		var p DeclarativeParams
		if err := decodeParams(rec.Parameters, &p); err != nil {
			return nil, err
		}
		return NewDeclarative(p)
	case TypeORB, "opening_range_breakout":
		var p ORBParams
		if err := decodeParams(rec.Parameters, &p); err != nil {
			return nil, err
		}
		return NewOpeningRangeBreakout(p)
	case TypeRSI:
		var p RSIParams
		if err := decodeParams(rec.Parameters, &p); err != nil {
			return nil, err
		}
		return NewRSIReversion(p)
	case TypeMACross:
		var p MACrossParams
		if err := decodeParams(rec.Parameters, &p); err != nil {
			return nil, err
		}
		return NewMACross(p)
	case TypeCustom:
		return NewCustom(rec.Parameters)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, rec.Type)
	}
}

// decodeParams maps loosely typed parameters onto a params struct.
func decodeParams(in map[string]any, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return nil
}
