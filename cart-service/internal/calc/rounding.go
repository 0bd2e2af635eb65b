package calc

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type RoundMethod int

const (
	// RoundDown rounds toward negative infinity.
	RoundDown RoundMethod = iota
	// RoundHalfUp rounds half away from zero.
	RoundHalfUp
	// RoundUp rounds toward positive infinity.
	RoundUp
)

func (m RoundMethod) String() string {
	switch m {
	case RoundDown:
		return "floor"
	case RoundHalfUp:
		return "round"
	case RoundUp:
		return "ceil"
	}
	return fmt.Sprintf("round_method(%d)", int(m))
}

// ParseRoundMethod accepts floor/round/ceil and the RoundDown/Round/RoundUp aliases used by master data.
func ParseRoundMethod(v string) (RoundMethod, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "floor", "rounddown", "round_down", "down":
		return RoundDown, nil
	case "round", "roundhalfup", "half_up", "halfup":
		return RoundHalfUp, nil
	case "ceil", "roundup", "round_up", "up":
		return RoundUp, nil
	}
	return 0, fmt.Errorf("unknown round method %q", v)
}

// Round rounds v at digit places after the decimal point.
// A negative digit rounds to tens, hundreds and so on.
func Round(v decimal.Decimal, digit int32, m RoundMethod) decimal.Decimal {
	switch m {
	case RoundDown:
		return v.RoundFloor(digit)
	case RoundUp:
		return v.RoundCeil(digit)
	default:
		return v.Round(digit)
	}
}
