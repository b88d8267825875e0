package core

import (
	"fmt"
	"strings"
)

// MeterType identifies a household meter.
type MeterType string

const (
	Electricity MeterType = "ELECTRICITY"
	Gas         MeterType = "GAS"
	Water       MeterType = "WATER"
)

type meterInfo struct {
	label string
	icon  string
	color string
	unit  string
}

var meterTable = map[MeterType]meterInfo{
	Electricity: {label: "Strom", icon: "⚡", color: "#f59e0b", unit: "kWh"},
	Gas:         {label: "Gas", icon: "🔥", color: "#3b82f6", unit: "m³"},
	Water:       {label: "Wasser", icon: "💧", color: "#10b981", unit: "m³"},
}

var unknownMeter = meterInfo{label: "Unbekannt", icon: "📊", color: "#6b7280"}

// AllMeterTypes lists every meter type in display order.
func AllMeterTypes() []MeterType {
	return []MeterType{Electricity, Gas, Water}
}

// PricedMeterTypes lists the meter types that carry a utility price.
func PricedMeterTypes() []MeterType {
	return []MeterType{Electricity, Gas}
}

// ParseMeterType resolves a meter type case-insensitively.
func ParseMeterType(s string) (MeterType, error) {
	t := MeterType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := meterTable[t]; !ok {
		return "", &ValidationError{Field: "meterType", Message: fmt.Sprintf("unknown meter type %q", s)}
	}
	return t, nil
}

func (t MeterType) info() meterInfo {
	if info, ok := meterTable[t]; ok {
		return info
	}
	return unknownMeter
}

// IsValid reports whether t is a known meter type.
func (t MeterType) IsValid() bool {
	_, ok := meterTable[t]
	return ok
}

// IsPriced reports whether prices can be recorded for t.
func (t MeterType) IsPriced() bool {
	return t == Electricity || t == Gas
}

func (t MeterType) String() string { return string(t) }

// Label returns the German display name.
func (t MeterType) Label() string { return t.info().label }

func (t MeterType) Icon() string { return t.info().icon }

func (t MeterType) Color() string { return t.info().color }

// Unit returns the measuring unit, empty for unknown types.
func (t MeterType) Unit() string { return t.info().unit }

// Slug is the lower-case form used in URLs and cache keys.
func (t MeterType) Slug() string { return strings.ToLower(string(t)) }

// UnmarshalText accepts any casing of a known meter type.
func (t *MeterType) UnmarshalText(b []byte) error {
	parsed, err := ParseMeterType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t MeterType) MarshalText() ([]byte, error) {
	return []byte(t), nil
}
