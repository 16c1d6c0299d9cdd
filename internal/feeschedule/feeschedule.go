// Package feeschedule holds the static reference tables the monthly fee
// generation job prices from. A Schedule is built once at startup and is
// immutable afterwards.
package feeschedule

import "encoding/json"

type Schedule struct {
	baseFees   map[string]int64
	surcharges map[string]int64
}

// New builds a schedule from optional JSON overrides. Empty strings keep the
// built-in tables.
func New(baseFeeJSON, surchargeJSON string) (Schedule, error) {
	base := defaultBaseFees
	if baseFeeJSON != "" {
		parsed := map[string]int64{}
		if err := json.Unmarshal([]byte(baseFeeJSON), &parsed); err != nil {
			return Schedule{}, err
		}
		base = parsed
	}
	surcharge := defaultBusFees
	if surchargeJSON != "" {
		parsed := map[string]int64{}
		if err := json.Unmarshal([]byte(surchargeJSON), &parsed); err != nil {
			return Schedule{}, err
		}
		surcharge = parsed
	}
	return Schedule{baseFees: base, surcharges: surcharge}, nil
}

// BaseFee returns the monthly base fee for a grade. The second return is
// false when the grade is not on the schedule; such students cannot be billed.
func (s Schedule) BaseFee(standard string) (int64, bool) {
	fee, ok := s.baseFees[standard]
	return fee, ok
}

// Surcharge returns the transport add-on for a pickup point. An unmapped
// pickup point is billed at zero, not treated as an error.
func (s Schedule) Surcharge(pickupPoint string) int64 {
	return s.surcharges[pickupPoint]
}

var defaultBaseFees = map[string]int64{
	"1":  1200,
	"2":  1500,
	"3":  1600,
	"4":  1700,
	"5":  1800,
	"6":  1900,
	"7":  2000,
	"8":  2100,
	"9":  2200,
	"10": 2300,
	"11": 2400,
	"12": 2500,
}

var defaultBusFees = map[string]int64{
	"Pickup1":  500,
	"Pickup2":  1000,
	"Pickup3":  1500,
	"Pickup4":  500,
	"Pickup5":  1000,
	"Pickup6":  1500,
	"Pickup7":  500,
	"Pickup8":  1000,
	"Pickup9":  1500,
	"Pickup10": 500,
	"Pickup11": 1000,
	"Pickup12": 1500,
}
