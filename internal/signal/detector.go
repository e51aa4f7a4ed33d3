// Package signal computes the deterministic risk signals of a transaction
// against the customer's behavioural profile.
package signal

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"riskgraph/pkg/types"
)

// DefaultAmountMultiplier is K in "amount > usual average * K".
const DefaultAmountMultiplier = 3.0

// Detector evaluates the four signal rules. The zero value uses
// DefaultAmountMultiplier. Detect has no I/O and never fails.
type Detector struct {
	AmountMultiplier float64
}

// NewDetector returns a Detector with multiplier k; k <= 0 selects the default.
func NewDetector(k float64) Detector {
	return Detector{AmountMultiplier: k}
}

// Detect returns the set of signals raised by tx against customer. Each rule
// is independent, so the result does not depend on evaluation order.
func (d Detector) Detect(tx types.Transaction, customer types.CustomerProfile) types.SignalSet {
	return d.Behavior(tx, customer, d.Context(tx, customer))
}

// Context evaluates the transaction-level rules: amount, hour and country.
func (d Detector) Context(tx types.Transaction, customer types.CustomerProfile) types.SignalSet {
	set := types.NewSignalSet()
	if d.amountDeviates(tx, customer) {
		set = set.With(types.SignalAmountDeviation)
	}
	if unusualHour(tx, customer) {
		set = set.With(types.SignalUnusualHour)
	}
	if len(customer.UsualCountries) > 0 && !customer.UsualCountries.Contains(tx.Country) {
		set = set.With(types.SignalUnusualCountry)
	}
	return set
}

// Behavior extends base with the device-history rule.
func (d Detector) Behavior(tx types.Transaction, customer types.CustomerProfile, base types.SignalSet) types.SignalSet {
	if len(customer.UsualDevices) > 0 && !customer.UsualDevices.Contains(tx.DeviceID) {
		return base.With(types.SignalUnknownDevice)
	}
	return base
}

func (d Detector) amountDeviates(tx types.Transaction, customer types.CustomerProfile) bool {
	k := d.AmountMultiplier
	if k <= 0 {
		k = DefaultAmountMultiplier
	}
	limit := customer.UsualAmountAvg.Mul(decimal.NewFromFloat(k))
	return tx.Amount.GreaterThan(limit)
}

// unusualHour is false whenever the window cannot be parsed or the
// transaction has no timestamp.
func unusualHour(tx types.Transaction, customer types.CustomerProfile) bool {
	if tx.Timestamp.IsZero() {
		return false
	}
	start, end, ok := ParseHourWindow(customer.UsualHours)
	if !ok {
		return false
	}
	return !InWindow(tx.Timestamp.Hour(), start, end)
}

// ParseHourWindow parses "HH-HH" into inclusive start and end hours.
func ParseHourWindow(s string) (start, end int, ok bool) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	end, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	if start < 0 || start > 23 || end < 0 || end > 23 {
		return 0, 0, false
	}
	return start, end, true
}

// InWindow reports whether hour lies in [start, end]. A window with
// start > end wraps past midnight, e.g. 22-06.
func InWindow(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour <= end
	}
	return hour >= start || hour <= end
}
