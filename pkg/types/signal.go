package types

import "sort"

// Signal names one detected anomaly.
type Signal string

const (
	SignalAmountDeviation Signal = "amount-deviation"
	SignalUnusualHour     Signal = "unusual-hour"
	SignalUnusualCountry  Signal = "unusual-country"
	SignalUnknownDevice   Signal = "unknown-device"
)

var signalRank = map[Signal]int{
	SignalAmountDeviation: 0,
	SignalUnusualHour:     1,
	SignalUnusualCountry:  2,
	SignalUnknownDevice:   3,
}

var signalText = map[Signal]string{
	SignalAmountDeviation: "amount far above the customer's average",
	SignalUnusualHour:     "transaction outside the customer's usual hours",
	SignalUnusualCountry:  "transaction from an unusual country",
	SignalUnknownDevice:   "transaction from an unknown device",
}

// Description is the human-readable form used in prompts and explanations.
func (s Signal) Description() string {
	if t, ok := signalText[s]; ok {
		return t
	}
	return string(s)
}

// SignalSet is a duplicate-free set of signals kept in canonical order, so two
// sets with the same members compare and serialise identically.
type SignalSet []Signal

// NewSignalSet builds a canonical set from sigs.
func NewSignalSet(sigs ...Signal) SignalSet {
	var s SignalSet
	for _, sig := range sigs {
		s = s.With(sig)
	}
	return s
}

// With returns a set that also contains sig.
func (s SignalSet) With(sig Signal) SignalSet {
	if s.Has(sig) {
		return s
	}
	out := append(append(SignalSet(nil), s...), sig)
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}

// Has reports membership.
func (s SignalSet) Has(sig Signal) bool {
	for _, m := range s {
		if m == sig {
			return true
		}
	}
	return false
}

// Descriptions returns the human-readable form of every member.
func (s SignalSet) Descriptions() []string {
	out := make([]string, len(s))
	for i, sig := range s {
		out[i] = sig.Description()
	}
	return out
}

// Strings returns the wire names of every member.
func (s SignalSet) Strings() []string {
	out := make([]string, len(s))
	for i, sig := range s {
		out[i] = string(sig)
	}
	return out
}

func rank(s Signal) int {
	if r, ok := signalRank[s]; ok {
		return r
	}
	return len(signalRank)
}
