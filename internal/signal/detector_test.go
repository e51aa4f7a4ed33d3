package signal

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"riskgraph/pkg/types"
)

func profile() types.CustomerProfile {
	return types.CustomerProfile{
		ID:             "CU-001",
		UsualAmountAvg: decimal.NewFromInt(100),
		UsualHours:     "09-18",
		UsualCountries: types.NewStringSet("PE"),
		UsualDevices:   types.NewStringSet("DEV-1"),
	}
}

func txAt(amount int64, hour int, country, device string) types.Transaction {
	return types.Transaction{
		ID:        "T-1",
		Amount:    decimal.NewFromInt(amount),
		Currency:  "PEN",
		Country:   country,
		DeviceID:  device,
		Timestamp: time.Date(2026, 1, 28, hour, 15, 0, 0, time.UTC),
	}
}

func TestDetect_AllSignals(t *testing.T) {
	got := Detector{}.Detect(txAt(5000, 22, "US", "DEV-9"), profile())
	want := types.NewSignalSet(types.SignalAmountDeviation, types.SignalUnusualHour, types.SignalUnusualCountry, types.SignalUnknownDevice)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("signals mismatch (-want +got):\n%s", diff)
	}
}

func TestDetect_WithinNormsIsEmpty(t *testing.T) {
	got := Detector{}.Detect(txAt(120, 10, "PE", "DEV-1"), profile())
	if len(got) != 0 {
		t.Errorf("expected no signals, got %v", got)
	}
}

func TestDetect_EmptyNormsProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		avg := rng.Int63n(10_000) + 1
		k := float64(rng.Intn(5) + 1)
		amount := rng.Int63n(avg*int64(k) + 1) // amount <= avg*K
		hour := rng.Intn(24)
		c := types.CustomerProfile{
			UsualAmountAvg: decimal.NewFromInt(avg),
			UsualHours:     fmt.Sprintf("%02d-%02d", hour, hour),
			UsualCountries: types.NewStringSet("PE", "CL"),
			UsualDevices:   types.NewStringSet("A", "B"),
		}
		tx := txAt(amount, hour, "CL", "B")
		if got := NewDetector(k).Detect(tx, c); len(got) != 0 {
			t.Fatalf("case %d: amount=%d avg=%d k=%v hour=%d raised %v", i, amount, avg, k, hour, got)
		}
	}
}

func TestDetect_Deterministic(t *testing.T) {
	tx, c := txAt(5000, 3, "US", "DEV-1"), profile()
	first := Detector{}.Detect(tx, c)
	for i := 0; i < 20; i++ {
		if diff := cmp.Diff(first, Detector{}.Detect(tx, c)); diff != "" {
			t.Fatalf("run %d differs (-first +now):\n%s", i, diff)
		}
	}
}

func TestDetect_AmountThreshold(t *testing.T) {
	cases := []struct {
		amount int64
		k      float64
		want   bool
	}{
		{300, 3, false}, // equal is not above
		{301, 3, true},
		{201, 2, true},
		{400, 0, true}, // zero K selects default 3
	}
	for _, tc := range cases {
		got := NewDetector(tc.k).Detect(txAt(tc.amount, 10, "PE", "DEV-1"), profile()).Has(types.SignalAmountDeviation)
		if got != tc.want {
			t.Errorf("amount=%d k=%v: got %v, want %v", tc.amount, tc.k, got, tc.want)
		}
	}
}

func TestDetect_MalformedHourWindowSkipped(t *testing.T) {
	for _, window := range []string{"", "nine-to-five", "09", "09-30", "a-b-c"} {
		c := profile()
		c.UsualHours = window
		if (Detector{}).Detect(txAt(10, 3, "PE", "DEV-1"), c).Has(types.SignalUnusualHour) {
			t.Errorf("window %q should be skipped", window)
		}
	}
}

func TestDetect_EmptySetsNeverFlag(t *testing.T) {
	c := profile()
	c.UsualCountries = nil
	c.UsualDevices = nil
	got := Detector{}.Detect(txAt(10, 10, "ZZ", "NEW"), c)
	if got.Has(types.SignalUnusualCountry) || got.Has(types.SignalUnknownDevice) {
		t.Errorf("empty profile sets must not flag, got %v", got)
	}
}

func TestInWindow_WrapsMidnight(t *testing.T) {
	cases := []struct {
		hour, start, end int
		want             bool
	}{
		{23, 22, 6, true},
		{3, 22, 6, true},
		{12, 22, 6, false},
		{9, 9, 18, true},
		{18, 9, 18, true},
		{19, 9, 18, false},
	}
	for _, tc := range cases {
		if got := InWindow(tc.hour, tc.start, tc.end); got != tc.want {
			t.Errorf("InWindow(%d, %d, %d) = %v, want %v", tc.hour, tc.start, tc.end, got, tc.want)
		}
	}
}

func TestDetector_ContextThenBehaviorMatchesDetect(t *testing.T) {
	tx := types.Transaction{
		Amount:    decimal.RequireFromString("1800"),
		Country:   "BR",
		DeviceID:  "D-99",
		Timestamp: time.Date(2026, 1, 28, 3, 15, 0, 0, time.UTC),
	}
	cust := types.CustomerProfile{
		UsualAmountAvg: decimal.RequireFromString("500"),
		UsualHours:     "08-22",
		UsualCountries: types.NewStringSet("PE"),
		UsualDevices:   types.NewStringSet("D-01"),
	}
	d := NewDetector(0)
	ctxSignals := d.Context(tx, cust)
	if ctxSignals.Has(types.SignalUnknownDevice) {
		t.Fatalf("context stage must not raise the device signal: %v", ctxSignals)
	}
	if len(ctxSignals) != 3 {
		t.Fatalf("context signals = %v, want 3", ctxSignals)
	}
	full := d.Behavior(tx, cust, ctxSignals)
	if diff := cmp.Diff(d.Detect(tx, cust), full); diff != "" {
		t.Errorf("Behavior(Context) != Detect (-want +got):\n%s", diff)
	}
	if len(ctxSignals) != 3 {
		t.Error("Behavior must not mutate its base set")
	}
}
