package costing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printcost-backend/internal/model"
)

func f(v float64) *float64 { return &v }

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func referencePrinter() *model.Printer {
	return &model.Printer{
		Brand:           "Bambu Lab",
		Model:           "P1S",
		SetupCost:       f(70000),
		MaintenanceCost: f(5000),
		LifetimeYears:   f(5),
		PowerW:          f(300),
		PriceKWh:        f(8.0),
		BufferFactor:    f(1.0),
		UptimePercent:   f(50),
	}
}

func referenceFilament() *model.Filament {
	return &model.Filament{Material: "PLA", Brand: "Generic", Price: f(1200), EfficiencyFactor: f(1.0), StockG: 1000}
}

func TestHourlyRate_ReferencePrinter(t *testing.T) {
	rate, err := HourlyRate(referencePrinter())
	require.NoError(t, err)
	nearlyEqual(t, "rate", rate, 95000.0/21900.0+2.4)
	assert.InDelta(t, 6.74, rate, 0.005)
}

func TestHourlyRate_DefaultUptime(t *testing.T) {
	p := referencePrinter()
	p.UptimePercent = nil
	withDefault, err := HourlyRate(p)
	require.NoError(t, err)

	withFifty, err := HourlyRate(referencePrinter())
	require.NoError(t, err)
	nearlyEqual(t, "rate", withDefault, withFifty)
}

func TestHourlyRate_Unavailable(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(p *model.Printer)
	}{
		{name: "zero lifetime", mutate: func(p *model.Printer) { p.LifetimeYears = f(0) }},
		{name: "zero uptime", mutate: func(p *model.Printer) { p.UptimePercent = f(0) }},
		{name: "missing setup cost", mutate: func(p *model.Printer) { p.SetupCost = nil }},
		{name: "missing maintenance", mutate: func(p *model.Printer) { p.MaintenanceCost = nil }},
		{name: "missing lifetime", mutate: func(p *model.Printer) { p.LifetimeYears = nil }},
		{name: "missing power", mutate: func(p *model.Printer) { p.PowerW = nil }},
		{name: "missing price per kwh", mutate: func(p *model.Printer) { p.PriceKWh = nil }},
		{name: "infinite setup cost", mutate: func(p *model.Printer) { p.SetupCost = f(math.Inf(1)) }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := referencePrinter()
			tc.mutate(p)
			rate, err := HourlyRate(p)
			assert.ErrorIs(t, err, ErrRateUnavailable)
			assert.Equal(t, 0.0, rate)
			assert.Equal(t, 0.0, Rate(p))
		})
	}

	rate, err := HourlyRate(nil)
	assert.ErrorIs(t, err, ErrRateUnavailable)
	assert.Equal(t, 0.0, rate)
}

func TestHourlyRate_Monotonic(t *testing.T) {
	fields := []struct {
		name string
		set  func(p *model.Printer, v float64)
	}{
		{name: "setup_cost", set: func(p *model.Printer, v float64) { p.SetupCost = f(v) }},
		{name: "maintenance_cost", set: func(p *model.Printer, v float64) { p.MaintenanceCost = f(v) }},
		{name: "price_kwh", set: func(p *model.Printer, v float64) { p.PriceKWh = f(v) }},
	}
	for _, field := range fields {
		t.Run(field.name, func(t *testing.T) {
			prev := -1.0
			for v := 0.0; v <= 100000; v += 2500 {
				p := referencePrinter()
				field.set(p, v)
				rate, err := HourlyRate(p)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, rate, prev, "%s=%v", field.name, v)
				prev = rate
			}
		})
	}
}

func TestCompute_EndToEndScenario(t *testing.T) {
	res, err := Compute(Input{Grams: 50, TimeString: "1h 0m", LabourMinutes: 30, LabourRate: 100},
		referencePrinter(), referenceFilament())
	require.NoError(t, err)

	nearlyEqual(t, "material", res.Breakdown.Material, 60)
	nearlyEqual(t, "labour", res.Breakdown.Labour, 50)
	assert.InDelta(t, 6.74, res.Breakdown.Printer, 0.005)
	assert.InDelta(t, 116.74, res.UserCOGS, 0.005)
	assert.True(t, res.Breakdown.RateAvailable)
	nearlyEqual(t, "hours", res.Breakdown.Hours, 1.0)
}

func TestCompute_DefaultEqualsUserAtReferenceSettings(t *testing.T) {
	times := []string{"", "45m", "2h 15m", "10h 5m 30s"}
	for _, ts := range times {
		res, err := Compute(Input{Grams: 123.4, TimeString: ts, LabourMinutes: 17, LabourRate: DefaultLabourRate},
			referencePrinter(), referenceFilament())
		require.NoError(t, err)
		nearlyEqual(t, "default vs user for "+ts, res.DefaultCOGS, res.UserCOGS)
	}
}

func TestCompute_FactorsOnlyAffectUserCOGS(t *testing.T) {
	p := referencePrinter()
	p.BufferFactor = f(1.5)
	fil := referenceFilament()
	fil.EfficiencyFactor = f(1.1)

	res, err := Compute(Input{Grams: 100, TimeString: "2h", LabourMinutes: 60, LabourRate: 200}, p, fil)
	require.NoError(t, err)

	rate := Rate(p)
	nearlyEqual(t, "material", res.Breakdown.Material, 1.2*100*1.1)
	nearlyEqual(t, "labour", res.Breakdown.Labour, 200)
	nearlyEqual(t, "printer", res.Breakdown.Printer, rate*1.5*2)
	nearlyEqual(t, "default material", res.Breakdown.DefaultMaterial, 120)
	nearlyEqual(t, "default labour", res.Breakdown.DefaultLabour, 100)
	nearlyEqual(t, "default printer", res.Breakdown.DefaultPrinter, rate*2)
	assert.Greater(t, res.UserCOGS, res.DefaultCOGS)
}

func TestCompute_MissingFactorsDefaultToOne(t *testing.T) {
	p := referencePrinter()
	p.BufferFactor = nil
	fil := referenceFilament()
	fil.EfficiencyFactor = nil

	res, err := Compute(Input{Grams: 50, TimeString: "1h", LabourMinutes: 30, LabourRate: 100}, p, fil)
	require.NoError(t, err)
	nearlyEqual(t, "default vs user", res.DefaultCOGS, res.UserCOGS)
}

func TestCompute_RateUnavailableIsNotAnError(t *testing.T) {
	p := referencePrinter()
	p.PowerW = nil

	res, err := Compute(Input{Grams: 50, TimeString: "3h", LabourMinutes: 30, LabourRate: 100}, p, referenceFilament())
	require.NoError(t, err)
	assert.False(t, res.Breakdown.RateAvailable)
	nearlyEqual(t, "printer", res.Breakdown.Printer, 0)
	nearlyEqual(t, "user", res.UserCOGS, 110)
}

func TestCompute_ComputationErrors(t *testing.T) {
	testCases := []struct {
		name     string
		in       Input
		filament *model.Filament
		field    string
	}{
		{name: "negative grams", in: Input{Grams: -1}, filament: referenceFilament(), field: "grams"},
		{name: "nan grams", in: Input{Grams: math.NaN()}, filament: referenceFilament(), field: "grams"},
		{name: "infinite labour rate", in: Input{LabourRate: math.Inf(1)}, filament: referenceFilament(), field: "labour_rate"},
		{name: "missing filament price", in: Input{Grams: 10}, filament: &model.Filament{}, field: "filament.price"},
		{name: "missing filament", in: Input{Grams: 10}, filament: nil, field: "filament.price"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Compute(tc.in, referencePrinter(), tc.filament)
			require.Error(t, err)

			var ce *ComputationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tc.field, ce.Field)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.True(t, IsComputationError(err))
			assert.Equal(t, Result{}, res)

			degraded := Degrade(res, err)
			assert.Equal(t, 0.0, degraded.UserCOGS)
			assert.Equal(t, 0.0, degraded.DefaultCOGS)
		})
	}
}

func TestDegrade_PassesSuccessThrough(t *testing.T) {
	res, err := Compute(Input{Grams: 50, TimeString: "1h", LabourMinutes: 30, LabourRate: 100},
		referencePrinter(), referenceFilament())
	require.NoError(t, err)
	assert.Equal(t, res, Degrade(res, nil))
}
