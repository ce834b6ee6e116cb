package maintenance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/autotrack/internal/vehicle"
)

func testVehicle(lastOil, lastTire string) *vehicle.Vehicle {
	return &vehicle.Vehicle{
		ID:                      "2020-honda-accord-sedan",
		Name:                    "2020 Honda Accord (EX-L)",
		OilIntervalMonths:       12,
		TireIntervalMonths:      6,
		LastOilChangeDateISO:    lastOil,
		LastTireRotationDateISO: lastTire,
	}
}

func TestAddFractionalMonths_WholeMonths(t *testing.T) {
	start := time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)
	due := AddFractionalMonths(start, 6)
	assert.Equal(t, time.Date(2026, time.July, 15, 12, 0, 0, 0, time.UTC), due)
}

func TestAddFractionalMonths_FractionRoundsToDays(t *testing.T) {
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	// 4.5 months: 4 calendar months plus round(0.5*30)=15 days.
	due := AddFractionalMonths(start, 4.5)
	assert.Equal(t, time.Date(2026, time.May, 16, 0, 0, 0, 0, time.UTC), due)

	// 0.25 months: round(0.25*30)=8 days, no calendar month step.
	due = AddFractionalMonths(start, 0.25)
	assert.Equal(t, time.Date(2026, time.January, 9, 0, 0, 0, 0, time.UTC), due)
}

func TestAddFractionalMonths_NonPositive(t *testing.T) {
	start := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, start, AddFractionalMonths(start, 0))
	assert.Equal(t, start, AddFractionalMonths(start, -2))
}

func TestComputeStats_RemainingAndWindow(t *testing.T) {
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	v := testVehicle(vehicle.Stamp(last), vehicle.Stamp(last))

	stats := ComputeStats(v, now)

	oilDue := AddFractionalMonths(last, 12)
	assert.Equal(t, oilDue, stats.Oil.DueDate)
	assert.Equal(t, oilDue.Sub(now), stats.Oil.Remaining)
	assert.Equal(t, oilDue.Sub(last), stats.Oil.Window)
	assert.False(t, stats.Oil.Manual)

	tireDue := AddFractionalMonths(last, 6)
	assert.Equal(t, tireDue, stats.Tire.DueDate)
	assert.InDelta(t, float64(now.Sub(last))/float64(tireDue.Sub(last)), stats.Tire.Progress, 1e-9)
}

func TestComputeStats_Pure(t *testing.T) {
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	last := vehicle.Stamp(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	v := testVehicle(last, last)
	before := *v

	first := ComputeStats(v, now)
	second := ComputeStats(v, now)

	assert.Equal(t, first, second, "same inputs must produce identical stats")
	assert.Equal(t, before, *v, "computing stats must not mutate the vehicle")
}

func TestComputeStats_MalformedDateFallsBackToNow(t *testing.T) {
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	v := testVehicle("not-a-date", "")

	stats := ComputeStats(v, now)

	// Start degrades to now, so the full interval remains and no alert fires.
	assert.Equal(t, AddFractionalMonths(now, 12), stats.Oil.DueDate)
	assert.Equal(t, AddFractionalMonths(now, 6), stats.Tire.DueDate)
	assert.Equal(t, float64(0), stats.Oil.Progress)
	assert.Equal(t, StageNone, Classify(stats.Oil.Remaining))
}

func TestComputeStats_NonPositiveIntervalUsesDefault(t *testing.T) {
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	v := testVehicle(vehicle.Stamp(last), vehicle.Stamp(last))
	v.OilIntervalMonths = 0
	v.TireIntervalMonths = -3

	stats := ComputeStats(v, now)

	assert.Equal(t, AddFractionalMonths(last, vehicle.DefaultOilIntervalMonths), stats.Oil.DueDate)
	assert.Equal(t, AddFractionalMonths(last, vehicle.DefaultTireIntervalMonths), stats.Tire.DueDate)
}

func TestComputeStats_OverrideAfterServiceWins(t *testing.T) {
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	override := vehicle.Stamp(time.Date(2026, time.July, 4, 0, 0, 0, 0, time.UTC))

	v := testVehicle(vehicle.Stamp(last), vehicle.Stamp(last))
	v.ServiceOverrides.OilChange = &override

	stats := ComputeStats(v, now)

	require.True(t, stats.Oil.Manual)
	assert.Equal(t, time.Date(2026, time.July, 4, 0, 0, 0, 0, time.UTC), stats.Oil.DueDate)
	assert.False(t, stats.Tire.Manual)
}

func TestComputeStats_OverrideBeforeServiceIgnored(t *testing.T) {
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	stale := vehicle.Stamp(time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC))

	v := testVehicle(vehicle.Stamp(last), vehicle.Stamp(last))
	v.ServiceOverrides.OilChange = &stale

	stats := ComputeStats(v, now)

	assert.False(t, stats.Oil.Manual, "an override predating the last service is stale")
	assert.Equal(t, AddFractionalMonths(last, 12), stats.Oil.DueDate)
}

func TestComputeStats_ProgressClamped(t *testing.T) {
	last := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	v := testVehicle(vehicle.Stamp(last), vehicle.Stamp(last))

	// Years past due: progress caps at 1.
	stats := ComputeStats(v, time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, float64(1), stats.Oil.Progress)
	assert.Negative(t, stats.Oil.Remaining)

	// Clock behind the last service: progress floors at 0.
	stats = ComputeStats(v, last.Add(-time.Hour))
	assert.Equal(t, float64(0), stats.Oil.Progress)
}

func TestComputeStats_WindowNeverZero(t *testing.T) {
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	last := vehicle.Stamp(now)
	override := vehicle.Stamp(now) // override equals start, not after: ignored

	v := testVehicle(last, last)
	v.ServiceOverrides.OilChange = &override

	stats := ComputeStats(v, now)
	assert.GreaterOrEqual(t, stats.Oil.Window, time.Millisecond)
}

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		name      string
		remaining time.Duration
		want      Stage
	}{
		{"well before due", 30 * Day, StageNone},
		{"one millisecond before due", time.Millisecond, StageNone},
		{"exactly due", 0, StageServiceDue},
		{"an hour past due", -time.Hour, StageServiceDue},
		{"exactly one day past due", -Day, StageServiceDue},
		{"just over one day past due", -Day - time.Millisecond, StageOverdue},
		{"a week past due", -7 * Day, StageOverdue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.remaining))
		})
	}
}

func TestStageKey_StableAndDistinct(t *testing.T) {
	due := time.Date(2026, time.June, 1, 10, 30, 0, 0, time.UTC)

	key := StageKey(StageServiceDue, due)
	assert.Equal(t, "service_due:2026-06-01T10:30:00.000Z", key)
	assert.Equal(t, key, StageKey(StageServiceDue, due), "equal inputs produce equal keys")

	// Stage transition or reschedule produces a different key.
	assert.NotEqual(t, key, StageKey(StageOverdue, due))
	assert.NotEqual(t, key, StageKey(StageServiceDue, due.Add(24*time.Hour)))

	// Timezone does not leak into the key.
	est := due.In(time.FixedZone("EST", -5*3600))
	assert.Equal(t, key, StageKey(StageServiceDue, est))
}

func TestRemainingLabel_Wording(t *testing.T) {
	tests := []struct {
		name      string
		remaining time.Duration
		want      string
	}{
		{"due this instant", 0, "Due today"},
		{"a few hours out", 6 * time.Hour, "Due today"},
		{"single day", Day, "1 day"},
		{"several days", 5*Day + time.Hour, "6 days"},
		{"months and days", 65 * Day, "2m 5d"},
		{"overdue by hours", -6 * time.Hour, "Due today"},
		{"overdue one day", -Day - time.Hour, "Overdue by 1 day"},
		{"overdue many days", -10 * Day, "Overdue by 10 days"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RemainingLabel(tt.remaining))
		})
	}
}

func TestBuildNotificationBody(t *testing.T) {
	due := time.Date(2026, time.June, 1, 15, 4, 0, 0, time.UTC)

	body := BuildNotificationBody("2021 Ram 1500 Rebel", vehicle.OilChange, StageServiceDue, 0, due)
	assert.Equal(t, "Oil Change is due now for 2021 Ram 1500 Rebel.", body)

	body = BuildNotificationBody("2021 Ram 1500 Rebel", vehicle.TireRotation, StageOverdue, -3*Day, due)
	assert.Equal(t, "Tire Rotation is overdue for 2021 Ram 1500 Rebel: Overdue by 3 days.", body)

	body = BuildNotificationBody("2021 Ram 1500 Rebel", vehicle.OilChange, StageNone, 3*Day, due)
	assert.Equal(t, "Oil Change due soon for 2021 Ram 1500 Rebel: 3 days. Due Jun 1, 2026 3:04 PM.", body)
}

// Classifier and due-date math together: a vehicle serviced long ago walks
// through every stage as the clock advances.
func TestStageProgression(t *testing.T) {
	last := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	v := testVehicle(vehicle.Stamp(last), vehicle.Stamp(last))
	due := AddFractionalMonths(last, 6) // tire due 2026-07-01

	cases := []struct {
		now  time.Time
		want Stage
	}{
		{due.Add(-10 * Day), StageNone},
		{due, StageServiceDue},
		{due.Add(12 * time.Hour), StageServiceDue},
		{due.Add(Day), StageServiceDue},
		{due.Add(Day + time.Minute), StageOverdue},
		{due.Add(40 * Day), StageOverdue},
	}
	for _, tc := range cases {
		stats := ComputeStats(v, tc.now)
		assert.Equal(t, tc.want, Classify(stats.Tire.Remaining), "at %s", tc.now)
	}
}
