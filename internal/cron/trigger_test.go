package cron

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
)

func TestNextRun(t *testing.T) {
	t.Parallel()

	// Wednesday.
	now := time.Date(2024, time.March, 13, 10, 30, 15, 0, time.UTC)

	tests := []struct {
		name    string
		trigger Trigger
		mode    Mode
		want    time.Time
		wantErr error
	}{
		{name: "interval", trigger: Every(10 * time.Second), want: now.Add(10 * time.Second)},
		{name: "fractional seconds", trigger: Seconds(1.5), want: now.Add(1500 * time.Millisecond)},
		{name: "yearly", trigger: Expr("@yearly"), want: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "annually", trigger: Expr("@annually"), want: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "monthly", trigger: Expr("@monthly"), want: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
		{name: "weekly", trigger: Expr("@weekly"), want: time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)},
		{name: "daily", trigger: Expr("@daily"), want: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)},
		{name: "midnight", trigger: Expr("@midnight"), want: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)},
		{name: "hourly", trigger: Expr("@hourly"), want: time.Date(2024, 3, 13, 11, 0, 0, 0, time.UTC)},
		{name: "shortcut case insensitive", trigger: Expr("@DAILY"), want: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)},
		{name: "every", trigger: Expr("@every 90s"), want: now.Add(90 * time.Second).Truncate(time.Second)},
		{name: "compat five fields", trigger: Expr("*/5 * * * *"), mode: ModeCompat, want: now.Add(time.Minute)},
		{name: "compat default mode", trigger: Expr("0 3 * * 1"), want: now.Add(time.Minute)},
		{name: "standard five fields", trigger: Expr("*/5 * * * *"), mode: ModeStandard, want: time.Date(2024, 3, 13, 10, 35, 0, 0, time.UTC)},
		{name: "standard with seconds", trigger: Expr("0 30 9 * * *"), mode: ModeStandard, want: time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)},
		{name: "compat free text", trigger: Expr("whenever"), mode: ModeCompat, want: now.Add(time.Minute)},
		{name: "compat three fields", trigger: Expr("* * *"), mode: ModeCompat, want: now.Add(time.Minute)},
		{name: "compat six fields", trigger: Expr("0 30 9 * * *"), mode: ModeCompat, want: now.Add(time.Minute)},
		{name: "compat unknown shortcut", trigger: Expr("@foo"), mode: ModeCompat, want: now.Add(time.Minute)},
		{name: "compat bad every", trigger: Expr("@every soon"), want: now.Add(time.Minute)},
		{name: "numeric expression", trigger: Expr("5"), want: now.Add(5 * time.Second)},
		{name: "fractional numeric expression", trigger: Expr(" 0.5 "), mode: ModeStandard, want: now.Add(500 * time.Millisecond)},
		{name: "zero numeric expression", trigger: Expr("0"), wantErr: ErrUnsupportedTrigger},
		{name: "nan is not numeric", trigger: Expr("NaN"), mode: ModeStandard, wantErr: ErrUnsupportedTrigger},
		{name: "standard garbage", trigger: Expr("61 * * * *"), mode: ModeStandard, wantErr: ErrUnsupportedTrigger},
		{name: "standard free text", trigger: Expr("whenever"), mode: ModeStandard, wantErr: ErrUnsupportedTrigger},
		{name: "standard three fields", trigger: Expr("* * *"), mode: ModeStandard, wantErr: ErrUnsupportedTrigger},
		{name: "standard unknown shortcut", trigger: Expr("@foo"), mode: ModeStandard, wantErr: ErrUnsupportedTrigger},
		{name: "zero", trigger: Trigger{}, wantErr: ErrUnsupportedTrigger},
		{name: "negative interval", trigger: Every(-time.Second), wantErr: ErrUnsupportedTrigger},
		{name: "unknown mode", trigger: Expr("* * * * *"), mode: Mode("quartz"), wantErr: ErrInvalidMode},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NextRun(tt.trigger, time.UTC, now, tt.mode)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.True(t, got.IsZero())
				return
			}
			require.NoError(t, err)
			require.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestNextRunCalendarEdges(t *testing.T) {
	t.Parallel()

	monday := time.Date(2024, time.March, 18, 8, 0, 0, 0, time.UTC)
	got, err := NextRun(Expr("@weekly"), time.UTC, monday, ModeCompat)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC), got)

	sunday := time.Date(2024, time.March, 17, 23, 59, 0, 0, time.UTC)
	got, err = NextRun(Expr("@weekly"), time.UTC, sunday, ModeCompat)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), got)

	december := time.Date(2024, time.December, 15, 12, 0, 0, 0, time.UTC)
	got, err = NextRun(Expr("@monthly"), time.UTC, december, ModeCompat)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestNextRunUsesLocation(t *testing.T) {
	t.Parallel()

	tokyo, err := LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 05:00 on the 14th in Tokyo.
	now := time.Date(2024, time.March, 13, 20, 0, 0, 0, time.UTC)

	got, err := NextRun(Expr("@daily"), tokyo, now, ModeCompat)
	require.NoError(t, err)
	require.True(t, got.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, tokyo)))
	require.True(t, got.Equal(time.Date(2024, 3, 14, 15, 0, 0, 0, time.UTC)))

	got, err = NextRun(Expr("0 9 * * *"), tokyo, now, ModeStandard)
	require.NoError(t, err)
	require.True(t, got.Equal(time.Date(2024, 3, 14, 9, 0, 0, 0, tokyo)))

	// A nil location is UTC.
	got, err = NextRun(Expr("@daily"), nil, now, ModeCompat)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), got)
}

func TestParseTrigger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Trigger
		wantErr bool
	}{
		{in: "90", want: Every(90 * time.Second)},
		{in: "1.5", want: Every(1500 * time.Millisecond)},
		{in: "2m", want: Every(2 * time.Minute)},
		{in: " @daily ", want: Expr("@daily")},
		{in: "*/5 * * * *", want: Expr("*/5 * * * *")},
		{in: "NaN", want: Expr("NaN")},
		{in: "", wantErr: true},
		{in: "0", wantErr: true},
		{in: "-5s", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseTrigger(tt.in)
		if tt.wantErr {
			require.ErrorIs(t, err, ErrUnsupportedTrigger, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		require.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestParseModeAndLocation(t *testing.T) {
	t.Parallel()

	m, err := ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeCompat, m)

	m, err = ParseMode(" Standard ")
	require.NoError(t, err)
	require.Equal(t, ModeStandard, m)

	_, err = ParseMode("quartz")
	require.ErrorIs(t, err, ErrInvalidMode)

	loc, err := LoadLocation("")
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)

	_, err = LoadLocation("Mars/Olympus_Mons")
	require.ErrorIs(t, err, ErrInvalidTimezone)
}
