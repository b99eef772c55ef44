package scheduler

import (
	"testing"
	"time"

	"drip_campaign_bot/internal/infra/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyPolicyNext(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)

	policy, err := NewDailyPolicy("Europe/Rome", 8, 0)
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before target hour fires today",
			now:  time.Date(2025, 3, 10, 6, 15, 0, 0, rome),
			want: time.Date(2025, 3, 10, 8, 0, 0, 0, rome),
		},
		{
			name: "exactly at target hour fires tomorrow",
			now:  time.Date(2025, 3, 10, 8, 0, 0, 0, rome),
			want: time.Date(2025, 3, 11, 8, 0, 0, 0, rome),
		},
		{
			name: "after target hour fires tomorrow",
			now:  time.Date(2025, 3, 10, 21, 0, 0, 0, rome),
			want: time.Date(2025, 3, 11, 8, 0, 0, 0, rome),
		},
		{
			name: "now given in another zone",
			now:  time.Date(2025, 3, 10, 6, 30, 0, 0, time.UTC), // 07:30 in Rome
			want: time.Date(2025, 3, 10, 8, 0, 0, 0, rome),
		},
		{
			name: "across the spring DST change",
			now:  time.Date(2025, 3, 29, 12, 0, 0, 0, rome),
			want: time.Date(2025, 3, 30, 8, 0, 0, 0, rome),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Next(tt.now)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestIntervalPolicyNext(t *testing.T) {
	now := time.Date(2025, 3, 10, 6, 15, 0, 0, time.UTC)
	p := IntervalPolicy{Interval: 2 * time.Minute}
	assert.Equal(t, now.Add(2*time.Minute), p.Next(now))
}

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy(&config.AppConfig{TargetTimezone: "UTC", TargetHour: 8})
	require.NoError(t, err)
	assert.IsType(t, &DailyPolicy{}, p)

	p, err = NewPolicy(&config.AppConfig{TargetTimezone: "UTC", TestInterval: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, IntervalPolicy{Interval: time.Minute}, p)

	_, err = NewDailyPolicy("Nowhere/Land", 8, 0)
	assert.Error(t, err)
}
