package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
		ok   bool
	}{
		{"plain with commas", "$144,000", 144000, true},
		{"k suffix", "$140K", 140000, true},
		{"lowercase k", "$140k", 140000, true},
		{"million word", "$69 million", 69e6, true},
		{"m suffix", "$2.5M", 2.5e6, true},
		{"mm suffix", "$3mm", 3e6, true},
		{"billion", "$1.2 billion", 1.2e9, true},
		{"embedded in sentence", "the total comes to $150,000 per year", 150000, true},
		{"decimal", "$99.50", 99.5, true},
		{"no amount", "no money here", 0, false},
		{"bare number without dollar", "144000", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseMoney(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 0.001)
			}
		})
	}
}

func TestParseDate_ISO(t *testing.T) {
	got, ambiguous, ok := ParseDate("2026-09-30")
	require.True(t, ok)
	assert.False(t, ambiguous)
	assert.Equal(t, time.Date(2026, time.September, 30, 0, 0, 0, 0, time.UTC), got)
}

func TestParseDate_MonthName(t *testing.T) {
	got, ambiguous, ok := ParseDate("September 30, 2026")
	require.True(t, ok)
	assert.False(t, ambiguous)
	assert.Equal(t, time.Date(2026, time.September, 30, 0, 0, 0, 0, time.UTC), got)

	got, _, ok = ParseDate("Sep 5 2026")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, time.September, 5, 0, 0, 0, 0, time.UTC), got)
}

func TestParseDate_MonthNameWithoutYear(t *testing.T) {
	// A day without a year cannot be normalized to a point in time.
	_, ambiguous, ok := ParseDate("March 15")
	assert.False(t, ok)
	assert.False(t, ambiguous)
}

func TestParseDate_SlashAmbiguous(t *testing.T) {
	// 03/04/2026 reads as March 4 or April 3; refuse to guess.
	_, ambiguous, ok := ParseDate("03/04/2026")
	assert.False(t, ok)
	assert.True(t, ambiguous)
}

func TestParseDate_SlashUnambiguous(t *testing.T) {
	// Day 30 cannot be a month, so only one reading exists.
	got, ambiguous, ok := ParseDate("09/30/2026")
	require.True(t, ok)
	assert.False(t, ambiguous)
	assert.Equal(t, time.Date(2026, time.September, 30, 0, 0, 0, 0, time.UTC), got)

	// Day-first form.
	got, _, ok = ParseDate("30/09/2026")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, time.September, 30, 0, 0, 0, 0, time.UTC), got)
}

func TestParseDate_SlashSameComponents(t *testing.T) {
	// 04/04/2026 has two identical readings; not ambiguous.
	got, ambiguous, ok := ParseDate("04/04/2026")
	require.True(t, ok)
	assert.False(t, ambiguous)
	assert.Equal(t, time.Date(2026, time.April, 4, 0, 0, 0, 0, time.UTC), got)
}

func TestParseDate_TwoDigitYear(t *testing.T) {
	got, _, ok := ParseDate("9/30/26")
	require.True(t, ok)
	assert.Equal(t, 2026, got.Year())
}

func TestParseDate_NoDate(t *testing.T) {
	_, _, ok := ParseDate("sometime next quarter")
	assert.False(t, ok)
}
