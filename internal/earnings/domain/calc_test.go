package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCentsFloorDivision(t *testing.T) {
	tests := []struct {
		name     string
		views    int64
		cpmCents int64
		want     int64
	}{
		{"floors fractional result", 333, 500, 166},
		{"exact thousand boundary", 2500, 400, 1000},
		{"single view below cpm", 1, 500, 0},
		{"zero views", 0, 1000, 0},
		{"zero cpm", 10000, 0, 0},
		{"negative views clamp to zero", -5, 1000, 0},
		{"negative cpm clamp to zero", 1000, -1, 0},
		{"one view at 1000 cpm", 1, 1000, 1},
		{"999 views at 1 cpm floors to zero", 999, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Cents(tt.views, tt.cpmCents))
		})
	}
}

func TestCentsMonotonicInViews(t *testing.T) {
	const cpmCents = 737
	prev := int64(0)
	for views := int64(0); views <= 5000; views += 97 {
		got := Cents(views, cpmCents)
		assert.GreaterOrEqual(t, got, prev, "views=%d", views)
		prev = got
	}
}
