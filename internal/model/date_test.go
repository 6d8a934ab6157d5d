package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "08:00", want: TimeOfDay{Hour: 8}},
		{in: "23:59", want: TimeOfDay{Hour: 23, Minute: 59}},
		{in: "7:05", want: TimeOfDay{Hour: 7, Minute: 5}},
		{in: " 12:30 ", want: TimeOfDay{Hour: 12, Minute: 30}},
		{in: "0800", wantErr: true},
		{in: "aa:00", wantErr: true},
		{in: "08:bb", wantErr: true},
		{in: "24:00", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDate_DaysSince(t *testing.T) {
	start := MustDate("2024-02-27")
	assert.Equal(t, 0, start.DaysSince(start))
	assert.Equal(t, 3, MustDate("2024-03-01").DaysSince(start), "leap day counted")
	assert.Equal(t, -1, MustDate("2024-02-26").DaysSince(start))
	// Spans a DST change in most northern zones.
	assert.Equal(t, 7, MustDate("2024-03-31").DaysSince(MustDate("2024-03-24")))
}

func TestDate_WeekdayAndAddDays(t *testing.T) {
	d := MustDate("2024-01-02")
	assert.Equal(t, time.Tuesday, d.Weekday())
	assert.Equal(t, MustDate("2024-01-03"), d.AddDays(1))
	assert.Equal(t, MustDate("2023-12-31"), d.AddDays(-2))
}

func TestDate_JSON(t *testing.T) {
	type wrapper struct {
		D   Date  `json:"d"`
		End *Date `json:"end,omitempty"`
	}
	data, err := json.Marshal(wrapper{D: MustDate("2024-05-06")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2024-05-06"}`, string(data))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2024-05-06","end":"2024-06-01"}`), &w))
	assert.Equal(t, MustDate("2024-05-06"), w.D)
	require.NotNil(t, w.End)
	assert.Equal(t, MustDate("2024-06-01"), *w.End)

	assert.Error(t, json.Unmarshal([]byte(`{"d":"06/05/2024"}`), &w))
}
