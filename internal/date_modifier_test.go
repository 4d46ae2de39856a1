package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelativeDateModifier(t *testing.T) {
	m := NewRelativeDateModifier()
	m.now = func() time.Time { return time.Date(2025, 3, 10, 14, 5, 0, 0, time.UTC) }

	tests := []struct {
		name     string
		value    string
		modifier string
		layout   string
		want     string
		wantErr  bool
	}{
		{name: "plus day", value: "2024-01-31", modifier: "+1 day", layout: "2006-01-02", want: "2024-02-01"},
		{name: "minus weeks", value: "2024-01-31", modifier: "-2 weeks", layout: "2006-01-02", want: "2024-01-17"},
		{name: "months overflow", value: "2024-01-31", modifier: "+1 month", layout: "2006-01-02", want: "2024-03-02"},
		{name: "combined", value: "2024-01-15", modifier: "+1 month -1 day", layout: "2006-01-02", want: "2024-02-14"},
		{name: "year", value: "2024-02-29", modifier: "+1 year", layout: "2006-01-02", want: "2025-03-01"},
		{name: "unsigned amount", value: "2024-01-01", modifier: "3 days", layout: "2006-01-02", want: "2024-01-04"},
		{name: "minutes on datetime", value: "2024-01-01 00:10:00", modifier: "-30 minutes", layout: "2006-01-02 15:04:05", want: "2023-12-31 23:40:00"},
		{name: "rfc3339 input", value: "2024-01-01T08:00:00Z", modifier: "+4 hours", layout: "2006-01-02 15:04:05", want: "2024-01-01 12:00:00"},
		{name: "today", value: "2020-01-01", modifier: "today", layout: "2006-01-02 15:04:05", want: "2025-03-10 00:00:00"},
		{name: "now", value: "2020-01-01", modifier: "now", layout: "2006-01-02 15:04:05", want: "2025-03-10 14:05:00"},
		{name: "tomorrow", value: "2020-01-01", modifier: "tomorrow", layout: "2006-01-02", want: "2025-03-11"},
		{name: "empty modifier", value: "2024-01-01", modifier: " ", layout: "2006-01-02", want: "2024-01-01"},
		{name: "garbage modifier", value: "2024-01-01", modifier: "next blue moon", layout: "2006-01-02", wantErr: true},
		{name: "trailing garbage", value: "2024-01-01", modifier: "+1 day please", layout: "2006-01-02", wantErr: true},
		{name: "bad date", value: "01/02/2024", modifier: "+1 day", layout: "2006-01-02", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.ApplyModifier(tt.value, tt.modifier, tt.layout)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
