package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSLADuration(t *testing.T) {
	cases := []struct {
		severity string
		want     time.Duration
	}{
		{SeverityCritical, 2 * time.Minute},
		{SeveritySevere, 5 * time.Minute},
		{SeverityModerate, 7 * time.Minute},
		{"Low", 10 * time.Minute},
		{"", 10 * time.Minute},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SLADuration(tc.severity), "severity %q", tc.severity)
	}
}
