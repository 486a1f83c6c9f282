package health

import (
	"context"
	"errors"
	"testing"
)

func TestRunAggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]ComponentHealth
		want   Status
	}{
		{"none", nil, StatusUp},
		{"all up", map[string]ComponentHealth{"elasticsearch": {Status: StatusUp}, "redis": {Status: StatusUp}}, StatusUp},
		{"degraded", map[string]ComponentHealth{"elasticsearch": {Status: StatusUp}, "redis": {Status: StatusDegraded}}, StatusDegraded},
		{"down wins", map[string]ComponentHealth{"elasticsearch": {Status: StatusDown}, "redis": {Status: StatusDegraded}}, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for name, result := range tt.checks {
				c.Register(name, func(context.Context) ComponentHealth { return result })
			}
			if c.Len() != len(tt.checks) {
				t.Fatalf("Len = %d, want %d", c.Len(), len(tt.checks))
			}
			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("status = %s, want %s", report.Status, tt.want)
			}
			if len(report.Components) != len(tt.checks) {
				t.Errorf("components = %d, want %d", len(report.Components), len(tt.checks))
			}
			for name, comp := range report.Components {
				if comp.Latency == "" {
					t.Errorf("%s: latency not recorded", name)
				}
			}
		})
	}
}

func TestFromError(t *testing.T) {
	if got := FromError(nil); got.Status != StatusUp || got.Message != "" {
		t.Errorf("FromError(nil) = %+v", got)
	}
	got := FromError(errors.New("connection refused"))
	if got.Status != StatusDown || got.Message != "connection refused" {
		t.Errorf("FromError(err) = %+v", got)
	}
}
