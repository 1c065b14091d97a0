package checker

import (
	"fmt"
	"testing"
)

func TestServiceName(t *testing.T) {
	tests := []struct {
		port int
		want string
	}{
		{80, "http"},
		{443, "https"},
		{22, "ssh"},
		{3306, "mysql"},
		{5432, "postgresql"},
		{6379, "redis"},
		{27017, "mongodb"},
		{9999, "unknown"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("port_%d", tt.port), func(t *testing.T) {
			if got := ServiceName(tt.port); got != tt.want {
				t.Errorf("ServiceName(%d) = %v, want %v", tt.port, got, tt.want)
			}
		})
	}
}

func TestServiceType(t *testing.T) {
	tests := []struct {
		port int
		want string
	}{
		{21, ServiceAdmin},
		{22, ServiceAdmin},
		{110, ServiceMail},
		{587, ServiceMail},
		{80, ServiceWeb},
		{443, ServiceWeb},
		{3389, ServiceOther},
		{8080, ServiceOther},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("port_%d", tt.port), func(t *testing.T) {
			if got := ServiceType(tt.port); got != tt.want {
				t.Errorf("ServiceType(%d) = %v, want %v", tt.port, got, tt.want)
			}
		})
	}
}

func TestLookupDangerousService(t *testing.T) {
	for _, port := range []int{21, 22, 25, 3306, 5432, 6379} {
		s, ok := LookupDangerousService(port)
		if !ok || s.Severity != "High" || s.Name == "" {
			t.Errorf("port %d: got %+v, %v", port, s, ok)
		}
	}
	if _, ok := LookupDangerousService(443); ok {
		t.Error("443 should not be a dangerous service")
	}
}

func TestPortRisk(t *testing.T) {
	tests := []struct {
		port int
		want string
	}{
		{23, "critical"},
		{3389, "critical"},
		{5900, "critical"},
		{22, "high"},
		{3306, "high"},
		{5432, "high"},
		{8080, "medium"},
		{80, "low"},
		{443, "low"},
		{12345, "info"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("port_%d", tt.port), func(t *testing.T) {
			if got := PortRisk(tt.port); got != tt.want {
				t.Errorf("PortRisk(%d) = %v, want %v", tt.port, got, tt.want)
			}
		})
	}
}
