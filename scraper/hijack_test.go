package scraper

import "testing"

func TestIsTrackerDomain(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"doubleclick.net", true},
		{"stats.g.doubleclick.net", true},
		{"WWW.GOOGLE-ANALYTICS.COM", true},
		{"www.trustnet.com", false},
		{"notdoubleclick.net", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isTrackerDomain(tt.host); got != tt.want {
			t.Errorf("isTrackerDomain(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestNewLimiter(t *testing.T) {
	if l := newLimiter(0); !l.Allow() || !l.Allow() {
		t.Error("non-positive rate should not pace")
	}
	l := newLimiter(1)
	if !l.Allow() {
		t.Fatal("first token should be available")
	}
	if l.Allow() {
		t.Error("second token should be paced")
	}
}
