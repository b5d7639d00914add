package model

import "testing"

func TestThreatScore(t *testing.T) {
	tests := []struct {
		name         string
		ipType       string
		whitelisted  bool
		blacklisted  bool
		failedLogins int64
		bans         int64
		want         float64
	}{
		{"clean private", IPTypePrivate, false, false, 0, 0, 0},
		{"clean public", IPTypePublic, false, false, 0, 0, 10},
		{"whitelisted ignores everything", IPTypePublic, true, true, 10, 10, 0},
		{"blacklisted base", IPTypePrivate, false, true, 0, 0, 90},
		{"failed logins capped at 6", IPTypePublic, false, false, 20, 0, 40},
		{"bans capped at 2", IPTypePublic, false, false, 0, 5, 50},
		{"blacklisted clamps at 100", IPTypePublic, false, true, 6, 2, 100},
		{"public with three failures", IPTypePublic, false, false, 3, 0, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ThreatScore(tt.ipType, tt.whitelisted, tt.blacklisted, tt.failedLogins, tt.bans)
			if got != tt.want {
				t.Errorf("ThreatScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestThreatScoreIdempotent(t *testing.T) {
	rep := IPReputation{
		IP:               "203.0.113.42",
		Type:             IPTypePublic,
		FailedLoginCount: 4,
		BannedCount:      1,
	}
	rep.Recompute()
	first := rep.ThreatScore
	rep.Recompute()
	if rep.ThreatScore != first {
		t.Errorf("Recompute not idempotent: %v then %v", first, rep.ThreatScore)
	}
	if want := ThreatScore(rep.Type, false, false, 4, 1); first != want {
		t.Errorf("stored score %v differs from pure recomputation %v", first, want)
	}
}

func TestSeverityBand(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0, BandLow},
		{30, BandLow},
		{31, BandMedium},
		{60, BandMedium},
		{61, BandHigh},
		{80, BandHigh},
		{81, BandCritical},
		{100, BandCritical},
	}
	for _, tt := range tests {
		if got := SeverityBand(tt.score); got != tt.want {
			t.Errorf("SeverityBand(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestClassifyIP(t *testing.T) {
	tests := []struct {
		ip   string
		want string
	}{
		{"127.0.0.1", IPTypeLocalhost},
		{"::1", IPTypeLocalhost},
		{"192.168.1.10", IPTypePrivate},
		{"10.0.0.5", IPTypePrivate},
		{"172.16.3.4", IPTypePrivate},
		{"34.90.1.1", IPTypeCloud},
		{"52.10.20.30", IPTypeCloud},
		{"203.0.113.42", IPTypePublic},
		{"8.8.8.8", IPTypePublic},
		{"not-an-ip", IPTypePublic},
	}
	for _, tt := range tests {
		if got := ClassifyIP(tt.ip); got != tt.want {
			t.Errorf("ClassifyIP(%q) = %q, want %q", tt.ip, got, tt.want)
		}
	}
}

func TestHourStart(t *testing.T) {
	// 2024-01-15 13:37:21 UTC -> 13:00:00
	if got := HourStart(1705325841); got != 1705323600 {
		t.Errorf("HourStart = %d, want 1705323600", got)
	}
	if got := HourStart(3600); got != 3600 {
		t.Errorf("HourStart on boundary = %d, want 3600", got)
	}
}

func TestDayBounds(t *testing.T) {
	start, end, err := DayBounds("2024-01-15")
	if err != nil {
		t.Fatalf("DayBounds: %v", err)
	}
	if end-start != 86400 {
		t.Errorf("day span = %d, want 86400", end-start)
	}
	if DateOf(start) != "2024-01-15" || DateOf(end-1) != "2024-01-15" {
		t.Errorf("bounds do not cover the date: %s .. %s", DateOf(start), DateOf(end-1))
	}
	if _, _, err := DayBounds("not-a-date"); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	e := LogEvent{
		Timestamp: 100,
		Source:    SourceFail2ban,
		Metadata:  map[string]any{"count": 7, "jail": "sshd"},
	}
	blob := e.MetadataJSON()
	if blob == "" {
		t.Fatal("expected non-empty metadata blob")
	}

	var restored LogEvent
	restored.SetMetadataJSON(blob)
	if n, ok := restored.MetadataInt("count"); !ok || n != 7 {
		t.Errorf("count = %d (ok=%v), want 7", n, ok)
	}
	if restored.Metadata["jail"] != "sshd" {
		t.Errorf("jail = %v, want sshd", restored.Metadata["jail"])
	}

	var empty LogEvent
	empty.SetMetadataJSON("")
	if empty.Metadata != nil {
		t.Error("blank blob should leave metadata nil")
	}
	empty.SetMetadataJSON("{broken")
	if empty.Metadata != nil {
		t.Error("malformed blob should leave metadata nil")
	}
}

func TestHealthStatusAndPosture(t *testing.T) {
	if HealthStatus(80) != StatusHealthy || HealthStatus(79) != StatusDegraded || HealthStatus(49) != StatusCritical {
		t.Error("health status boundaries wrong")
	}
	if SecurityPosture(19) != PostureGood || SecurityPosture(20) != PostureFair ||
		SecurityPosture(50) != PosturePoor || SecurityPosture(80) != PostureCritical {
		t.Error("posture boundaries wrong")
	}
}
