package model

import (
	"net"
	"strings"
)

// IP classifications.
const (
	IPTypeLocalhost = "localhost"
	IPTypePrivate   = "private"
	IPTypeCloud     = "cloud"
	IPTypePublic    = "public"
)

// IPReputation is the accumulated behavioral record for one IP. A single row
// per IP, mutated in place: counters only grow, threat score is rederived on
// every update.
type IPReputation struct {
	IP               string `json:"ip"`
	Type             string `json:"type"`
	IsWhitelisted    bool   `json:"is_whitelisted"`
	IsBlacklisted    bool   `json:"is_blacklisted"`
	ThreatScore      float64 `json:"threat_score"`
	FirstSeen        int64  `json:"first_seen"`
	LastSeen         int64  `json:"last_seen"`
	TotalEvents      int64  `json:"total_events"`
	FailedLoginCount int64  `json:"failed_login_count"`
	BannedCount      int64  `json:"banned_count"`
	UpdatedAt        int64  `json:"updated_at"`
}

// Recompute rederives the threat score from the reputation's own fields.
func (r *IPReputation) Recompute() {
	r.ThreatScore = ThreatScore(r.Type, r.IsWhitelisted, r.IsBlacklisted, r.FailedLoginCount, r.BannedCount)
}

// ThreatScore is the pure scoring function:
// base 90 if blacklisted, else 10 for public IPs, else 0;
// +5 per failed login (capped at 6), +20 per ban (capped at 2); clamped to [0, 100].
// Whitelisted IPs always score 0.
func ThreatScore(ipType string, whitelisted, blacklisted bool, failedLogins, bans int64) float64 {
	if whitelisted {
		return 0
	}
	base := 0.0
	switch {
	case blacklisted:
		base = 90
	case ipType == IPTypePublic:
		base = 10
	}
	score := base + 5*float64(min64(failedLogins, 6)) + 20*float64(min64(bans, 2))
	return ClampScore(score)
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Well-known cloud provider ranges, matched before the public fallback.
var cloudCIDRs = []string{
	"3.0.0.0/8",      // AWS
	"13.64.0.0/11",   // Azure
	"18.0.0.0/8",     // AWS
	"34.64.0.0/10",   // GCP
	"35.184.0.0/13",  // GCP
	"52.0.0.0/8",     // AWS / Azure
	"104.196.0.0/14", // GCP
}

var cloudNets = func() []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cloudCIDRs))
	for _, c := range cloudCIDRs {
		if _, n, err := net.ParseCIDR(c); err == nil {
			nets = append(nets, n)
		}
	}
	return nets
}()

// ClassifyIP buckets an address into localhost, private, cloud, or public.
// Unparseable strings classify as public so they still accrue reputation.
func ClassifyIP(ip string) string {
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil {
		return IPTypePublic
	}
	if addr.IsLoopback() {
		return IPTypeLocalhost
	}
	if addr.IsPrivate() || addr.IsLinkLocalUnicast() {
		return IPTypePrivate
	}
	for _, n := range cloudNets {
		if n.Contains(addr) {
			return IPTypeCloud
		}
	}
	return IPTypePublic
}
