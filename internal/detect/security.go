package detect

import (
	"fmt"
	"sort"

	"github.com/avolkhov/logly/internal/model"
)

// DetectBruteForce groups failed logins by source address and alerts on any
// address at or over the failed-login threshold. A burst inside five minutes
// raises the severity further.
func (d *Detector) DetectBruteForce(w Window) ([]model.Issue, error) {
	events, err := d.store.GetLogEvents(w.Start, w.End, "", "", 0)
	if err != nil {
		return nil, err
	}

	type group struct {
		count       int
		firstSeen   int64
		lastSeen    int64
		uniqueUsers map[string]struct{}
	}
	groups := map[string]*group{}
	for _, e := range events {
		if e.Action != model.ActionFailedLogin || e.IP == "" {
			continue
		}
		g, ok := groups[e.IP]
		if !ok {
			g = &group{firstSeen: e.Timestamp, lastSeen: e.Timestamp, uniqueUsers: map[string]struct{}{}}
			groups[e.IP] = g
		}
		g.count++
		if e.Timestamp < g.firstSeen {
			g.firstSeen = e.Timestamp
		}
		if e.Timestamp > g.lastSeen {
			g.lastSeen = e.Timestamp
		}
		if e.User != "" {
			g.uniqueUsers[e.User] = struct{}{}
		}
	}

	threshold := d.thresholds.FailedLoginThreshold
	ips := make([]string, 0, len(groups))
	for ip := range groups {
		ips = append(ips, ip)
	}
	sort.Strings(ips)

	var issues []model.Issue
	for _, ip := range ips {
		g := groups[ip]
		if g.count < threshold {
			continue
		}
		severity := model.ClampScore(50 + 5*float64(g.count-threshold))
		span := g.lastSeen - g.firstSeen
		if span < 300 {
			severity = model.ClampScore(severity + 20)
		}
		issues = append(issues, model.Issue{
			Type:     model.IssueBruteForce,
			Severity: severity,
			Title:    fmt.Sprintf("Brute force attempt from %s", ip),
			Description: fmt.Sprintf("%d failed logins from %s over %s targeting %d account(s)",
				g.count, ip, spanString(g.firstSeen, g.lastSeen), len(g.uniqueUsers)),
			FirstSeen:         g.firstSeen,
			LastSeen:          g.lastSeen,
			OccurrenceCount:   int64(g.count),
			AffectedResources: []string{ip},
			Recommendations: []string{
				"verify the address is banned by fail2ban",
				"consider blocking the address range at the firewall",
				"enforce key-based authentication",
			},
			Details: map[string]any{
				"attempt_count": g.count,
				"unique_users":  len(g.uniqueUsers),
				"time_span":     span,
			},
		})
	}
	return issues, nil
}

// DetectHighThreatIPs surfaces reputation rows at or above the configured
// threat threshold.
func (d *Detector) DetectHighThreatIPs(Window) ([]model.Issue, error) {
	reps, err := d.store.GetHighThreatIPs(d.thresholds.ThreatScoreHigh)
	if err != nil {
		return nil, err
	}

	var issues []model.Issue
	for _, r := range reps {
		issues = append(issues, model.Issue{
			Type:     model.IssueHighThreatIP,
			Severity: r.ThreatScore,
			Title:    fmt.Sprintf("High-threat address %s", r.IP),
			Description: fmt.Sprintf("%s (%s) has threat score %.0f after %d failed logins and %d bans",
				r.IP, r.Type, r.ThreatScore, r.FailedLoginCount, r.BannedCount),
			FirstSeen:         r.FirstSeen,
			LastSeen:          r.LastSeen,
			OccurrenceCount:   r.TotalEvents,
			AffectedResources: []string{r.IP},
			Recommendations:   []string{"review the address history", "blacklist if activity continues"},
			Details: map[string]any{
				"threat_score":       r.ThreatScore,
				"failed_login_count": r.FailedLoginCount,
				"banned_count":       r.BannedCount,
			},
		})
	}
	return issues, nil
}

// DetectBannedIPs reports every ban event in the window, severity 70.
func (d *Detector) DetectBannedIPs(w Window) ([]model.Issue, error) {
	events, err := d.store.GetLogEvents(w.Start, w.End, "", "", 0)
	if err != nil {
		return nil, err
	}

	var issues []model.Issue
	for _, e := range events {
		if e.Action != model.ActionBan {
			continue
		}
		resources := []string{}
		if e.IP != "" {
			resources = append(resources, e.IP)
		}
		issues = append(issues, model.Issue{
			Type:              model.IssueBannedIP,
			Severity:          70,
			Title:             fmt.Sprintf("Address banned: %s", e.IP),
			Description:       e.Message,
			FirstSeen:         e.Timestamp,
			LastSeen:          e.Timestamp,
			OccurrenceCount:   1,
			AffectedResources: resources,
			Recommendations:   []string{"confirm the ban is expected", "check for related activity from nearby addresses"},
			Details:           map[string]any{"service": e.Service},
		})
	}
	return issues, nil
}
