/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"chainguard.dev/judgeval/storage"
)

const timeLayout = "2006-01-02 15:04"

// Summary renders the per-test roll-up of stored records. Tests whose pass
// rate is below minPassRate (a percentage) are flagged.
func Summary(sum *storage.Summary, minPassRate float64) string {
	rows := make([][]string, 0, len(sum.Tests)+1)
	for _, ts := range sum.Tests {
		rows = append(rows, []string{
			ts.TestName,
			strconv.Itoa(ts.Count),
			strconv.Itoa(ts.Passed),
			flag(ts.PassRate < minPassRate, percent(ts.PassRate)),
			score(ts.MeanScore),
			dollars(ts.TotalCost),
			ts.Last.Format(timeLayout),
		})
	}
	rows = append(rows, []string{
		"**Total**",
		strconv.Itoa(sum.TotalRecords),
		strconv.Itoa(sum.Passed),
		flag(sum.TotalRecords > 0 && sum.PassRate < minPassRate, percent(sum.PassRate)),
		"",
		dollars(sum.TotalCost),
		"",
	})
	return section("Evaluation Summary",
		[]string{"Test", "Runs", "Passed", "Pass Rate", "Mean Score", "Cost", "Last Run"}, rows)
}

// Trends renders a test's trend analysis and any regressions.
func Trends(ta *storage.TrendAnalysis) string {
	var sb strings.Builder
	sb.WriteString(section("Trend: "+ta.TestName, []string{"Metric", "Value"}, [][]string{
		{"Runs", strconv.Itoa(ta.Count)},
		{"Pass rate", percent(ta.PassRate)},
		{fmt.Sprintf("Last %d pass rate", storage.RecentWindow), percent(ta.RecentPassRate)},
		{"Trend", flag(ta.Trend == storage.TrendDegrading, string(ta.Trend))},
		{"Mean score", fmt.Sprintf("%.1f ± %.1f", ta.MeanScore, ta.ScoreStdDev)},
		{"Mean cost", dollars(ta.MeanCost)},
		{"Total cost", dollars(ta.TotalCost)},
	}))
	if len(ta.Regressions) == 0 {
		return sb.String()
	}

	rows := make([][]string, 0, len(ta.Regressions))
	for _, r := range ta.Regressions {
		rows = append(rows, []string{
			r.At.Format(timeLayout),
			r.Version,
			score(r.FromScore),
			score(r.ToScore),
			flag(true, score(r.Drop)),
		})
	}
	sb.WriteString("\n")
	sb.WriteString(section("Regressions", []string{"When", "Version", "From", "To", "Drop"}, rows))
	return sb.String()
}

// Versions renders per-version aggregates.
func Versions(stats []storage.VersionStats) string {
	rows := make([][]string, 0, len(stats))
	for _, vs := range stats {
		cr := "-"
		if vs.Version.ChangeRequest != "" {
			cr = "#" + vs.Version.ChangeRequest
		}
		rows = append(rows, []string{
			vs.Key,
			cr,
			strconv.Itoa(vs.Count),
			percent(vs.PassRate),
			score(vs.MeanScore),
			dollars(vs.TotalCost),
			span(vs.First, vs.Last),
		})
	}
	return section("Results by Version",
		[]string{"Version", "Change", "Runs", "Pass Rate", "Mean Score", "Cost", "Seen"}, rows)
}

// Comparison renders a version-to-version comparison.
func Comparison(vc *storage.VersionComparison) string {
	return section(fmt.Sprintf("%s → %s: %s", vc.Base.Key, vc.Target.Key, vc.Classification),
		[]string{"Metric", vc.Base.Key, vc.Target.Key, "Delta"}, [][]string{
			{"Runs", strconv.Itoa(vc.Base.Count), strconv.Itoa(vc.Target.Count), ""},
			{"Pass rate", percent(vc.Base.PassRate), percent(vc.Target.PassRate),
				flag(vc.Classification == storage.Regressed, fmt.Sprintf("%+.1f", vc.PassRateDelta))},
			{"Mean score", score(vc.Base.MeanScore), score(vc.Target.MeanScore), fmt.Sprintf("%+.1f", vc.ScoreDelta)},
			{"Cost", dollars(vc.Base.TotalCost), dollars(vc.Target.TotalCost), ""},
		})
}

func span(first, last time.Time) string {
	if first.Equal(last) {
		return first.Format(timeLayout)
	}
	return first.Format(timeLayout) + " to " + last.Format(timeLayout)
}
