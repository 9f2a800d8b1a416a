/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"chainguard.dev/judgeval/consistency"
)

const (
	// RecentWindow is the number of latest records compared against the
	// all-time pass rate.
	RecentWindow = 5
	// TrendBand is the pass-rate difference, in percentage points, beyond
	// which a trend is improving or degrading.
	TrendBand = 10.0
	// RegressionDrop is the score drop between consecutive records above
	// which a regression is reported.
	RegressionDrop = 10.0
	// VersionBand is the pass-rate or score difference beyond which one
	// version is classified as better or worse than another.
	VersionBand = 5.0
)

// ErrNoRecords is returned when an analysis has nothing to work on.
var ErrNoRecords = errors.New("no evaluation records")

// ErrUnknownVersion is returned when a version key has no records.
var ErrUnknownVersion = errors.New("no records for version")

// Trend classifies the direction of recent results.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDegrading Trend = "degrading"
	TrendStable    Trend = "stable"
)

// Regression is a score drop between two consecutive records.
type Regression struct {
	FromID    string    `json:"from_id"`
	ToID      string    `json:"to_id"`
	FromScore float64   `json:"from_score"`
	ToScore   float64   `json:"to_score"`
	Drop      float64   `json:"drop"`
	At        time.Time `json:"at"`
	Version   string    `json:"version"`
}

// TrendAnalysis summarizes the history of one test. Rates are percentages.
type TrendAnalysis struct {
	TestName       string       `json:"test_name"`
	Count          int          `json:"count"`
	PassRate       float64      `json:"pass_rate"`
	RecentPassRate float64      `json:"recent_pass_rate"`
	MeanScore      float64      `json:"mean_score"`
	ScoreStdDev    float64      `json:"score_std_dev"`
	MeanCost       float64      `json:"mean_cost"`
	TotalCost      float64      `json:"total_cost"`
	Trend          Trend        `json:"trend"`
	Regressions    []Regression `json:"regressions,omitempty"`
}

// VersionStats aggregates the records produced by one version key.
type VersionStats struct {
	Key       string      `json:"key"`
	Version   VersionInfo `json:"version"`
	Count     int         `json:"count"`
	PassRate  float64     `json:"pass_rate"`
	MeanScore float64     `json:"mean_score"`
	TotalCost float64     `json:"total_cost"`
	First     time.Time   `json:"first"`
	Last      time.Time   `json:"last"`
}

// Classification labels a version-to-version change.
type Classification string

const (
	Improvement Classification = "improvement"
	Regressed   Classification = "regression"
	Neutral     Classification = "neutral"
)

// VersionComparison is the difference from Base to Target.
type VersionComparison struct {
	Base           VersionStats   `json:"base"`
	Target         VersionStats   `json:"target"`
	PassRateDelta  float64        `json:"pass_rate_delta"`
	ScoreDelta     float64        `json:"score_delta"`
	Classification Classification `json:"classification"`
}

// TestSummary is the roll-up of one test.
type TestSummary struct {
	TestName  string    `json:"test_name"`
	Count     int       `json:"count"`
	Passed    int       `json:"passed"`
	PassRate  float64   `json:"pass_rate"`
	MeanScore float64   `json:"mean_score"`
	TotalCost float64   `json:"total_cost"`
	Last      time.Time `json:"last"`
}

// Summary is the roll-up of every stored record.
type Summary struct {
	TotalRecords int           `json:"total_records"`
	Passed       int           `json:"passed"`
	PassRate     float64       `json:"pass_rate"`
	TotalCost    float64       `json:"total_cost"`
	Tests        []TestSummary `json:"tests"`
}

// AnalyzeTrends computes the trend of testName.
func (s *Store) AnalyzeTrends(ctx context.Context, testName string) (*TrendAnalysis, error) {
	records, err := s.LoadTest(ctx, testName)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoRecords, testName)
	}
	return Trends(testName, records), nil
}

// Trends analyzes records, which must be sorted oldest first.
func Trends(testName string, records []*Record) *TrendAnalysis {
	scores := make([]float64, len(records))
	var totalCost float64
	for i, r := range records {
		scores[i] = r.Score()
		totalCost += r.Cost()
	}

	recent := records[max(len(records)-RecentWindow, 0):]
	ta := &TrendAnalysis{
		TestName:       testName,
		Count:          len(records),
		PassRate:       passRate(records),
		RecentPassRate: passRate(recent),
		MeanScore:      consistency.Mean(scores),
		ScoreStdDev:    consistency.StdDev(scores),
		TotalCost:      totalCost,
		MeanCost:       totalCost / float64(len(records)),
		Trend:          TrendStable,
	}
	switch delta := ta.RecentPassRate - ta.PassRate; {
	case delta > TrendBand:
		ta.Trend = TrendImproving
	case delta < -TrendBand:
		ta.Trend = TrendDegrading
	}

	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		if drop := prev.Score() - cur.Score(); drop > RegressionDrop {
			ta.Regressions = append(ta.Regressions, Regression{
				FromID:    prev.ID,
				ToID:      cur.ID,
				FromScore: prev.Score(),
				ToScore:   cur.Score(),
				Drop:      drop,
				At:        cur.Timestamp,
				Version:   cur.Version.Key(),
			})
		}
	}
	return ta
}

// AnalyzeByVersion groups the records of testName (every test when empty)
// by version key, ordered by first appearance.
func (s *Store) AnalyzeByVersion(ctx context.Context, testName string) ([]VersionStats, error) {
	var records []*Record
	var err error
	if testName == "" {
		records, err = s.LoadAll(ctx)
	} else {
		records, err = s.LoadTest(ctx, testName)
	}
	if err != nil {
		return nil, err
	}
	return ByVersion(records), nil
}

// ByVersion groups records, which must be sorted oldest first, by version key.
func ByVersion(records []*Record) []VersionStats {
	groups := make(map[string][]*Record)
	var order []string
	for _, r := range records {
		key := r.Version.Key()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}

	out := make([]VersionStats, 0, len(order))
	for _, key := range order {
		group := groups[key]
		scores := make([]float64, len(group))
		var totalCost float64
		for i, r := range group {
			scores[i] = r.Score()
			totalCost += r.Cost()
		}
		out = append(out, VersionStats{
			Key:       key,
			Version:   group[0].Version,
			Count:     len(group),
			PassRate:  passRate(group),
			MeanScore: consistency.Mean(scores),
			TotalCost: totalCost,
			First:     group[0].Timestamp,
			Last:      group[len(group)-1].Timestamp,
		})
	}
	return out
}

// CompareVersions compares two version keys over the records of testName
// (every test when empty).
func (s *Store) CompareVersions(ctx context.Context, testName, baseKey, targetKey string) (*VersionComparison, error) {
	stats, err := s.AnalyzeByVersion(ctx, testName)
	if err != nil {
		return nil, err
	}
	find := func(key string) (VersionStats, error) {
		for _, vs := range stats {
			if vs.Key == key {
				return vs, nil
			}
		}
		return VersionStats{}, fmt.Errorf("%w %q", ErrUnknownVersion, key)
	}
	base, err := find(baseKey)
	if err != nil {
		return nil, err
	}
	target, err := find(targetKey)
	if err != nil {
		return nil, err
	}
	return Compare(base, target), nil
}

// Compare classifies the change from base to target. A pass-rate change of
// more than VersionBand points decides; with an unchanged pass rate the mean
// score decides by the same band.
func Compare(base, target VersionStats) *VersionComparison {
	vc := &VersionComparison{
		Base:           base,
		Target:         target,
		PassRateDelta:  target.PassRate - base.PassRate,
		ScoreDelta:     target.MeanScore - base.MeanScore,
		Classification: Neutral,
	}
	flat := math.Abs(vc.PassRateDelta) < 1e-9
	switch {
	case vc.PassRateDelta > VersionBand, flat && vc.ScoreDelta > VersionBand:
		vc.Classification = Improvement
	case vc.PassRateDelta < -VersionBand, flat && vc.ScoreDelta < -VersionBand:
		vc.Classification = Regressed
	}
	return vc
}

// GenerateSummary rolls up every stored record, grouped per test in name order.
func (s *Store) GenerateSummary(ctx context.Context) (*Summary, error) {
	records, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(records), nil
}

// Summarize rolls up records, which must be sorted oldest first.
func Summarize(records []*Record) *Summary {
	byTest := make(map[string][]*Record)
	sum := &Summary{TotalRecords: len(records)}
	for _, r := range records {
		byTest[r.TestName] = append(byTest[r.TestName], r)
		if r.Passed() {
			sum.Passed++
		}
		sum.TotalCost += r.Cost()
	}
	sum.PassRate = passRate(records)

	names := make([]string, 0, len(byTest))
	for name := range byTest {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		group := byTest[name]
		ts := TestSummary{
			TestName: name,
			Count:    len(group),
			PassRate: passRate(group),
			Last:     group[len(group)-1].Timestamp,
		}
		scores := make([]float64, len(group))
		for i, r := range group {
			scores[i] = r.Score()
			ts.TotalCost += r.Cost()
			if r.Passed() {
				ts.Passed++
			}
		}
		ts.MeanScore = consistency.Mean(scores)
		sum.Tests = append(sum.Tests, ts)
	}
	return sum
}

// passRate is the percentage of passing records, 0 for none.
func passRate(records []*Record) float64 {
	if len(records) == 0 {
		return 0
	}
	var passed int
	for _, r := range records {
		if r.Passed() {
			passed++
		}
	}
	return float64(passed) / float64(len(records)) * 100
}
