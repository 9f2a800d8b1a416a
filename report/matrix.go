/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package report

import (
	"fmt"
	"strings"
	"time"

	"chainguard.dev/judgeval/matrix"
)

// Matrix renders each judge's verdict followed by the comparison.
func Matrix(testName string, runs []matrix.Run, c matrix.Comparison) string {
	rows := make([][]string, 0, len(runs))
	for i, r := range runs {
		row := []string{r.Name, r.Judge.Model}
		if r.Valid() {
			verdict := "PASS"
			if !r.Result.Passed {
				verdict = "FAIL"
			}
			row = append(row,
				score(r.Result.FinalScore),
				flag(!r.Result.Passed, verdict),
				percent(r.Result.Variance))
		} else {
			row = append(row, "-", flag(true, "ERROR"), "-")
		}
		row = append(row, r.Duration.Round(time.Millisecond).String(), dollars(c.Costs[i].Cost))
		rows = append(rows, row)
	}

	var sb strings.Builder
	sb.WriteString(section("Judge Matrix: "+testName,
		[]string{"Judge", "Model", "Score", "Verdict", "Variance", "Duration", "Cost"}, rows))
	sb.WriteString("\n")
	sb.WriteString(section("Consensus", []string{"Metric", "Value"}, [][]string{
		{"Consensus", flag(c.Consensus == matrix.Split || c.Consensus == matrix.NoVerdicts, string(c.Consensus))},
		{"Agreement", percent(c.AgreementRate * 100)},
		{"Valid verdicts", fmt.Sprintf("%d/%d", c.Valid, c.Judges)},
		{"Score mean / median", fmt.Sprintf("%.1f / %.1f", c.Mean, c.Median)},
		{"Score range", fmt.Sprintf("%.1f to %.1f", c.Min, c.Max)},
		{"Score std dev", score(c.StdDev)},
		{"Total cost", dollars(c.TotalCost)},
	}))
	return sb.String()
}
