/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package storage

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"chainguard.dev/judgeval/consistency"
	"chainguard.dev/judgeval/judge"
)

const recordExt = ".json"

// Environment tags where a record was produced.
type Environment struct {
	Profile string `json:"profile,omitempty"`
	CI      bool   `json:"ci"`
}

// Record is one persisted verdict. Records are never modified after they
// are written.
type Record struct {
	ID           string              `json:"id"`
	TestName     string              `json:"test_name"`
	Timestamp    time.Time           `json:"timestamp"`
	Criteria     judge.Criteria      `json:"criteria"`
	SubjectModel string              `json:"subject_model"`
	ResponseText string              `json:"response_text,omitempty"`
	Threshold    float64             `json:"threshold,omitempty"`
	Result       *consistency.Result `json:"result"`
	Version      VersionInfo         `json:"version"`
	Environment  Environment         `json:"environment"`
}

// Score is the final score of the verdict.
func (r *Record) Score() float64 { return r.Result.FinalScore }

// Passed reports the verdict.
func (r *Record) Passed() bool { return r.Result.Passed }

// Cost is the judge spend behind the verdict.
func (r *Record) Cost() float64 { return r.Result.Cost() }

func (r *Record) validate() error {
	switch {
	case r.TestName == "":
		return fmt.Errorf("record %q has no test name", r.ID)
	case r.Result == nil:
		return fmt.Errorf("record %q has no result", r.ID)
	case r.Timestamp.IsZero():
		return fmt.Errorf("record %q has no timestamp", r.ID)
	}
	return nil
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName returns the record name for testName written at millis:
// <testName>-<unixMillis>.json, with characters unsafe in file names replaced.
func FileName(testName string, millis int64) string {
	return fileStem(testName) + "-" + strconv.FormatInt(millis, 10) + recordExt
}

func fileStem(testName string) string {
	return unsafeNameChars.ReplaceAllString(testName, "_")
}

// parseFileName splits a record name into its stem and timestamp.
func parseFileName(name string) (string, int64, bool) {
	base, ok := strings.CutSuffix(name, recordExt)
	if !ok {
		return "", 0, false
	}
	i := strings.LastIndexByte(base, '-')
	if i <= 0 {
		return "", 0, false
	}
	millis, err := strconv.ParseInt(base[i+1:], 10, 64)
	if err != nil || millis < 0 {
		return "", 0, false
	}
	return base[:i], millis, true
}
