/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"chainguard.dev/judgeval/consistency"
	"chainguard.dev/judgeval/judge"
	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
)

var osGetenv = os.Getenv

// maxNameAttempts bounds how many later milliseconds Save tries when a
// record name is already taken.
const maxNameAttempts = 16

// Store persists verdicts and reconstructs them for analysis.
type Store struct {
	backend   Backend
	versioner *Versioner
	profile   string
	getenv    func(string) string
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithVersioner sets how the version fingerprint is captured.
func WithVersioner(v *Versioner) Option {
	return func(s *Store) { s.versioner = v }
}

// WithProfile tags records with an environment profile name.
func WithProfile(profile string) Option {
	return func(s *Store) { s.profile = profile }
}

// WithGetenv replaces os.Getenv for CI detection.
func WithGetenv(getenv func(string) string) Option {
	return func(s *Store) { s.getenv = getenv }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a Store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		versioner: &Versioner{},
		getenv:    osGetenv,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.versioner.Getenv == nil {
		s.versioner.Getenv = s.getenv
	}
	return s
}

// SaveOption annotates a record before it is written.
type SaveOption func(*Record)

// WithSubjectModel records the model that produced the response under test.
func WithSubjectModel(model string) SaveOption {
	return func(r *Record) { r.SubjectModel = model }
}

// WithThreshold records the pass mark the verdict was judged against.
func WithThreshold(threshold float64) SaveOption {
	return func(r *Record) { r.Threshold = threshold }
}

// Save writes one immutable record for result. If the millisecond-stamped
// name is taken, the next free millisecond is used; existing records are
// never replaced.
func (s *Store) Save(ctx context.Context, testName string, response judge.Response, criteria judge.Criteria, result *consistency.Result, opts ...SaveOption) (*Record, error) {
	if testName == "" {
		return nil, errors.New("test name is required")
	}
	if result == nil {
		return nil, errors.New("result is required")
	}

	rec := &Record{
		ID:           uuid.NewString(),
		TestName:     testName,
		Timestamp:    s.now().UTC(),
		Criteria:     criteria,
		SubjectModel: UnknownVersion,
		ResponseText: response.Text(),
		Result:       result,
		Version:      s.versioner.Capture(ctx),
		Environment: Environment{
			Profile: s.profile,
			CI:      truthy(s.getenv("CI")),
		},
	}
	for _, opt := range opts {
		opt(rec)
	}

	millis := rec.Timestamp.UnixMilli()
	for i := range int64(maxNameAttempts) {
		// The stored timestamp always matches the millisecond in the name.
		rec.Timestamp = time.UnixMilli(millis + i).UTC()
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding record: %w", err)
		}
		name := FileName(testName, millis+i)
		err = s.backend.Put(ctx, name, data)
		if errors.Is(err, ErrExists) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("saving %s: %w", name, err)
		}
		clog.FromContext(ctx).With("test", testName).
			With("record", name).
			With("version", rec.Version.Key()).
			Debug("Saved evaluation record")
		return rec, nil
	}
	return nil, fmt.Errorf("no free record name for %q near %d: %w", testName, millis, ErrExists)
}

// LoadTest returns the records of testName, oldest first.
func (s *Store) LoadTest(ctx context.Context, testName string) ([]*Record, error) {
	stem := fileStem(testName)
	records, err := s.load(ctx, stem+"-", func(name string) bool {
		got, _, ok := parseFileName(name)
		return ok && got == stem
	})
	if err != nil {
		return nil, err
	}
	// Distinct names can share a stem once sanitized.
	out := records[:0]
	for _, r := range records {
		if r.TestName == testName {
			out = append(out, r)
		}
	}
	return out, nil
}

// LoadAll returns every record, oldest first.
func (s *Store) LoadAll(ctx context.Context) ([]*Record, error) {
	return s.load(ctx, "", func(name string) bool {
		_, _, ok := parseFileName(name)
		return ok
	})
}

func (s *Store) load(ctx context.Context, prefix string, match func(string) bool) ([]*Record, error) {
	log := clog.FromContext(ctx)
	var records []*Record
	err := s.backend.Scan(ctx, prefix, func(name string, data []byte) error {
		if !match(name) {
			return nil
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			log.With("record", name).With("error", err.Error()).Warn("Skipping corrupt evaluation record")
			return nil
		}
		if err := rec.validate(); err != nil {
			log.With("record", name).With("error", err.Error()).Warn("Skipping incomplete evaluation record")
			return nil
		}
		records = append(records, &rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
