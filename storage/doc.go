/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package storage persists judge verdicts and analyzes their history.
//
// Each verdict becomes an immutable Record named <testName>-<unixMillis>.json
// and is written through an insert-only Backend: FileBackend keeps one file per
// record in a results directory, BadgerBackend keeps the same names as keys in
// an embedded database. Records carry a VersionInfo fingerprint of the build
// (package version, git revision, dirty flag, change request) so results can
// be grouped by version key, e.g. "3.0.1@a58f568-dirty".
//
// Reads take a snapshot of the backend at call time and skip corrupt entries,
// so analysis is eventually consistent with concurrent writers.
package storage
