/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"runtime/debug"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
)

// UnknownVersion stands in for any component that could not be determined.
const UnknownVersion = "unknown"

// VersionInfo fingerprints the build that produced a record.
type VersionInfo struct {
	PackageVersion string    `json:"package_version"`
	Revision       string    `json:"revision"`
	ShortRevision  string    `json:"short_revision"`
	Branch         string    `json:"branch,omitempty"`
	Dirty          bool      `json:"dirty"`
	ChangeRequest  string    `json:"change_request,omitempty"`
	CapturedAt     time.Time `json:"captured_at"`
}

// Key identifies the build as <package>@<shortRevision>, with a -dirty
// suffix when the working tree had uncommitted changes.
func (v VersionInfo) Key() string {
	pkg := v.PackageVersion
	if pkg == "" {
		pkg = UnknownVersion
	}
	rev := v.ShortRevision
	if rev == "" {
		rev = UnknownVersion
	}
	key := pkg + "@" + rev
	if v.Dirty {
		key += "-dirty"
	}
	return key
}

var (
	branchChangeRequest = regexp.MustCompile(`(?i)(?:^|/)(?:pr|pull)[-/](\d+)(?:$|[/-])`)
	refChangeRequest    = regexp.MustCompile(`^refs/pull/(\d+)/`)
)

// changeRequestEnv lists the variables consulted for a change-request number, in order.
var changeRequestEnv = []string{"CHANGE_REQUEST", "PR_NUMBER", "GITHUB_PR_NUMBER"}

// ChangeRequest infers a change-request number from the branch name
// (pr-123, pr/123, pull/123) or, failing that, from the environment.
func ChangeRequest(branch string, getenv func(string) string) string {
	if m := branchChangeRequest.FindStringSubmatch(branch); m != nil {
		return m[1]
	}
	for _, name := range changeRequestEnv {
		if v := getenv(name); v != "" {
			return v
		}
	}
	if m := refChangeRequest.FindStringSubmatch(getenv("GITHUB_REF")); m != nil {
		return m[1]
	}
	return ""
}

// Versioner captures VersionInfo for the working tree at Dir.
type Versioner struct {
	// Dir is any path inside the repository. Empty means the current directory.
	Dir string
	// PackageVersion overrides the module version from the build info.
	PackageVersion string
	// Getenv reads the environment. Defaults to os.Getenv.
	Getenv func(string) string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Capture snapshots the version. Failures to read git state are logged and
// leave the revision fields unknown rather than failing the save.
func (v *Versioner) Capture(ctx context.Context) VersionInfo {
	info := VersionInfo{
		PackageVersion: v.packageVersion(),
		Revision:       UnknownVersion,
		ShortRevision:  UnknownVersion,
		CapturedAt:     v.now(),
	}

	if err := v.readGit(&info); err != nil {
		clog.FromContext(ctx).With("dir", v.Dir).
			With("error", err.Error()).
			Warn("Unable to read git revision for evaluation record")
	}
	info.ChangeRequest = ChangeRequest(info.Branch, v.getenv())
	return info
}

func (v *Versioner) readGit(info *VersionInfo) error {
	dir := v.Dir
	if dir == "" {
		dir = "."
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return fmt.Errorf("opening repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("resolving HEAD: %w", err)
	}
	info.Revision = head.Hash().String()
	info.ShortRevision = info.Revision[:7]
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}

	worktree, err := repo.Worktree()
	if errors.Is(err, git.ErrIsBareRepository) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return fmt.Errorf("getting worktree status: %w", err)
	}
	info.Dirty = !status.IsClean()
	return nil
}

func (v *Versioner) packageVersion() string {
	if v.PackageVersion != "" {
		return v.PackageVersion
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return UnknownVersion
}

func (v *Versioner) getenv() func(string) string {
	if v.Getenv != nil {
		return v.Getenv
	}
	return osGetenv
}

func (v *Versioner) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}
