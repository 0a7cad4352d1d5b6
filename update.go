package main

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
)

const (
	githubOwner = "mogzi-run"
	githubRepo  = "mogzi"
)

// UpdateChecker compares the running binary's version against mogzi's
// GitHub release feed and can replace the binary in place.
type UpdateChecker struct {
	currentVersion string
}

func NewUpdateChecker(currentVersion string) *UpdateChecker {
	return &UpdateChecker{currentVersion: currentVersion}
}

func (u *UpdateChecker) slug() string {
	return fmt.Sprintf("%s/%s", githubOwner, githubRepo)
}

func parseVersion(v string) (semver.Version, error) {
	return semver.Parse(strings.TrimPrefix(v, "v"))
}

// Latest reports the newest published release and whether it's newer than
// the running binary.
func (u *UpdateChecker) Latest() (*selfupdate.Release, bool, error) {
	current, err := parseVersion(u.currentVersion)
	if err != nil {
		return nil, false, fmt.Errorf("invalid current version: %w", err)
	}

	latest, found, err := selfupdate.DetectLatest(u.slug())
	if err != nil {
		return nil, false, fmt.Errorf("detecting latest release: %w", err)
	}
	if !found {
		return nil, false, fmt.Errorf("no release found")
	}
	if latest.Version.LTE(current) {
		slog.Debug("current version is up to date", "current", u.currentVersion, "latest", latest.Version)
		return latest, false, nil
	}
	return latest, true, nil
}

// Apply replaces the running binary with the latest published release.
func (u *UpdateChecker) Apply() error {
	current, err := parseVersion(u.currentVersion)
	if err != nil {
		return fmt.Errorf("invalid current version: %w", err)
	}

	latest, err := selfupdate.UpdateSelf(current, u.slug())
	if err != nil {
		return fmt.Errorf("updating binary: %w", err)
	}
	if latest.Version.Equals(current) {
		slog.Info("already up to date", "version", u.currentVersion)
		return nil
	}
	slog.Info("successfully updated", "from", u.currentVersion, "to", latest.Version)
	return nil
}

// AutoCheck checks for an update with a short timeout suitable for a
// startup banner; it never blocks the chat session past the timeout and
// treats "dev" builds and an unset version as never having an update.
func (u *UpdateChecker) AutoCheck() bool {
	if u.currentVersion == "" || u.currentVersion == "dev" {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan bool, 1)
	go func() {
		_, hasUpdate, err := u.Latest()
		if err != nil {
			slog.Debug("update check failed", "error", err)
			done <- false
			return
		}
		done <- hasUpdate
	}()

	select {
	case hasUpdate := <-done:
		return hasUpdate
	case <-ctx.Done():
		slog.Debug("update check timed out")
		return false
	}
}

// GetUpdateCommand returns the command the user should run to update,
// per the install method implied by the current platform.
func GetUpdateCommand() string {
	if runtime.GOOS == "darwin" || runtime.GOOS == "linux" {
		return "brew upgrade mogzi"
	}
	return "mogzi update"
}
