// Package updater replaces the running lightnode binary with the latest
// GitHub release, keeping a backup for rollback.
package updater

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/creativeprojects/go-selfupdate"

	"github.com/smazurov/lightnode/internal/logging"
	"github.com/smazurov/lightnode/internal/version"
)

// DefaultRepository is the GitHub slug releases are fetched from.
const DefaultRepository = "smazurov/lightnode"

// Options configures an Updater.
type Options struct {
	Repository string // GitHub slug, defaults to DefaultRepository
	Prerelease bool
	BackupDir  string // defaults to ~/.cache/lightnode/backup
}

// Info describes the latest release relative to the running version.
type Info struct {
	CurrentVersion  string    `json:"current_version"`
	LatestVersion   string    `json:"latest_version"`
	ReleaseNotes    string    `json:"release_notes,omitempty"`
	ReleaseURL      string    `json:"release_url,omitempty"`
	PublishedAt     time.Time `json:"published_at"`
	AssetSize       int       `json:"asset_size,omitempty"`
	UpdateAvailable bool      `json:"update_available"`
	BackupVersion   string    `json:"backup_version,omitempty"`
}

// Updater checks for and applies releases.
type Updater struct {
	repository selfupdate.Repository
	updater    *selfupdate.Updater
	backups    *backupManager
	logger     *slog.Logger
}

// New creates an updater backed by GitHub releases.
func New(opts Options) (*Updater, error) {
	logger := logging.GetLogger("updater")

	slug := opts.Repository
	if slug == "" {
		slug = DefaultRepository
	}

	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub source: %w", err)
	}
	updater, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     source,
		Prerelease: opts.Prerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}

	dir := opts.BackupDir
	if dir == "" {
		if dir, err = defaultBackupDir(); err != nil {
			return nil, err
		}
	}
	backups, err := newBackupManager(dir, logger)
	if err != nil {
		return nil, err
	}

	return &Updater{
		repository: selfupdate.ParseSlug(slug),
		updater:    updater,
		backups:    backups,
		logger:     logger,
	}, nil
}

// Check queries the latest release without downloading it.
func (u *Updater) Check(ctx context.Context) (*Info, error) {
	_, info, err := u.detect(ctx)
	return info, err
}

func (u *Updater) detect(ctx context.Context) (*selfupdate.Release, *Info, error) {
	release, found, err := u.updater.DetectLatest(ctx, u.repository)
	if err != nil {
		return nil, nil, newError(ErrCodeCheckFailed, "failed to check for updates", err)
	}
	if !found {
		return nil, nil, newError(ErrCodeNotFound, "repository not found or has no releases", nil)
	}

	info := &Info{
		CurrentVersion:  version.Version,
		LatestVersion:   release.Version(),
		ReleaseNotes:    release.ReleaseNotes,
		ReleaseURL:      release.URL,
		PublishedAt:     release.PublishedAt,
		AssetSize:       release.AssetByteSize,
		UpdateAvailable: isNewer(version.Version, release.GreaterThan),
		BackupVersion:   u.backups.backupVersion(),
	}
	return release, info, nil
}

// isNewer reports whether the release is newer than current. dev builds
// are always considered outdated.
func isNewer(current string, greaterThan func(string) bool) bool {
	return current == "dev" || greaterThan(current)
}

// Apply backs up the running binary and replaces it with the latest
// release. A failed replacement is rolled back automatically.
func (u *Updater) Apply(ctx context.Context) (*Info, error) {
	release, info, err := u.detect(ctx)
	if err != nil {
		return nil, err
	}
	if !info.UpdateAvailable {
		return info, newError(ErrCodeNoUpdate, "already running the latest release", nil)
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return nil, newError(ErrCodeApplyFailed, "failed to get executable path", err)
	}
	if err := u.backups.createBackup(exe, version.Version); err != nil {
		return nil, newError(ErrCodeBackupFailed, "failed to create backup", err)
	}

	u.logger.Info("Applying update", "from", info.CurrentVersion, "to", info.LatestVersion)
	if err := u.updater.UpdateTo(ctx, release, exe); err != nil {
		if rbErr := u.backups.restore(); rbErr != nil {
			u.logger.Error("Automatic rollback failed", "error", rbErr)
		}
		return nil, newError(ErrCodeApplyFailed, "failed to apply update", err)
	}

	u.logger.Info("Update applied", "version", info.LatestVersion)
	return info, nil
}

// Rollback restores the binary saved by the last Apply.
func (u *Updater) Rollback() (string, error) {
	if !u.backups.hasBackup() {
		return "", newError(ErrCodeNoBackup, "no backup available for rollback", nil)
	}
	if err := u.backups.restore(); err != nil {
		return "", newError(ErrCodeRollbackFailed, "failed to restore backup", err)
	}
	return u.backups.backupVersion(), nil
}
