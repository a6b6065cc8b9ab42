package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/geto-app/geto/internal/domain"
	"github.com/geto-app/geto/internal/eventbus"
)

// ErrNoInstalledPackages guards the sweep against an empty package listing,
// which would otherwise orphan every stored entry.
var ErrNoInstalledPackages = errors.New("usecase: device reported no installed packages")

// CleanupRecorder observes finished sweeps.
type CleanupRecorder interface {
	ObserveCleanup(removedPackages int, removedEntries int64)
}

// CleanupReport describes one sweep.
type CleanupReport struct {
	RemovedPackages []string `json:"removed_packages"`
	RemovedEntries  int64    `json:"removed_entries"`
}

// CleanupSweep removes entries whose package is no longer installed.
type CleanupSweep struct {
	entries  domain.EntryRepository
	packages domain.PackageQuery
	bus      *eventbus.Bus
	recorder CleanupRecorder
}

// NewCleanupSweep constructs the sweep. bus and recorder may be nil.
func NewCleanupSweep(entries domain.EntryRepository, packages domain.PackageQuery, bus *eventbus.Bus, recorder CleanupRecorder) *CleanupSweep {
	return &CleanupSweep{entries: entries, packages: packages, bus: bus, recorder: recorder}
}

// Orphans returns the stored packages that are not installed, without
// deleting anything.
func (c *CleanupSweep) Orphans(ctx context.Context) ([]string, error) {
	stored, err := c.entries.Packages(ctx)
	if err != nil {
		return nil, fmt.Errorf("usecase: list stored packages: %w", err)
	}
	if len(stored) == 0 {
		return nil, nil
	}

	installed, err := c.packages.InstalledPackages(ctx)
	if err != nil {
		return nil, fmt.Errorf("usecase: list installed packages: %w", err)
	}
	if len(installed) == 0 {
		return nil, ErrNoInstalledPackages
	}

	present := make(map[string]struct{}, len(installed))
	for _, pkg := range installed {
		present[pkg] = struct{}{}
	}

	var orphans []string
	for _, pkg := range stored {
		if _, ok := present[pkg]; !ok {
			orphans = append(orphans, pkg)
		}
	}
	return orphans, nil
}

// Run deletes the entries of every orphaned package.
func (c *CleanupSweep) Run(ctx context.Context) (CleanupReport, error) {
	orphans, err := c.Orphans(ctx)
	if err != nil {
		return CleanupReport{}, err
	}

	report := CleanupReport{RemovedPackages: orphans}
	if len(orphans) > 0 {
		removed, err := c.entries.DeleteByPackages(ctx, orphans)
		if err != nil {
			return CleanupReport{}, fmt.Errorf("usecase: delete orphaned entries: %w", err)
		}
		report.RemovedEntries = removed
		for _, pkg := range orphans {
			eventbus.Publish(ctx, c.bus, eventbus.Entries.Changed, eventbus.SourceCleanup, eventbus.EntriesChangedEvent{
				Package: pkg,
				Action:  eventbus.EntrySwept,
			})
		}
	}

	log.Printf("[Cleanup] removed %d entries across %d packages", report.RemovedEntries, len(report.RemovedPackages))
	if c.recorder != nil {
		c.recorder.ObserveCleanup(len(report.RemovedPackages), report.RemovedEntries)
	}
	eventbus.Publish(ctx, c.bus, eventbus.Cleanup.Completed, eventbus.SourceCleanup, eventbus.CleanupCompletedEvent{
		RemovedPackages: report.RemovedPackages,
		RemovedEntries:  report.RemovedEntries,
	})
	return report, nil
}
