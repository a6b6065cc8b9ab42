package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/geto-app/geto/internal/domain"
	"github.com/geto-app/geto/internal/eventbus"
)

// Use case names used in result events, metrics and the HTTP API.
const (
	UseCaseApply      = "apply"
	UseCaseRevert     = "revert"
	UseCaseAutoLaunch = "autolaunch"
)

// Recorder observes finished use case runs.
type Recorder interface {
	ObserveRun(useCase string, outcome domain.Outcome, writes int, elapsed time.Duration)
}

// Deps bundles the collaborators of the settings use cases. Bus, Recorder
// and Clock are optional.
type Deps struct {
	Entries     domain.EntryRepository
	Preferences domain.PreferencesRepository
	Writer      domain.SettingsWriter
	Packages    domain.PackageQuery
	Bus         *eventbus.Bus
	Recorder    Recorder
	Clock       clockwork.Clock
}

func (d Deps) clock() clockwork.Clock {
	if d.Clock == nil {
		return clockwork.NewRealClock()
	}
	return d.Clock
}

type valueSelector func(domain.SettingEntry) string

func launchValue(e domain.SettingEntry) string { return e.ValueOnLaunch }
func revertValue(e domain.SettingEntry) string { return e.ValueOnRevert }

// writeAll writes each entry in order and stops at the first rejection.
// Writes that already succeeded are left in place.
func writeAll(ctx context.Context, tag string, writer domain.SettingsWriter, entries []domain.SettingEntry, value valueSelector) (domain.Outcome, int) {
	written := 0
	for _, entry := range entries {
		ok, err := writer.Put(ctx, entry.Scope, entry.Key, value(entry))
		switch {
		case errors.Is(err, domain.ErrPermissionDenied):
			log.Printf("[%s] permission denied writing %s/%s after %d writes", tag, entry.Scope, entry.Key, written)
			return domain.OutcomeNoPermission, written
		case errors.Is(err, domain.ErrInvalidValue):
			log.Printf("[%s] invalid value %q for %s/%s after %d writes", tag, value(entry), entry.Scope, entry.Key, written)
			return domain.OutcomeInvalidValue, written
		case err != nil:
			log.Printf("[%s] write %s/%s failed after %d writes: %v", tag, entry.Scope, entry.Key, written, err)
			return domain.OutcomeFailure, written
		case !ok:
			log.Printf("[%s] write %s/%s rejected after %d writes", tag, entry.Scope, entry.Key, written)
			return domain.OutcomeFailure, written
		}
		written++
	}
	return domain.OutcomeSuccess, written
}

// loadEntries reads and de-duplicates the entries of pkg.
func loadEntries(ctx context.Context, repo domain.EntryRepository, pkg string) ([]domain.SettingEntry, error) {
	entries, err := repo.EntriesForPackage(ctx, pkg)
	if err != nil {
		return nil, fmt.Errorf("usecase: load entries for %s: %w", pkg, err)
	}
	return domain.Distinct(entries), nil
}

func resolveIntent(ctx context.Context, tag string, packages domain.PackageQuery, pkg string) *domain.LaunchIntent {
	if packages == nil {
		return nil
	}
	intent, err := packages.LaunchIntent(ctx, pkg)
	if err != nil {
		log.Printf("[%s] no launch intent for %s: %v", tag, pkg, err)
		return nil
	}
	return &intent
}

type runReport struct {
	useCase string
	source  eventbus.Source
	topic   eventbus.TopicDef[eventbus.ResultEvent]
	pkg     string
	outcome domain.Outcome
	intent  *domain.LaunchIntent
	writes  int
	elapsed time.Duration
}

func (d Deps) report(ctx context.Context, r runReport) {
	if d.Recorder != nil {
		d.Recorder.ObserveRun(r.useCase, r.outcome, r.writes, r.elapsed)
	}
	eventbus.PublishWithOpts(ctx, d.Bus, r.topic, r.source, eventbus.ResultEvent{
		UseCase:  r.useCase,
		Package:  r.pkg,
		Outcome:  r.outcome,
		Intent:   r.intent,
		Writes:   r.writes,
		Duration: r.elapsed,
	}, eventbus.WithCorrelationID(uuid.NewString()))
}

// ApplySettings writes the launch values of a package's enabled entries.
type ApplySettings struct {
	deps Deps
}

// NewApplySettings constructs the apply use case.
func NewApplySettings(deps Deps) *ApplySettings {
	return &ApplySettings{deps: deps}
}

// Apply runs the apply flow for pkg. On success the launch intent of pkg is
// attached when it resolves.
func (a *ApplySettings) Apply(ctx context.Context, pkg string) (domain.ApplyResult, error) {
	pkg = strings.TrimSpace(pkg)
	start := a.deps.clock().Now()

	outcome, writes, err := runWrites(ctx, "Apply", a.deps, pkg, launchValue)
	if err != nil {
		return domain.ApplyResult{}, err
	}

	result := domain.ApplyResult{Outcome: outcome}
	if outcome == domain.OutcomeSuccess {
		result.Intent = resolveIntent(ctx, "Apply", a.deps.Packages, pkg)
	}

	a.deps.report(ctx, runReport{
		useCase: UseCaseApply,
		source:  eventbus.SourceApply,
		topic:   eventbus.Results.Apply,
		pkg:     pkg,
		outcome: outcome,
		intent:  result.Intent,
		writes:  writes,
		elapsed: a.deps.clock().Since(start),
	})
	return result, nil
}

// RevertSettings writes the revert values of a package's enabled entries.
type RevertSettings struct {
	deps Deps
}

// NewRevertSettings constructs the revert use case.
func NewRevertSettings(deps Deps) *RevertSettings {
	return &RevertSettings{deps: deps}
}

// Revert runs the revert flow for pkg.
func (r *RevertSettings) Revert(ctx context.Context, pkg string) (domain.RevertResult, error) {
	pkg = strings.TrimSpace(pkg)
	start := r.deps.clock().Now()

	outcome, writes, err := runWrites(ctx, "Revert", r.deps, pkg, revertValue)
	if err != nil {
		return domain.RevertResult{}, err
	}

	r.deps.report(ctx, runReport{
		useCase: UseCaseRevert,
		source:  eventbus.SourceRevert,
		topic:   eventbus.Results.Revert,
		pkg:     pkg,
		outcome: outcome,
		writes:  writes,
		elapsed: r.deps.clock().Since(start),
	})
	return domain.RevertResult{Outcome: outcome}, nil
}

// runWrites is the flow shared by apply and revert.
func runWrites(ctx context.Context, tag string, deps Deps, pkg string, value valueSelector) (domain.Outcome, int, error) {
	entries, err := loadEntries(ctx, deps.Entries, pkg)
	if err != nil {
		return "", 0, err
	}
	if len(entries) == 0 {
		return domain.OutcomeEmptyEntrySet, 0, nil
	}
	enabled := domain.EnabledOnly(entries)
	if len(enabled) == 0 {
		return domain.OutcomeAllDisabled, 0, nil
	}

	outcome, writes := writeAll(ctx, tag, deps.Writer, enabled, value)
	log.Printf("[%s] %s: %s (%d/%d writes)", tag, pkg, outcome, writes, len(enabled))
	return outcome, writes, nil
}

// AutoLaunch applies a package's settings when the user enabled auto-launch.
type AutoLaunch struct {
	deps Deps
}

// NewAutoLaunch constructs the auto-launch use case.
func NewAutoLaunch(deps Deps) *AutoLaunch {
	return &AutoLaunch{deps: deps}
}

// Run evaluates the auto-launch gate for pkg. A disabled preference or a
// package with nothing to write yields OutcomeIgnored.
func (a *AutoLaunch) Run(ctx context.Context, pkg string) (domain.AutoLaunchResult, error) {
	pkg = strings.TrimSpace(pkg)
	start := a.deps.clock().Now()

	prefs, err := a.deps.Preferences.Preferences(ctx)
	if err != nil {
		return domain.AutoLaunchResult{}, fmt.Errorf("usecase: load preferences: %w", err)
	}

	result, writes, err := a.run(ctx, pkg, prefs)
	if err != nil {
		return domain.AutoLaunchResult{}, err
	}

	a.deps.report(ctx, runReport{
		useCase: UseCaseAutoLaunch,
		source:  eventbus.SourceAutoLaunch,
		topic:   eventbus.Results.AutoLaunch,
		pkg:     pkg,
		outcome: result.Outcome,
		intent:  result.Intent,
		writes:  writes,
		elapsed: a.deps.clock().Since(start),
	})
	return result, nil
}

func (a *AutoLaunch) run(ctx context.Context, pkg string, prefs domain.UserPreferences) (domain.AutoLaunchResult, int, error) {
	ignored := domain.AutoLaunchResult{Outcome: domain.OutcomeIgnored}
	if !prefs.UseAutoLaunch {
		return ignored, 0, nil
	}

	entries, err := loadEntries(ctx, a.deps.Entries, pkg)
	if err != nil {
		return domain.AutoLaunchResult{}, 0, err
	}
	enabled := domain.EnabledOnly(entries)
	if len(enabled) == 0 {
		return ignored, 0, nil
	}

	outcome, writes := writeAll(ctx, "AutoLaunch", a.deps.Writer, enabled, launchValue)
	log.Printf("[AutoLaunch] %s: %s (%d/%d writes)", pkg, outcome, writes, len(enabled))

	result := domain.AutoLaunchResult{Outcome: outcome}
	if outcome == domain.OutcomeSuccess {
		result.Intent = resolveIntent(ctx, "AutoLaunch", a.deps.Packages, pkg)
	}
	return result, writes, nil
}
