package eventbus

import (
	"time"

	"github.com/geto-app/geto/internal/domain"
)

// Topic identifies a logical channel on the bus.
type Topic string

// Known bus topics.
const (
	TopicEntriesChanged    Topic = "entries.changed"
	TopicResultsApply      Topic = "results.apply"
	TopicResultsRevert     Topic = "results.revert"
	TopicResultsAutoLaunch Topic = "results.autolaunch"
	TopicCleanupCompleted  Topic = "cleanup.completed"
)

// Source describes which component produced an event.
type Source string

const (
	SourceApply        Source = "apply"
	SourceRevert       Source = "revert"
	SourceAutoLaunch   Source = "auto_launch"
	SourceEntryService Source = "entry_service"
	SourceCleanup      Source = "cleanup"
	SourceServer       Source = "server"
	SourceCLI          Source = "cli"
	SourceUnknown      Source = "unknown"
)

// Envelope wraps every message published on the bus.
type Envelope struct {
	Topic         Topic
	Timestamp     time.Time
	Source        Source
	CorrelationID string
	Payload       any
}

// EntryAction names the mutation behind an EntriesChangedEvent.
type EntryAction string

const (
	EntryUpserted EntryAction = "upserted"
	EntryDeleted  EntryAction = "deleted"
	EntryToggled  EntryAction = "toggled"
	EntrySwept    EntryAction = "swept"
)

// EntriesChangedEvent notifies consumers that the entries of a package changed.
type EntriesChangedEvent struct {
	Package string
	EntryID int64
	Action  EntryAction
}

// ResultEvent carries the outcome of one use case invocation.
type ResultEvent struct {
	UseCase  string
	Package  string
	Outcome  domain.Outcome
	Intent   *domain.LaunchIntent
	Writes   int
	Duration time.Duration
}

// CleanupCompletedEvent is emitted after an orphan sweep.
type CleanupCompletedEvent struct {
	RemovedPackages []string
	RemovedEntries  int64
}

// ---------------------------------------------------------------------------
// Typed topic descriptors
// ---------------------------------------------------------------------------

// Entries groups entry topic descriptors.
var Entries = struct {
	Changed TopicDef[EntriesChangedEvent]
}{
	Changed: NewTopicDef[EntriesChangedEvent](TopicEntriesChanged),
}

// Results groups the per-use-case result descriptors.
var Results = struct {
	Apply      TopicDef[ResultEvent]
	Revert     TopicDef[ResultEvent]
	AutoLaunch TopicDef[ResultEvent]
}{
	Apply:      NewTopicDef[ResultEvent](TopicResultsApply),
	Revert:     NewTopicDef[ResultEvent](TopicResultsRevert),
	AutoLaunch: NewTopicDef[ResultEvent](TopicResultsAutoLaunch),
}

// Cleanup groups cleanup topic descriptors.
var Cleanup = struct {
	Completed TopicDef[CleanupCompletedEvent]
}{
	Completed: NewTopicDef[CleanupCompletedEvent](TopicCleanupCompleted),
}
