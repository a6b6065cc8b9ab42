package domain

// Outcome is the discriminated result of an apply, revert or auto-launch run.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeFailure       Outcome = "failure"
	OutcomeNoPermission  Outcome = "no_permission"
	OutcomeInvalidValue  Outcome = "invalid_value"
	OutcomeEmptyEntrySet Outcome = "empty_entry_set"
	OutcomeAllDisabled   Outcome = "all_disabled"
	// OutcomeIgnored is only produced by auto-launch.
	OutcomeIgnored Outcome = "ignored"
)

func (o Outcome) String() string {
	return string(o)
}

// Message returns the text shown to the user for the outcome. Ignored
// outcomes have no message.
func (o Outcome) Message() string {
	switch o {
	case OutcomeSuccess:
		return "Settings applied successfully"
	case OutcomeFailure:
		return "Failed to write settings"
	case OutcomeNoPermission:
		return "Permission required to write secure settings"
	case OutcomeInvalidValue:
		return "Invalid values in one or more settings"
	case OutcomeEmptyEntrySet:
		return "No settings configured for this app"
	case OutcomeAllDisabled:
		return "All settings for this app are disabled"
	default:
		return ""
	}
}

// LaunchIntent identifies the launcher activity of a package.
type LaunchIntent struct {
	Package   string `json:"package"`
	Component string `json:"component"`
}

// ApplyResult is returned by the apply use case.
type ApplyResult struct {
	Outcome Outcome       `json:"outcome"`
	Intent  *LaunchIntent `json:"intent,omitempty"`
}

// RevertResult is returned by the revert use case.
type RevertResult struct {
	Outcome Outcome `json:"outcome"`
}

// AutoLaunchResult is returned by the auto-launch use case.
type AutoLaunchResult struct {
	Outcome Outcome       `json:"outcome"`
	Intent  *LaunchIntent `json:"intent,omitempty"`
}

// Message returns the revert-specific text for a successful revert and the
// shared outcome text otherwise.
func (r RevertResult) Message() string {
	if r.Outcome == OutcomeSuccess {
		return "Settings reverted successfully"
	}
	return r.Outcome.Message()
}
