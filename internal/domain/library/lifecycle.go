package library

import "fmt"

type Action string

const (
	ActionEdit       Action = "edit"
	ActionApprove    Action = "approve"
	ActionNewVersion Action = "new_version"
	ActionInactivate Action = "inactivate"
	ActionReactivate Action = "reactivate"
)

// Stable rule messages; clients match on them.
const (
	MsgNotDraft          = "The object isn't in draft status."
	MsgNewVersionOnFinal = "New draft version can be created only for FINAL versions."
	MsgInactivateFinal   = "Only FINAL versions can be retired."
	MsgReactivateRetired = "Only RETIRED versions can be reactivated."
	MsgNoOpenVersion     = "The object has no current version."
)

// RuleViolation is a business rule failure with a stable, matchable message.
type RuleViolation struct {
	Msg string
}

func (e *RuleViolation) Error() string { return e.Msg }

func Violation(format string, args ...any) error {
	if len(args) == 0 {
		return &RuleViolation{Msg: format}
	}
	return &RuleViolation{Msg: fmt.Sprintf(format, args...)}
}

// PossibleActions lists the legal next transitions for a status.
func PossibleActions(s Status) []Action {
	switch s {
	case StatusDraft:
		return []Action{ActionApprove, ActionEdit}
	case StatusFinal:
		return []Action{ActionInactivate, ActionNewVersion}
	case StatusRetired:
		return []Action{ActionReactivate}
	default:
		return nil
	}
}

// Transition is the outcome of applying an action to the currently open edge.
type Transition struct {
	Action  Action
	From    Status
	To      Status
	Version Version
	// ContentAllowed is true when the action may carry a new content candidate.
	ContentAllowed bool
}

// Plan validates action against the current open edge and computes the next
// status and version.
func Plan(action Action, current VersionEdge) (Transition, error) {
	t := Transition{Action: action, From: current.Status}
	switch action {
	case ActionEdit:
		if current.Status != StatusDraft {
			return t, Violation(MsgNotDraft)
		}
		t.To, t.Version, t.ContentAllowed = StatusDraft, current.Version.NextMinor(), true
	case ActionApprove:
		if current.Status != StatusDraft {
			return t, Violation(MsgNotDraft)
		}
		t.To, t.Version = StatusFinal, current.Version.NextMajor()
	case ActionNewVersion:
		if current.Status != StatusFinal {
			return t, Violation(MsgNewVersionOnFinal)
		}
		t.To, t.Version, t.ContentAllowed = StatusDraft, current.Version.NextMinor(), true
	case ActionInactivate:
		if current.Status != StatusFinal {
			return t, Violation(MsgInactivateFinal)
		}
		t.To, t.Version = StatusRetired, current.Version
	case ActionReactivate:
		if current.Status != StatusRetired {
			return t, Violation(MsgReactivateRetired)
		}
		t.To, t.Version = StatusFinal, current.Version
	default:
		return t, Violation("Unknown action %q.", string(action))
	}
	return t, nil
}
