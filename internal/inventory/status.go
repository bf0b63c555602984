package inventory

// Status is the lifecycle state of a source document.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusWaiting   Status = "waiting"
	StatusReady     Status = "ready"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
)

// PendingStatuses are counted as outstanding work on the dashboard.
var PendingStatuses = []Status{StatusDraft, StatusWaiting}

// manualTransitions lists the moves SetStatus accepts. done is only reachable
// through Validate.
var manualTransitions = map[Status][]Status{
	StatusDraft:   {StatusWaiting, StatusCancelled},
	StatusWaiting: {StatusReady, StatusCancelled},
	StatusReady:   {StatusCancelled},
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusWaiting, StatusReady, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus converts raw input into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", &ValidationError{Field: "status", Reason: "unknown status " + raw}
	}
	return s, nil
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusCancelled
}

// CanEdit reports whether lines and header may change.
func (s Status) CanEdit() bool {
	return s == StatusDraft
}

// CanTransition reports whether SetStatus may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range manualTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanValidate reports whether Validate may run from s. When requireReady is
// set only ready documents qualify.
func (s Status) CanValidate(requireReady bool) bool {
	if requireReady {
		return s == StatusReady
	}
	return s == StatusDraft || s == StatusWaiting || s == StatusReady
}
