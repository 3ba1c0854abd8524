package domain

// Status represents where a payment request is in its settlement lifecycle.
type Status string

const (
	StatusNew                 Status = "NEW"
	StatusSent                Status = "SENT"
	StatusAccepted            Status = "ACCEPTED"
	StatusAcceptedWithWarning Status = "ACCEPTED_WITH_WARNING"
	StatusRejected            Status = "REJECTED"
	StatusFailed              Status = "FAILED"
)

// Severity codes returned by the settlement ledger in a kvittering.
const (
	SeverityOK      = "00"
	SeverityWarning = "04"
	SeverityReject  = "08"
	SeverityFailure = "12"
)

var transitions = map[Status][]Status{
	StatusNew:  {StatusSent},
	StatusSent: {StatusAccepted, StatusAcceptedWithWarning, StatusRejected, StatusFailed},
}

// CanTransitionTo validates a move from s to target against the transition table.
//
// Valid transitions are:
//   - New → Sent
//   - Sent → Accepted, AcceptedWithWarning, Rejected, Failed
//
// Terminal statuses have no outgoing transitions. A fresh attempt for the same
// decision is created by an explicit replay, never by moving a terminal request back.
func (s Status) CanTransitionTo(target Status) error {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return nil
		}
	}
	return NewInvalidTransitionError(s, target)
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusAcceptedWithWarning, StatusRejected, StatusFailed:
		return true
	default:
		return false
	}
}

// IsAccepted reports whether the ledger took the order into its schedule.
func (s Status) IsAccepted() bool {
	return s == StatusAccepted || s == StatusAcceptedWithWarning
}

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusSent, StatusAccepted, StatusAcceptedWithWarning, StatusRejected, StatusFailed:
		return true
	}
	return false
}

// StatusForSeverity maps a kvittering severity code to the terminal status it implies.
// Unknown codes map to Failed and known is false; the legacy protocol does not
// guarantee an exhaustive code set.
func StatusForSeverity(code string) (status Status, known bool) {
	switch code {
	case SeverityOK:
		return StatusAccepted, true
	case SeverityWarning:
		return StatusAcceptedWithWarning, true
	case SeverityReject:
		return StatusRejected, true
	case SeverityFailure:
		return StatusFailed, true
	default:
		return StatusFailed, false
	}
}
