package checkout

// Outcome classifies a single payment status observation. It is derived per
// check and never persisted.
type Outcome uint8

const (
	OutcomePending Outcome = iota
	OutcomeSuccess
	OutcomeFailed
	OutcomeCancelled
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the outcome ends the reconciliation.
func (o Outcome) Terminal() bool {
	return o == OutcomeSuccess || o == OutcomeFailed || o == OutcomeCancelled
}

// Provider status codes observed on the payment backend's status endpoint.
const (
	statusConfirmed = "0000"
	statusDeclined  = "2001"
	statusExpired   = "2002"
)

// ClassifyStatusCode maps a payment backend status code to an Outcome.
// "0000" is confirmed, "2001" and "2002" are terminal failures
// (declined/expired), anything else means the payment is still pending.
func ClassifyStatusCode(code string) Outcome {
	switch code {
	case statusConfirmed:
		return OutcomeSuccess
	case statusDeclined, statusExpired:
		return OutcomeFailed
	default:
		return OutcomePending
	}
}
