package session

// EventKind discriminates the progress stream the orchestrator emits.
type EventKind int

const (
	// EventLoginProgress is one account finishing its login attempt.
	EventLoginProgress EventKind = iota
	// EventBatchCompleted is one login chunk finishing.
	EventBatchCompleted
	// EventAllLoginsCompleted is the terminal login summary.
	EventAllLoginsCompleted
	// EventPhase is a booking state transition for one account.
	EventPhase
	// EventTicketingResult is the terminal outcome for one account.
	EventTicketingResult
)

// Event is one entry in the progress stream. Fields are populated per
// kind; no event is emitted without enough context to diagnose the
// account and phase it concerns.
type Event struct {
	Kind         EventKind
	AccountIndex int
	Username     string

	// EventPhase
	Phase string

	// EventLoginProgress / EventTicketingResult
	Success bool
	Reason  string

	// EventLoginProgress
	Completed int
	Total     int

	// EventBatchCompleted
	BatchIndex   int
	TotalBatches int

	// EventAllLoginsCompleted
	SuccessCount int
}

// Listener receives events as they happen. Called from session
// goroutines; implementations must be safe for concurrent use.
type Listener func(Event)
