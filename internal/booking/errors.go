package booking

import "errors"

var (
	// ErrSlotNotFound means no date or time node matching the target
	// appeared within the bounded wait.
	ErrSlotNotFound = errors.New("booking: slot not found")
	// ErrNoSeatAvailable means every candidate seat in every ranked
	// block was rejected or taken. Recoverable: it drives the retry
	// loop, not session failure.
	ErrNoSeatAvailable = errors.New("booking: no seat available")
	// ErrAncillaryStepTimeout means a required promotion, delivery or
	// payment field never appeared.
	ErrAncillaryStepTimeout = errors.New("booking: ancillary step timeout")
	// ErrSubmissionRejected means the site raised a rejection dialog
	// inside the settle window after final submission.
	ErrSubmissionRejected = errors.New("booking: submission rejected")
)

// State is the booking state machine's position. Transitions are
// reported through Engine.OnTransition for progress events.
type State int

const (
	StateInit State = iota
	StateNavigatingToSale
	StateSelectingSlot
	StateSelectingZoneOrBlock
	StateSelectingSeat
	StateSeatConfirmed
	StateNoSeatAvailable
	StateFillingAncillary
	StateResolvingChallenge
	StateSubmitting
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateInit:                 "init",
	StateNavigatingToSale:     "navigating-to-sale",
	StateSelectingSlot:        "selecting-slot",
	StateSelectingZoneOrBlock: "selecting-zone-or-block",
	StateSelectingSeat:        "selecting-seat",
	StateSeatConfirmed:        "seat-confirmed",
	StateNoSeatAvailable:      "no-seat-available",
	StateFillingAncillary:     "filling-ancillary",
	StateResolvingChallenge:   "resolving-challenge",
	StateSubmitting:           "submitting",
	StateDone:                 "done",
	StateFailed:               "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
