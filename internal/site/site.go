// Package site describes the per-site shape of the booking flow: the
// selectors, in-page hooks and step ordering that differ between
// ticketing sites. The booking state machine is parameterized over a
// Profile so each site is data plus a few strategy switches instead of
// a forked flow.
package site

import "fmt"

// PickStrategy selects how a ranked seat list is consumed.
type PickStrategy int

const (
	// PickRanked walks seats strictly nearest-first. Suits fine
	// seat maps where the nearest free seat is rarely contested.
	PickRanked PickStrategy = iota
	// PickPercentile takes one random seat from the top percentile
	// of the ranking, spreading contention across concurrent buyers.
	PickPercentile
)

// LoginFields are the credential form selectors.
type LoginFields struct {
	ID       string
	Password string
	Submit   string
}

// Profile is one site variant. Immutable after registration; selected
// once per run.
type Profile struct {
	ID       string
	Name     string
	LoginURL string
	Login    LoginFields
	// LoginHook, when set, submits the login form through the page's
	// own script instead of clicking Submit; used by sites whose
	// button handler is a no-op without it.
	LoginHook string
	// LoginWaitsForNav reports whether login completes with a full
	// page navigation that must be awaited.
	LoginWaitsForNav bool

	// OpenSaleHook is evaluated on the event page before the booking
	// popup is opened; empty when the anchor alone suffices.
	OpenSaleHook string
	// SaleAnchor is the element whose click opens the booking popup.
	SaleAnchor string

	// TimeLabel formats a normalized HH:mm time the way the site's
	// timeinfo attributes phrase it.
	TimeLabel func(hh, mm string) string
	// SlotConfirm is clicked after date and time are chosen.
	SlotConfirm string

	// SeatFrame is the name of the iframe hosting the seat map.
	SeatFrame string
	// SeatPick chooses the seat consumption strategy.
	SeatPick PickStrategy
	// GradeAttr formats the grade filter into the attribute value the
	// seat nodes carry; nil when the site has no grade attribute.
	GradeAttr func(grade string) string

	// DeliveryWaits are selectors that must be populated before the
	// delivery step can be confirmed.
	DeliveryWaits []string
	// FillContact fills placeholder orderer phone fields before the
	// delivery hook; some flows refuse to proceed with them empty.
	FillContact bool
	// PaymentWaits gate the payment-method step.
	PaymentWaits []string
	// AgreeSelectors are the payment radio and agreement checkboxes
	// clicked in-page right before final submission.
	AgreeSelectors []string

	// ChallengeImage is the challenge <img> selector; empty when the
	// flow has no challenge step.
	ChallengeImage string
	// ChallengeInput receives the recognized code.
	ChallengeInput string
	// ChallengeRefreshHook requests a fresh challenge image.
	ChallengeRefreshHook string
}

var registry = map[string]Profile{}

func register(p Profile) {
	if _, dup := registry[p.ID]; dup {
		panic(fmt.Sprintf("site: duplicate profile %q", p.ID))
	}
	registry[p.ID] = p
}

// Lookup returns the profile registered under id.
func Lookup(id string) (Profile, error) {
	p, ok := registry[id]
	if !ok {
		return Profile{}, fmt.Errorf("site: unknown site %q", id)
	}
	return p, nil
}

// All returns every registered profile, for the sites listing.
func All() []Profile {
	out := make([]Profile, 0, len(registry))
	for _, p := range registry {
		out = append(out, p)
	}
	return out
}
