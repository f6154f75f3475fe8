// Package booking walks one session through the purchase flow:
// navigation, slot selection, geometry-ranked seat acquisition with
// block fallback, ancillary confirmation steps, the image challenge
// and final submission.
package booking

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"seatrush/internal/captcha"
	"seatrush/internal/clock"
	"seatrush/internal/driver"
	"seatrush/internal/geometry"
	"seatrush/internal/site"
)

// Hooks shared by both site variants; the pages ship the same booking
// script family.
const (
	promotionWait   = "#spanPromotionSeat input[value]"
	promotionHook   = "fdc_PromotionEnd()"
	deliveryHook    = "fdc_DeliveryEnd()"
	finalSubmitHook = "fdc_PrePayCheck()"
)

// Tunables are the timing and retry knobs of the flow. Zero values
// fall back to the defaults below.
type Tunables struct {
	// WaitTimeout bounds every selector wait.
	WaitTimeout time.Duration
	// PopupTimeout bounds waiting for the booking popup to open.
	PopupTimeout time.Duration
	// SettleWindow is how long a selection must survive without a
	// rejection dialog before it counts as confirmed.
	SettleWindow time.Duration
	// SettlePoll is the sampling slice within the settle window.
	SettlePoll time.Duration
	// RetryBackoff separates seat passes in continuous-retry mode.
	RetryBackoff time.Duration
	// PickPercentile is the top slice of the seat ranking the
	// percentile strategy draws from.
	PickPercentile float64
	// ChallengeAttempts bounds the challenge solve loop.
	ChallengeAttempts int
	// ChallengeRefreshDelay is the pause after requesting a fresh
	// challenge image before recapturing it.
	ChallengeRefreshDelay time.Duration
}

func (t Tunables) withDefaults() Tunables {
	if t.WaitTimeout == 0 {
		t.WaitTimeout = 10 * time.Second
	}
	if t.PopupTimeout == 0 {
		t.PopupTimeout = 15 * time.Second
	}
	if t.SettleWindow == 0 {
		t.SettleWindow = 500 * time.Millisecond
	}
	if t.SettlePoll == 0 {
		t.SettlePoll = 100 * time.Millisecond
	}
	if t.RetryBackoff == 0 {
		t.RetryBackoff = time.Second
	}
	if t.PickPercentile == 0 {
		t.PickPercentile = 0.08
	}
	if t.ChallengeAttempts == 0 {
		t.ChallengeAttempts = 15
	}
	if t.ChallengeRefreshDelay == 0 {
		t.ChallengeRefreshDelay = 50 * time.Millisecond
	}
	return t
}

// spatial is the wire shape of a block or seat candidate coming back
// from in-page enumeration.
type spatial struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Engine drives the state machine for one session. Exactly one Engine
// is live per session; it owns the popup page it opens and shares
// nothing with sibling sessions.
type Engine struct {
	Page    driver.Driver
	Profile site.Profile
	Solver  *captcha.Solver
	Cfg     Tunables
	Clock   clock.Clock
	RNG     *rand.Rand
	Log     *zap.Logger
	// OnTransition observes every state change; used for the
	// per-account progress stream.
	OnTransition func(State)

	mu        sync.Mutex
	rejection string
	rejected  bool
}

// Run executes the full flow once. The error is nil only when final
// submission survived its settle window.
func (e *Engine) Run(ctx context.Context, params TargetParams) (err error) {
	cfg := e.Cfg.withDefaults()
	log := e.logger()
	clk := e.clockOrReal()
	defer func() {
		if err != nil {
			e.setState(StateFailed)
		}
	}()

	date, err := NormalizeDate(params.Date)
	if err != nil {
		return err
	}
	hh, mm, err := NormalizeTime(params.Time)
	if err != nil {
		return err
	}

	e.setState(StateNavigatingToSale)
	popup, err := e.openSale(ctx, cfg, params.ResourceURL)
	if err != nil {
		return err
	}
	defer popup.Close()

	e.setState(StateSelectingSlot)
	if err := e.selectSlot(ctx, popup, cfg, date, hh, mm); err != nil {
		return err
	}

	if err := e.seatStage(ctx, popup, cfg, clk, params); err != nil {
		return err
	}

	e.setState(StateFillingAncillary)
	if err := e.fillAncillary(ctx, popup, cfg); err != nil {
		return err
	}

	e.setState(StateResolvingChallenge)
	if err := e.resolveChallenge(ctx, popup, cfg, clk); err != nil {
		return err
	}

	e.setState(StateSubmitting)
	if err := e.submit(ctx, popup, cfg, clk); err != nil {
		return err
	}

	e.setState(StateDone)
	log.Info("booking flow complete")
	return nil
}

// openSale loads the event page and captures the booking popup. Some
// variants must poke the page's own sale hook before the anchor
// appears.
func (e *Engine) openSale(ctx context.Context, cfg Tunables, url string) (driver.Driver, error) {
	if err := e.Page.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("open sale page: %w", err)
	}
	if e.Profile.OpenSaleHook != "" {
		if err := e.Page.Evaluate(ctx, e.Profile.OpenSaleHook, nil); err != nil {
			return nil, fmt.Errorf("sale hook: %w", err)
		}
	}
	if err := e.Page.WaitVisible(ctx, e.Profile.SaleAnchor, cfg.WaitTimeout); err != nil {
		return nil, fmt.Errorf("sale anchor: %w", err)
	}

	popup, err := e.Page.OpenPopupOnClick(ctx, e.Profile.SaleAnchor, cfg.PopupTimeout)
	if err != nil {
		return nil, err
	}
	// Shrinking the popup viewport keeps rendering cheap; failures
	// here are cosmetic.
	if err := popup.SetViewport(ctx, 0, 0); err != nil {
		e.logger().Debug("shrink popup viewport", zap.Error(err))
	}
	popup.OnDialog(e.noteRejection)
	return popup, nil
}

func (e *Engine) selectSlot(ctx context.Context, popup driver.Driver, cfg Tunables, date, hh, mm string) error {
	dateSel := fmt.Sprintf(`[id=%q]`, date)
	if err := popup.WaitVisible(ctx, dateSel, cfg.WaitTimeout); err != nil {
		return fmt.Errorf("%w: date %s never appeared", ErrSlotNotFound, date)
	}
	if err := popup.Click(ctx, dateSel); err != nil {
		return fmt.Errorf("select date: %w", err)
	}

	label := e.Profile.TimeLabel(hh, mm)
	timeSel := fmt.Sprintf(`[timeinfo=%q]`, label)
	if err := popup.WaitVisible(ctx, timeSel, cfg.WaitTimeout); err != nil {
		return fmt.Errorf("%w: time %s never appeared", ErrSlotNotFound, label)
	}
	if err := popup.Click(ctx, timeSel); err != nil {
		return fmt.Errorf("select time: %w", err)
	}
	if err := popup.Click(ctx, e.Profile.SlotConfirm); err != nil {
		return fmt.Errorf("confirm slot: %w", err)
	}
	return nil
}

// seatStage runs seat passes until one confirms. Outside continuous
// mode a single exhausted pass is the end; inside it, the map is
// refreshed and retried until the window deadline.
func (e *Engine) seatStage(ctx context.Context, popup driver.Driver, cfg Tunables, clk clock.Clock, params TargetParams) error {
	frame := e.Profile.SeatFrame
	if err := popup.WaitFunc(ctx, frameReadyExpr(frame), cfg.WaitTimeout); err != nil {
		return fmt.Errorf("seat frame not ready: %w", err)
	}

	for {
		err := e.seatPass(ctx, popup, cfg, clk, params)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNoSeatAvailable) {
			return err
		}
		if params.ContinuousUntil.IsZero() || !clk.Now().Before(params.ContinuousUntil) {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		e.logger().Debug("seat pass exhausted, refreshing map")
		if rerr := popup.Evaluate(ctx, refreshSeatMapJS(frame), nil); rerr != nil {
			e.logger().Debug("seat map refresh failed", zap.Error(rerr))
		}
		clk.Sleep(cfg.RetryBackoff)
	}
}

// seatPass walks blocks nearest-first, attempting seats inside each
// until one survives the settle window.
func (e *Engine) seatPass(ctx context.Context, popup driver.Driver, cfg Tunables, clk clock.Clock, params TargetParams) error {
	e.setState(StateSelectingZoneOrBlock)
	frame := e.Profile.SeatFrame

	var blocks []spatial
	if err := popup.Evaluate(ctx, enumerateBlocksJS(frame), &blocks); err != nil {
		return fmt.Errorf("enumerate blocks: %w", err)
	}
	if len(blocks) == 0 {
		return fmt.Errorf("%w: no block with remaining capacity", ErrNoSeatAvailable)
	}

	ranked, err := rankSpatial(blocks)
	if err != nil {
		return fmt.Errorf("rank blocks: %w", err)
	}

	for _, block := range ranked {
		e.setState(StateSelectingSeat)
		if block.ID != "-1" {
			if err := popup.Evaluate(ctx, changeBlockJS(frame, block.ID), nil); err != nil {
				e.logger().Debug("block switch failed", zap.String("block", block.ID), zap.Error(err))
				continue
			}
			// Seat divs re-render after the switch; a miss just means
			// an empty block.
			_ = popup.WaitFunc(ctx, seatNodesExpr(frame), time.Second)
		}

		confirmed, err := e.trySeatsInBlock(ctx, popup, cfg, clk, params)
		if err != nil {
			return err
		}
		if confirmed {
			e.setState(StateSeatConfirmed)
			return nil
		}
		e.setState(StateNoSeatAvailable)
	}
	return fmt.Errorf("%w: all ranked blocks exhausted", ErrNoSeatAvailable)
}

func seatNodesExpr(frameName string) string {
	return fmt.Sprintf(`(() => {
		const frame = document.querySelector('iframe[name=%q]');
		return !!(frame && frame.contentDocument && frame.contentDocument.querySelector('div[name="tk"]'));
	})()`, frameName)
}

func (e *Engine) trySeatsInBlock(ctx context.Context, popup driver.Driver, cfg Tunables, clk clock.Clock, params TargetParams) (bool, error) {
	gradeAttr := ""
	if params.Grade != "" && e.Profile.GradeAttr != nil {
		gradeAttr = e.Profile.GradeAttr(params.Grade)
	}

	var seats []spatial
	if err := popup.Evaluate(ctx, enumerateSeatsJS(e.Profile.SeatFrame, gradeAttr, params.Floor), &seats); err != nil {
		return false, fmt.Errorf("enumerate seats: %w", err)
	}
	if len(seats) == 0 {
		return false, nil
	}

	ranked, err := rankSpatial(seats)
	if err != nil {
		return false, err
	}

	if e.Profile.SeatPick == site.PickPercentile {
		pick, err := geometry.PickFromTopPercentile(ranked, cfg.PickPercentile, e.rng())
		if err != nil {
			return false, err
		}
		return e.attemptSeat(ctx, popup, cfg, clk, pick.ID)
	}

	for _, seat := range ranked {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		confirmed, err := e.attemptSeat(ctx, popup, cfg, clk, seat.ID)
		if err != nil {
			return false, err
		}
		if confirmed {
			return true, nil
		}
	}
	return false, nil
}

// attemptSeat fires the page's selection callback, then samples the
// settle window. The selection counts only if no rejection dialog
// showed up across the whole window; anything else is a clean miss.
func (e *Engine) attemptSeat(ctx context.Context, popup driver.Driver, cfg Tunables, clk clock.Clock, seatID string) (bool, error) {
	e.clearRejection()

	var clicked bool
	if err := popup.Evaluate(ctx, selectSeatJS(e.Profile.SeatFrame, seatID), &clicked); err != nil {
		e.logger().Debug("seat click failed", zap.String("seat", seatID), zap.Error(err))
		return false, nil
	}
	if !clicked {
		return false, nil
	}

	slices := int(cfg.SettleWindow / cfg.SettlePoll)
	if slices < 1 {
		slices = 1
	}
	for i := 0; i < slices; i++ {
		clk.Sleep(cfg.SettlePoll)
		if msg, rejected := e.takeRejection(); rejected {
			e.logger().Debug("seat rejected", zap.String("seat", seatID), zap.String("dialog", msg))
			return false, nil
		}
	}
	return true, nil
}

func (e *Engine) fillAncillary(ctx context.Context, popup driver.Driver, cfg Tunables) error {
	if err := popup.WaitVisible(ctx, promotionWait, cfg.WaitTimeout); err != nil {
		return fmt.Errorf("%w: promotion fields: %v", ErrAncillaryStepTimeout, err)
	}
	if err := popup.Evaluate(ctx, promotionHook, nil); err != nil {
		return fmt.Errorf("confirm promotion: %w", err)
	}

	for _, sel := range e.Profile.DeliveryWaits {
		if err := popup.WaitVisible(ctx, sel, cfg.WaitTimeout); err != nil {
			return fmt.Errorf("%w: delivery field %s: %v", ErrAncillaryStepTimeout, sel, err)
		}
	}
	if e.Profile.FillContact {
		if err := popup.Evaluate(ctx, fillContactJS(), nil); err != nil {
			return fmt.Errorf("fill contact placeholders: %w", err)
		}
	}
	if err := popup.Evaluate(ctx, deliveryHook, nil); err != nil {
		return fmt.Errorf("confirm delivery: %w", err)
	}

	for _, sel := range e.Profile.PaymentWaits {
		if err := popup.WaitVisible(ctx, sel, cfg.WaitTimeout); err != nil {
			return fmt.Errorf("%w: payment field %s: %v", ErrAncillaryStepTimeout, sel, err)
		}
	}
	return nil
}

// resolveChallenge solves the digit challenge when the flow has one.
// Solver exhaustion is terminal for the session.
func (e *Engine) resolveChallenge(ctx context.Context, popup driver.Driver, cfg Tunables, clk clock.Clock) error {
	img := e.Profile.ChallengeImage
	if img == "" {
		return nil
	}

	var present bool
	presentExpr := fmt.Sprintf(`document.querySelector(%q) !== null`, img)
	if err := popup.Evaluate(ctx, presentExpr, &present); err != nil {
		return fmt.Errorf("probe challenge: %w", err)
	}
	if !present {
		return nil
	}

	capture := func(ctx context.Context) ([]byte, error) {
		if err := popup.WaitFunc(ctx, imageLoadedExpr(img), cfg.WaitTimeout); err != nil {
			return nil, err
		}
		return popup.CaptureElement(ctx, img)
	}
	refresh := func(ctx context.Context) error {
		if e.Profile.ChallengeRefreshHook == "" {
			return nil
		}
		if err := popup.Evaluate(ctx, e.Profile.ChallengeRefreshHook, nil); err != nil {
			return err
		}
		clk.Sleep(cfg.ChallengeRefreshDelay)
		return nil
	}

	code, err := e.Solver.Solve(ctx, capture, refresh, cfg.ChallengeAttempts)
	if err != nil {
		return fmt.Errorf("resolve challenge: %w", err)
	}

	var filled bool
	if err := popup.Evaluate(ctx, setValueJS(e.Profile.ChallengeInput, code), &filled); err != nil {
		return fmt.Errorf("fill challenge code: %w", err)
	}
	if !filled {
		return fmt.Errorf("challenge input %s missing", e.Profile.ChallengeInput)
	}
	return nil
}

// submit clicks the payment method and agreements, fires the final
// hook and watches the settle window for a same-step rejection. It
// does not wait for downstream payment-gateway confirmation.
func (e *Engine) submit(ctx context.Context, popup driver.Driver, cfg Tunables, clk clock.Clock) error {
	e.clearRejection()
	if err := popup.Evaluate(ctx, clickAllJS(e.Profile.AgreeSelectors), nil); err != nil {
		return fmt.Errorf("agreements: %w", err)
	}
	if err := popup.Evaluate(ctx, finalSubmitHook, nil); err != nil {
		return fmt.Errorf("final submit: %w", err)
	}

	slices := int(cfg.SettleWindow / cfg.SettlePoll)
	if slices < 1 {
		slices = 1
	}
	for i := 0; i < slices; i++ {
		clk.Sleep(cfg.SettlePoll)
		if msg, rejected := e.takeRejection(); rejected {
			return fmt.Errorf("%w: %s", ErrSubmissionRejected, msg)
		}
	}
	return nil
}

func rankSpatial(in []spatial) ([]geometry.Ranked, error) {
	candidates := make([]geometry.Candidate, len(in))
	for i, s := range in {
		candidates[i] = geometry.Candidate{ID: s.ID, CenterX: s.X, CenterY: s.Y}
	}
	anchor, err := geometry.Centroid(candidates)
	if err != nil {
		return nil, err
	}
	return geometry.Rank(candidates, anchor)
}

func (e *Engine) setState(s State) {
	if e.OnTransition != nil {
		e.OnTransition(s)
	}
}

func (e *Engine) noteRejection(message string) {
	e.mu.Lock()
	e.rejection = message
	e.rejected = true
	e.mu.Unlock()
}

func (e *Engine) clearRejection() {
	e.mu.Lock()
	e.rejection = ""
	e.rejected = false
	e.mu.Unlock()
}

func (e *Engine) takeRejection() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rejection, e.rejected
}

func (e *Engine) logger() *zap.Logger {
	if e.Log != nil {
		return e.Log
	}
	return zap.NewNop()
}

func (e *Engine) clockOrReal() clock.Clock {
	if e.Clock != nil {
		return e.Clock
	}
	return clock.Real()
}

func (e *Engine) rng() *rand.Rand {
	if e.RNG == nil {
		e.RNG = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return e.RNG
}
