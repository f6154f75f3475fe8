package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"strings"
	"testing"
	"time"

	"seatrush/internal/captcha"
	"seatrush/internal/clock"
	"seatrush/internal/driver"
	"seatrush/internal/site"
)

// fakePage scripts the in-page world the engine talks to. Evaluate
// calls dispatch on distinctive substrings of the built JavaScript.
type fakePage struct {
	t *testing.T

	// missing selectors fail their WaitVisible.
	missing map[string]bool
	// evaluate handles an expression and returns the value to decode
	// into out, or an error.
	evaluate func(expr string) (any, error)
	// popup is handed out by OpenPopupOnClick.
	popup *fakePage
	// captureBytes backs CaptureElement.
	captureBytes []byte

	handler driver.DialogHandler
	clicks  []string
	navs    []string
	closed  bool
}

var _ driver.Driver = (*fakePage)(nil)

func (f *fakePage) Navigate(_ context.Context, url string) error {
	f.navs = append(f.navs, url)
	return nil
}

func (f *fakePage) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	if f.missing[selector] {
		return fmt.Errorf("%w: %s", driver.ErrNotFound, selector)
	}
	return nil
}

func (f *fakePage) WaitFunc(context.Context, string, time.Duration) error { return nil }

func (f *fakePage) Click(_ context.Context, selector string) error {
	f.clicks = append(f.clicks, selector)
	return nil
}

func (f *fakePage) Type(context.Context, string, string) error { return nil }

func (f *fakePage) Evaluate(_ context.Context, expr string, out any) error {
	if f.evaluate == nil {
		return nil
	}
	v, err := f.evaluate(expr)
	if err != nil {
		return err
	}
	if out == nil || v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (f *fakePage) CaptureElement(context.Context, string) ([]byte, error) {
	return f.captureBytes, nil
}

func (f *fakePage) OnDialog(h driver.DialogHandler) { f.handler = h }

func (f *fakePage) CurrentURL(context.Context) (string, error) { return "about:blank", nil }

func (f *fakePage) SetViewport(context.Context, int, int) error { return nil }

func (f *fakePage) OpenPopupOnClick(_ context.Context, selector string, _ time.Duration) (driver.Driver, error) {
	f.clicks = append(f.clicks, selector)
	if f.popup == nil {
		return nil, errors.New("no popup scripted")
	}
	return f.popup, nil
}

func (f *fakePage) Close() error {
	f.closed = true
	return nil
}

func testProfile() site.Profile {
	return site.Profile{
		ID:          "testsite",
		SaleAnchor:  ".sale a",
		TimeLabel:   func(hh, mm string) string { return hh + ":" + mm },
		SlotConfirm: "#btnSeatSelect",
		SeatFrame:   "ifrmSeatFrame",
		SeatPick:    site.PickRanked,
		GradeAttr:   func(g string) string { return g + "석" },
		DeliveryWaits: []string{
			"#rdoDeliveryBase[value]",
		},
		PaymentWaits:         []string{"#rdoPays2"},
		AgreeSelectors:       []string{"#rdoPays2", "#cbxUserInfoAgree"},
		ChallengeImage:       "#captchaImg",
		ChallengeInput:       "#captchaText",
		ChallengeRefreshHook: "initCaptcha()",
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 6, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			if x%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 20})
			} else {
				img.SetGray(x, y, color.Gray{Y: 230})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fixedRecognizer struct{ text string }

func (r fixedRecognizer) Recognize([]byte) (string, error) { return r.text, nil }

// scenario wires a two-block venue: the nearer block has no free
// seats, the farther block has two, and the nearest of those gets a
// rejection dialog during its settle window.
type scenario struct {
	popup        *fakePage
	currentBlock string
	blockOrder   []string
	seatAttempts []string
	rejectSeats  map[string]bool
	challenge    bool
	filledCode   string
	hooks        []string
}

func newScenario(t *testing.T) (*fakePage, *scenario) {
	s := &scenario{rejectSeats: map[string]bool{"s-near": true}}
	popup := &fakePage{t: t, captureBytes: pngBytes(t)}
	s.popup = popup

	popup.evaluate = func(expr string) (any, error) {
		switch {
		case strings.Contains(expr, "map[name="):
			// Block enumeration: "b-near" closer to the stage anchor
			// than "b-far".
			return []spatial{
				{ID: "b-far", X: 50, Y: 40},
				{ID: "b-near", X: 10, Y: 5},
			}, nil
		case strings.Contains(expr, "ChangeBlock"):
			for _, id := range []string{"b-near", "b-far"} {
				if strings.Contains(expr, id) {
					s.currentBlock = id
					s.blockOrder = append(s.blockOrder, id)
				}
			}
			return true, nil
		case strings.Contains(expr, `div[name="tk"]`) && strings.Contains(expr, "seat.title"):
			if s.currentBlock == "b-far" {
				return []spatial{
					{ID: "s-near", X: 10, Y: 0},
					{ID: "s-next", X: 12, Y: 5},
				}, nil
			}
			return []spatial{}, nil
		case strings.Contains(expr, "ChoiceEnd"):
			for _, id := range []string{"s-near", "s-next"} {
				if strings.Contains(expr, id) {
					s.seatAttempts = append(s.seatAttempts, id)
					if s.rejectSeats[id] && popup.handler != nil {
						popup.handler("already taken")
					}
				}
			}
			return true, nil
		case strings.Contains(expr, "#captchaImg") && strings.Contains(expr, "!== null"):
			return s.challenge, nil
		case strings.Contains(expr, "el.value ="):
			if i := strings.Index(expr, "el.value = "); i >= 0 {
				s.filledCode = strings.Trim(strings.Split(expr[i+len("el.value = "):], ";")[0], "\" ")
			}
			return true, nil
		case strings.Contains(expr, "fdc_") || strings.Contains(expr, "initCaptcha"):
			s.hooks = append(s.hooks, strings.TrimSuffix(expr, "()"))
			return nil, nil
		default:
			return nil, nil
		}
	}

	page := &fakePage{t: t, popup: popup}
	return page, s
}

func newTestEngine(page driver.Driver, transitions *[]State) *Engine {
	e := &Engine{
		Page:    page,
		Profile: testProfile(),
		Solver:  &captcha.Solver{Recognizer: fixedRecognizer{text: "123456"}, CodeLength: 6},
		Clock:   clock.NewFake(time.Now()),
		RNG:     rand.New(rand.NewSource(1)),
	}
	if transitions != nil {
		e.OnTransition = func(s State) { *transitions = append(*transitions, s) }
	}
	return e
}

func TestRunConfirmsSeatAfterBlockFallback(t *testing.T) {
	page, s := newScenario(t)
	var transitions []State
	e := newTestEngine(page, &transitions)

	err := e.Run(context.Background(), TargetParams{
		ResourceURL: "https://example.test/perf/99",
		Date:        "2026-03-14",
		Time:        "19:30",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := s.blockOrder; len(got) != 2 || got[0] != "b-near" || got[1] != "b-far" {
		t.Errorf("block order %v, want [b-near b-far]", got)
	}
	if got := s.seatAttempts; len(got) != 2 || got[0] != "s-near" || got[1] != "s-next" {
		t.Errorf("seat attempts %v, want [s-near s-next]", got)
	}

	wantOrder := []State{
		StateNavigatingToSale, StateSelectingSlot, StateSelectingZoneOrBlock,
		StateSelectingSeat, StateNoSeatAvailable, StateSelectingSeat,
		StateSeatConfirmed, StateFillingAncillary, StateResolvingChallenge,
		StateSubmitting, StateDone,
	}
	if len(transitions) != len(wantOrder) {
		t.Fatalf("transitions %v, want %v", transitions, wantOrder)
	}
	for i, want := range wantOrder {
		if transitions[i] != want {
			t.Fatalf("transition %d = %v, want %v (full: %v)", i, transitions[i], want, transitions)
		}
	}

	if !s.popup.closed {
		t.Error("popup not closed after run")
	}
}

func TestRunSolvesChallengeAndFillsCode(t *testing.T) {
	page, s := newScenario(t)
	s.challenge = true
	e := newTestEngine(page, nil)

	err := e.Run(context.Background(), TargetParams{
		ResourceURL: "https://example.test/perf/99",
		Date:        "2026-03-14",
		Time:        "19:30",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.filledCode != "123456" {
		t.Errorf("challenge code %q, want 123456", s.filledCode)
	}
}

func TestRunChallengeUnsolvedIsTerminal(t *testing.T) {
	page, s := newScenario(t)
	s.challenge = true
	var transitions []State
	e := newTestEngine(page, &transitions)
	e.Solver = &captcha.Solver{Recognizer: fixedRecognizer{text: "??"}, CodeLength: 6}
	e.Cfg.ChallengeAttempts = 3

	err := e.Run(context.Background(), TargetParams{
		ResourceURL: "https://example.test/perf/99",
		Date:        "2026-03-14",
		Time:        "19:30",
	})
	if !errors.Is(err, captcha.ErrUnsolved) {
		t.Fatalf("got %v, want ErrUnsolved", err)
	}
	if transitions[len(transitions)-1] != StateFailed {
		t.Errorf("final state %v, want failed", transitions[len(transitions)-1])
	}
}

func TestRunReportsSubmissionRejection(t *testing.T) {
	page, s := newScenario(t)
	e := newTestEngine(page, nil)

	// A dialog fired by the final hook lands inside the submit settle
	// window.
	inner := s.popup.evaluate
	s.popup.evaluate = func(expr string) (any, error) {
		if strings.Contains(expr, "fdc_PrePayCheck") && s.popup.handler != nil {
			s.popup.handler("sold out during payment")
		}
		return inner(expr)
	}

	err := e.Run(context.Background(), TargetParams{
		ResourceURL: "https://example.test/perf/99",
		Date:        "2026-03-14",
		Time:        "19:30",
	})
	if !errors.Is(err, ErrSubmissionRejected) {
		t.Fatalf("got %v, want ErrSubmissionRejected", err)
	}
}

func TestRunSlotNotFound(t *testing.T) {
	page, s := newScenario(t)
	s.popup.missing = map[string]bool{`[id="2026-03-14"]`: true}
	e := newTestEngine(page, nil)

	err := e.Run(context.Background(), TargetParams{
		ResourceURL: "https://example.test/perf/99",
		Date:        "2026-03-14",
		Time:        "19:30",
	})
	if !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("got %v, want ErrSlotNotFound", err)
	}
}

func TestRunNoSeatAnywhere(t *testing.T) {
	page, s := newScenario(t)
	// Every block enumerates empty.
	inner := s.popup.evaluate
	s.popup.evaluate = func(expr string) (any, error) {
		if strings.Contains(expr, `div[name="tk"]`) && strings.Contains(expr, "seat.title") {
			return []spatial{}, nil
		}
		return inner(expr)
	}
	e := newTestEngine(page, nil)

	err := e.Run(context.Background(), TargetParams{
		ResourceURL: "https://example.test/perf/99",
		Date:        "2026-03-14",
		Time:        "19:30",
	})
	if !errors.Is(err, ErrNoSeatAvailable) {
		t.Fatalf("got %v, want ErrNoSeatAvailable", err)
	}
}
