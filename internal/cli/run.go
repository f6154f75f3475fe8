package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"seatrush/internal/booking"
	"seatrush/internal/captcha"
	"seatrush/internal/clock"
	"seatrush/internal/driver"
	"seatrush/internal/session"
	"seatrush/internal/site"
	"seatrush/internal/store"
)

func newRunCmd() *cobra.Command {
	var (
		siteID, url, date, timeOfDay string
		grade, floor                 string
		at                           string
		window                       time.Duration
	)

	c := &cobra.Command{
		Use:   "run",
		Short: "Log every stored account in and book seats at the sale instant",
		Long: `Logs every stored account into its own browser, then either arms all
sessions against a wall-clock instant (--at) or keeps each session
retrying over a sale window (--window) until one booking succeeds.
Combining --at with --window opens the retry window at --at.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if at == "" && window == 0 {
				return errors.New("at least one of --at or --window is required")
			}

			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			profile, err := site.Lookup(siteID)
			if err != nil {
				return err
			}
			accounts, err := store.New(cfg.AccountsFile).List(siteID)
			if err != nil {
				return err
			}
			if len(accounts) == 0 {
				return fmt.Errorf("no accounts stored for %q; add some with: seatrush accounts add", siteID)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			results := make(chan session.Event, len(accounts))
			pool := &session.Pool{
				Factory: &driver.ChromeFactory{
					Headless:   cfg.Headless,
					GridCols:   cfg.GridCols,
					CellWidth:  cfg.CellWidth,
					CellHeight: cfg.CellHeight,
					UserAgent:  cfg.UserAgent,
					Log:        log,
				},
				Profile: profile,
				Solver: &captcha.Solver{
					Recognizer: &captcha.TesseractRecognizer{},
					CodeLength: cfg.CaptchaCodeLength,
					Threshold:  cfg.CaptchaThreshold,
					Log:        log,
				},
				Cfg: session.Config{
					LoginBatchSize:   cfg.LoginBatchSize,
					LoginParallelism: cfg.LoginParallelism,
					LoginTimeout:     cfg.LoginTimeout(),
					PassBackoff:      cfg.PassBackoff(),
					Booking: booking.Tunables{
						WaitTimeout:       cfg.WaitTimeout(),
						SettleWindow:      cfg.SettleWindow(),
						SettlePoll:        cfg.SettlePoll(),
						RetryBackoff:      cfg.RetryBackoff(),
						PickPercentile:    cfg.PickPercentile,
						ChallengeAttempts: cfg.CaptchaMaxAttempts,
					},
				},
				Clock: clock.Real(),
				Log:   log,
				Listener: func(ev session.Event) {
					printEvent(ev)
					if ev.Kind == session.EventTicketingResult {
						results <- ev
					}
				},
			}
			defer pool.Close()

			n, err := pool.StartSessions(ctx, accounts)
			if err != nil {
				return err
			}

			params := booking.TargetParams{
				ResourceURL: url,
				Date:        date,
				Time:        timeOfDay,
				Grade:       grade,
				Floor:       floor,
			}

			var handle *session.RunHandle
			if window > 0 {
				start := time.Now()
				if at != "" {
					start, err = parseAt(at, time.Now())
					if err != nil {
						return err
					}
				}
				until := start.Add(window)
				log.Info("starting continuous run",
					zap.Time("from", start), zap.Time("until", until), zap.Int("sessions", n))
				handle, err = pool.RunContinuous(ctx, params, start, until)
				if err != nil {
					return err
				}
			} else {
				executeAt, err := parseAt(at, time.Now())
				if err != nil {
					return err
				}
				log.Info("arming sessions", zap.Time("execute_at", executeAt), zap.Int("sessions", n))
				handle, err = pool.ScheduleRun(ctx, params, executeAt)
				if err != nil {
					return err
				}
			}

			succeeded := 0
			for done := 0; done < n; {
				select {
				case <-ctx.Done():
					handle.Cancel()
					return errors.New("interrupted")
				case ev := <-results:
					done++
					if ev.Success {
						succeeded++
					}
				}
			}

			log.Info("run finished", zap.Int("succeeded", succeeded), zap.Int("sessions", n))
			if succeeded == 0 {
				return errors.New("no session completed a booking")
			}
			return nil
		},
	}

	c.Flags().StringVar(&siteID, "site", "yes24", "site id (see: seatrush sites)")
	c.Flags().StringVar(&url, "url", "", "event sale page URL")
	c.Flags().StringVar(&date, "date", "", "performance date (YYYY-MM-DD)")
	c.Flags().StringVar(&timeOfDay, "time", "", "performance time (HH:mm)")
	c.Flags().StringVar(&grade, "grade", "", "restrict to one seat grade")
	c.Flags().StringVar(&floor, "floor", "", "restrict to seats mentioning this floor")
	c.Flags().StringVar(&at, "at", "", "sale-open instant (HH:mm:ss today, or RFC 3339)")
	c.Flags().DurationVar(&window, "window", 0, "keep retrying for this long, from --at when given, else from now")
	_ = c.MarkFlagRequired("url")
	_ = c.MarkFlagRequired("date")
	_ = c.MarkFlagRequired("time")
	return c
}

// parseAt accepts an absolute RFC 3339 instant or a time of day, which
// binds to today in local time.
func parseAt(raw string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.ParseInLocation(layout, raw, now.Location()); err == nil {
			return time.Date(now.Year(), now.Month(), now.Day(),
				t.Hour(), t.Minute(), t.Second(), 0, now.Location()), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized --at value %q", raw)
}

func printEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventLoginProgress:
		status := "ok"
		if !ev.Success {
			status = "failed: " + ev.Reason
		}
		fmt.Fprintf(os.Stdout, "[login %d/%d] %s %s\n", ev.Completed, ev.Total, ev.Username, status)
	case session.EventBatchCompleted:
		fmt.Fprintf(os.Stdout, "[login] batch %d/%d done\n", ev.BatchIndex+1, ev.TotalBatches)
	case session.EventAllLoginsCompleted:
		fmt.Fprintf(os.Stdout, "[login] %d/%d sessions ready\n", ev.SuccessCount, ev.Total)
	case session.EventPhase:
		fmt.Fprintf(os.Stdout, "[%s] %s\n", ev.Username, ev.Phase)
	case session.EventTicketingResult:
		if ev.Success {
			fmt.Fprintf(os.Stdout, "[%s] BOOKED\n", ev.Username)
		} else {
			fmt.Fprintf(os.Stdout, "[%s] failed: %s\n", ev.Username, ev.Reason)
		}
	}
}
