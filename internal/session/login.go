package session

import (
	"context"
	"fmt"
	"time"

	"seatrush/internal/driver"
	"seatrush/internal/site"
	"seatrush/internal/store"
)

// loginScriptJS fills the credential fields through the DOM and submits
// via the site's own login function. Clearing first matters: a retried
// login on a page that kept the previous value would concatenate.
func loginScriptJS(p site.Profile, acct store.Account) string {
	return fmt.Sprintf(`(() => {
  const id = document.querySelector(%q);
  const pw = document.querySelector(%q);
  if (id === null || pw === null) return false;
  id.value = '';
  pw.value = '';
  id.value = %q;
  pw.value = %q;
  %s;
  return true;
})()`, p.Login.ID, p.Login.Password, acct.Username, acct.Password, p.LoginHook)
}

// login signs one page in with one account. The page is left on
// whatever the site lands on after login; the booking flow navigates
// away from it anyway.
func login(ctx context.Context, d driver.Driver, p site.Profile, acct store.Account, timeout time.Duration) error {
	if err := d.Navigate(ctx, p.LoginURL); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	if err := d.WaitVisible(ctx, p.Login.ID, timeout); err != nil {
		return fmt.Errorf("login form: %w", err)
	}

	if p.LoginHook != "" {
		var ok bool
		if err := d.Evaluate(ctx, loginScriptJS(p, acct), &ok); err != nil {
			return fmt.Errorf("submit login: %w", err)
		}
		if !ok {
			return fmt.Errorf("submit login: %w", driver.ErrNotFound)
		}
	} else {
		if err := d.Type(ctx, p.Login.ID, acct.Username); err != nil {
			return fmt.Errorf("type username: %w", err)
		}
		if err := d.Type(ctx, p.Login.Password, acct.Password); err != nil {
			return fmt.Errorf("type password: %w", err)
		}
		if err := d.Click(ctx, p.Login.Submit); err != nil {
			return fmt.Errorf("submit login: %w", err)
		}
	}

	if p.LoginWaitsForNav {
		expr := fmt.Sprintf(`document.readyState === 'complete' && window.location.href !== %q`, p.LoginURL)
		if err := d.WaitFunc(ctx, expr, timeout); err != nil {
			return fmt.Errorf("await login navigation: %w", err)
		}
	}
	return nil
}
