package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"feedac/internal/logging"
	"feedac/internal/settings"
)

// AuthState is the persisted login session: cookies plus the site origin's
// localStorage.
type AuthState struct {
	Cookies      []*proto.NetworkCookie `json:"cookies"`
	LocalStorage map[string]string      `json:"localStorage"`
}

// saveAuthState snapshots the current session. A logged-out browser clears
// the stored state instead, so a stale session never shadows a fresh login
// prompt.
func saveAuthState(ctx context.Context, page *rod.Page, store *settings.Store) error {
	p := page.Context(ctx)
	if !isLoggedIn(p) {
		logging.Browser("no active login, clearing saved auth state")
		return store.Delete(settings.KeyAuthState)
	}

	cookiesRes, err := proto.NetworkGetCookies{}.Call(p)
	if err != nil {
		return fmt.Errorf("get cookies: %w", err)
	}
	state := AuthState{
		Cookies:      cookiesRes.Cookies,
		LocalStorage: snapshotLocalStorage(p),
	}
	if err := store.Set(settings.KeyAuthState, state); err != nil {
		return fmt.Errorf("persist auth state: %w", err)
	}
	logging.Browser("auth state saved: %d cookie(s), %d storage key(s)",
		len(state.Cookies), len(state.LocalStorage))
	return nil
}

// restoreAuth loads the saved session into a fresh page: cookies first,
// then localStorage on the site origin. Missing state is not an error.
func (s *Session) restoreAuth(ctx context.Context, page *rod.Page) error {
	var state AuthState
	ok, err := s.store.Get(settings.KeyAuthState, &state)
	if err != nil {
		return err
	}
	if !ok {
		logging.Browser("no saved auth state")
		return nil
	}

	p := page.Context(ctx)
	if len(state.Cookies) > 0 {
		params := make([]*proto.NetworkCookieParam, 0, len(state.Cookies))
		for _, c := range state.Cookies {
			params = append(params, &proto.NetworkCookieParam{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
				SameSite: c.SameSite,
				Priority: c.Priority,
			})
		}
		if err := p.SetCookies(params); err != nil {
			return fmt.Errorf("restore cookies: %w", err)
		}
	}

	// localStorage is origin-scoped, so the origin must be loaded first.
	if len(state.LocalStorage) > 0 {
		if err := p.Timeout(navigationTimeout).Navigate(SiteOrigin); err != nil {
			return fmt.Errorf("open origin for storage restore: %w", err)
		}
		raw, err := json.Marshal(state.LocalStorage)
		if err != nil {
			return err
		}
		_, err = p.Evaluate(&rod.EvalOptions{
			JS: `(data) => {
				try {
					Object.entries(JSON.parse(data)).forEach(([k, v]) => localStorage.setItem(k, v));
				} catch (e) {}
			}`,
			JSArgs:       []interface{}{string(raw)},
			ByValue:      true,
			AwaitPromise: true,
		})
		if err != nil {
			return fmt.Errorf("restore local storage: %w", err)
		}
	}
	logging.Browser("auth state restored: %d cookie(s), %d storage key(s)",
		len(state.Cookies), len(state.LocalStorage))
	return nil
}

func snapshotLocalStorage(page *rod.Page) map[string]string {
	res, err := page.Evaluate(&rod.EvalOptions{
		JS: `() => {
			try {
				const out = {};
				for (const key of Object.keys(localStorage)) {
					out[key] = localStorage.getItem(key);
				}
				return JSON.stringify(out);
			} catch (e) {
				return "{}";
			}
		}`,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil || res == nil || res.Value.Nil() {
		return nil
	}
	out := map[string]string{}
	if err := json.Unmarshal([]byte(res.Value.String()), &out); err != nil {
		return nil
	}
	return out
}

// isLoggedIn checks the site's own login marker in localStorage.
func isLoggedIn(page *rod.Page) bool {
	res, err := page.Evaluate(&rod.EvalOptions{
		JS:      fmt.Sprintf(`() => localStorage.getItem(%q)`, loginStateKey),
		ByValue: true,
	})
	if err != nil || res == nil || res.Value.Nil() {
		return false
	}
	return res.Value.String() == "1"
}
