package guard

import (
	"testing"

	"github.com/pawhaven/pawgate/internal/session"
)

func TestDecide_LoadingAlwaysWaits(t *testing.T) {
	for _, requireAuth := range []bool{true, false} {
		d := Decide(session.PhaseLoading, requireAuth, "/pets", "")
		if d.Action != ActionWait {
			t.Errorf("requireAuth=%v: Action = %q, want %q", requireAuth, d.Action, ActionWait)
		}
	}
}

func TestDecide_ProtectedRoute(t *testing.T) {
	tests := []struct {
		name       string
		phase      session.Phase
		wantAction Action
	}{
		{"unauthenticated redirects to sign-in", session.PhaseUnauthenticated, ActionRedirect},
		{"provider-only allowed", session.PhaseProviderOnly, ActionAllow},
		{"reconciled allowed", session.PhaseReconciled, ActionAllow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.phase, true, "/watchlist", "")
			if d.Action != tt.wantAction {
				t.Errorf("Action = %q, want %q", d.Action, tt.wantAction)
			}
			if tt.wantAction == ActionRedirect {
				if d.RedirectTo != SignInRoute {
					t.Errorf("RedirectTo = %q, want %q", d.RedirectTo, SignInRoute)
				}
				if !d.PreserveLocation {
					t.Error("original destination should be preserved")
				}
			}
		})
	}
}

func TestDecide_PublicRouteAlwaysAllowed(t *testing.T) {
	for _, phase := range []session.Phase{session.PhaseUnauthenticated, session.PhaseProviderOnly, session.PhaseReconciled} {
		d := Decide(phase, false, "/pets", "")
		if d.Action != ActionAllow {
			t.Errorf("phase %q: Action = %q, want %q", phase, d.Action, ActionAllow)
		}
	}
}

func TestDecide_SignInRoute_ReconciledRedirectsBack(t *testing.T) {
	d := Decide(session.PhaseReconciled, false, SignInRoute, "/watchlist")
	if d.Action != ActionRedirect {
		t.Fatalf("Action = %q, want %q", d.Action, ActionRedirect)
	}
	if d.RedirectTo != "/watchlist" {
		t.Errorf("RedirectTo = %q, want /watchlist", d.RedirectTo)
	}
}

func TestDecide_SignInRoute_NoPreservedLocation_GoesHome(t *testing.T) {
	d := Decide(session.PhaseReconciled, false, SignInRoute, "")
	if d.RedirectTo != HomeRoute {
		t.Errorf("RedirectTo = %q, want %q", d.RedirectTo, HomeRoute)
	}
}

func TestDecide_SignInRoute_PreservedSignInLoopBreaks(t *testing.T) {
	// 復帰先がサインイン画面自身の場合はホームへ逃がす
	d := Decide(session.PhaseReconciled, false, SignInRoute, SignInRoute)
	if d.RedirectTo != HomeRoute {
		t.Errorf("RedirectTo = %q, want %q", d.RedirectTo, HomeRoute)
	}
}

func TestDecide_SignInRoute_ProviderOnlyMaySignIn(t *testing.T) {
	d := Decide(session.PhaseProviderOnly, false, SignInRoute, "")
	if d.Action != ActionAllow {
		t.Errorf("Action = %q, want %q", d.Action, ActionAllow)
	}
}
