// Package guard はルート保護の判定を提供する。
// 判定は認証段階と行き先だけで決まる純粋関数で、副作用を持たない。
package guard

import "github.com/pawhaven/pawgate/internal/session"

const (
	// SignInRoute はサインイン画面のパス。
	SignInRoute = "/auth"
	// HomeRoute は既定の遷移先。
	HomeRoute = "/"
)

// Action は判定の種別。
type Action string

const (
	// ActionAllow はリクエストをそのまま通す。
	ActionAllow Action = "allow"
	// ActionWait は状態が確定するまで応答を保留する。
	ActionWait Action = "wait"
	// ActionRedirect はRedirectToへ遷移させる。
	ActionRedirect Action = "redirect"
)

// Decision はルート判定の結果。
type Decision struct {
	Action Action
	// RedirectTo はActionRedirectのときの遷移先。
	RedirectTo string
	// PreserveLocation は元の行き先をサインイン後の復帰先として
	// 保存すべきかどうか。
	PreserveLocation bool
}

// Decide は認証段階と行き先からルート判定を返す。
//
//   - 状態未確定（Loading）の間は保護・非保護を問わず判定を保留する。
//   - 保護ルートはプロバイダ確認済みなら通す。ProviderOnly は閲覧でき、
//     完全な照合は更新系の操作側で要求する。
//   - 認証済みユーザーがサインイン画面へ向かった場合は、保存された
//     復帰先（なければホーム）へ転送する。
func Decide(phase session.Phase, requireAuth bool, currentPath, preservedPath string) Decision {
	if phase == session.PhaseLoading {
		return Decision{Action: ActionWait}
	}

	if currentPath == SignInRoute {
		if phase == session.PhaseReconciled {
			target := preservedPath
			if target == "" || target == SignInRoute {
				target = HomeRoute
			}
			return Decision{Action: ActionRedirect, RedirectTo: target}
		}
		return Decision{Action: ActionAllow}
	}

	if !requireAuth {
		return Decision{Action: ActionAllow}
	}

	if phase == session.PhaseReconciled || phase == session.PhaseProviderOnly {
		return Decision{Action: ActionAllow}
	}

	return Decision{
		Action:           ActionRedirect,
		RedirectTo:       SignInRoute,
		PreserveLocation: true,
	}
}
