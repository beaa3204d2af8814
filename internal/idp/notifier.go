package idp

import (
	"sync"
	"time"

	"github.com/pawhaven/pawgate/internal/model"
)

// StateNotifier は認証状態変化の通知プリミティブ。
// 起動時の復元結果（プロフィールまたはnil）を必ず1回通知し、
// 以降のサインイン・サインアウトのたびに再通知する。
// 購読解除ハンドルを返すことでコンポーネント破棄時の解除を可能にする。
type StateNotifier struct {
	mu       sync.Mutex
	subs     map[int]func(*model.ProviderProfile)
	nextID   int
	current  *model.ProviderProfile
	resolved bool
	firstCh  chan struct{}
}

// NewStateNotifier はStateNotifierを生成する。
func NewStateNotifier() *StateNotifier {
	return &StateNotifier{
		subs:    make(map[int]func(*model.ProviderProfile)),
		firstCh: make(chan struct{}),
	}
}

// Subscribe はコールバックを登録し、購読解除関数を返す。
// すでに初回解決済みの場合は現在の状態で即時にコールバックする。
func (n *StateNotifier) Subscribe(fn func(*model.ProviderProfile)) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	resolved := n.resolved
	current := n.current
	n.mu.Unlock()

	if resolved {
		fn(current)
	}

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// Publish は認証状態の変化を全購読者に通知する。
// 最初のPublishで初回解決とみなす。
func (n *StateNotifier) Publish(profile *model.ProviderProfile) {
	n.mu.Lock()
	n.current = profile
	if !n.resolved {
		n.resolved = true
		close(n.firstCh)
	}
	fns := make([]func(*model.ProviderProfile), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	// ロック外でコールバックを実行する（コールバック内の再購読を許容）
	for _, fn := range fns {
		fn(profile)
	}
}

// Resolved は初回解決が済んでいるかを返す。
func (n *StateNotifier) Resolved() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resolved
}

// Current は現在の認証状態を返す。初回解決前はnil。
func (n *StateNotifier) Current() *model.ProviderProfile {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// WaitFirst は初回解決を待つ。timeoutを超過した場合はnilをPublishして
// 未認証として解決する。ローディング状態が無期限に続くことはない。
func (n *StateNotifier) WaitFirst(timeout time.Duration) *model.ProviderProfile {
	select {
	case <-n.firstCh:
		return n.Current()
	case <-time.After(timeout):
		n.mu.Lock()
		resolved := n.resolved
		n.mu.Unlock()
		if !resolved {
			n.Publish(nil)
		}
		return n.Current()
	}
}
