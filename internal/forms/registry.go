package forms

import "sync"

// Registry はセッションごとの進行中ウィザードを保持する。
// 各セッションは種類ごとに高々1つのウィザードを持つ。
type Registry struct {
	mu        sync.Mutex
	adoptions map[string]*AdoptionWizard
	donations map[string]*DonationWizard
}

func NewRegistry() *Registry {
	return &Registry{
		adoptions: make(map[string]*AdoptionWizard),
		donations: make(map[string]*DonationWizard),
	}
}

// StartAdoption は指定ペットへの申請ウィザードを新規に開始する。
// 進行中のものがあれば破棄して作り直す。
func (r *Registry) StartAdoption(sessionID string, petID int64) *AdoptionWizard {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := NewAdoptionWizard(petID)
	r.adoptions[sessionID] = w
	return w
}

// Adoption は進行中の申請ウィザードを返す。なければ nil。
func (r *Registry) Adoption(sessionID string) *AdoptionWizard {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.adoptions[sessionID]
}

// StartDonation は寄付ウィザードを新規に開始する。
func (r *Registry) StartDonation(sessionID string) *DonationWizard {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := NewDonationWizard()
	r.donations[sessionID] = w
	return w
}

// Donation は進行中の寄付ウィザードを返す。なければ nil。
func (r *Registry) Donation(sessionID string) *DonationWizard {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.donations[sessionID]
}

// FinishAdoption は申請ウィザードを破棄する。送信完了時に呼ぶ。
func (r *Registry) FinishAdoption(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adoptions, sessionID)
}

// FinishDonation は寄付ウィザードを破棄する。送信完了時に呼ぶ。
func (r *Registry) FinishDonation(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.donations, sessionID)
}

// Discard はセッションの全ウィザードを破棄する。セッション終了時に呼ぶ。
func (r *Registry) Discard(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adoptions, sessionID)
	delete(r.donations, sessionID)
}
