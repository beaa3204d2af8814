package backend

import (
	"context"
	"net/http"

	"github.com/pawhaven/pawgate/internal/model"
)

// donationUserRef は寄付レコードに埋め込むユーザー参照。
type donationUserRef struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type createDonationRequest struct {
	User          donationUserRef `json:"user"`
	Amount        float64         `json:"amount"`
	Purpose       string          `json:"purpose"`
	TranID        string          `json:"tranId"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"paymentMethod"`
	Currency      string          `json:"currency"`
	Notes         string          `json:"notes,omitempty"`
}

// CreateDonation は寄付レコードを作成する。
func (c *Client) CreateDonation(ctx context.Context, user *model.User, donation *model.Donation) (*model.Donation, error) {
	req := createDonationRequest{
		User: donationUserRef{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
		},
		Amount:        donation.Amount,
		Purpose:       donation.Purpose,
		TranID:        donation.TranID,
		Status:        donation.Status,
		PaymentMethod: donation.PaymentMethod,
		Currency:      donation.Currency,
		Notes:         donation.Notes,
	}

	var created model.Donation
	if err := c.do(ctx, http.MethodPost, "/payments", nil, req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListDonationsByUser はユーザーの寄付履歴を取得する。
func (c *Client) ListDonationsByUser(ctx context.Context, userID int64) ([]model.Donation, error) {
	var donations []model.Donation
	if err := c.do(ctx, http.MethodGet, "/payments/user/"+formatID(userID), nil, nil, &donations); err != nil {
		return nil, err
	}
	return donations, nil
}
