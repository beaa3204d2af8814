package backend

import (
	"context"
	"net/http"

	"github.com/pawhaven/pawgate/internal/model"
)

// ListNotifications はユーザーの通知一覧を取得する。
func (c *Client) ListNotifications(ctx context.Context, userID int64) ([]model.Notification, error) {
	var notifications []model.Notification
	if err := c.do(ctx, http.MethodGet, "/notifications/user/"+formatID(userID), nil, nil, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkNotificationRead は通知を既読にする。
func (c *Client) MarkNotificationRead(ctx context.Context, notificationID int64) error {
	return c.do(ctx, http.MethodPut, "/notifications/"+formatID(notificationID)+"/read", nil, nil, nil)
}

// MarkAllNotificationsRead はユーザーの全通知を既読にする。
func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID int64) error {
	return c.do(ctx, http.MethodPut, "/notifications/user/"+formatID(userID)+"/read-all", nil, nil, nil)
}

// DeleteNotification は通知を削除する。
func (c *Client) DeleteNotification(ctx context.Context, notificationID int64) error {
	return c.do(ctx, http.MethodDelete, "/notifications/"+formatID(notificationID), nil, nil, nil)
}
