package domain

import "time"

// NotificationKind selects the toast colour.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
)

// ToastTTL is how long a notification stays on screen.
const ToastTTL = 2 * time.Second

// Notification messages shown after a mutation.
const (
	MsgAdded        = "Added to wishlist ♥"
	MsgRemoved      = "Removed from wishlist"
	MsgAddFailed    = "Failed to add to wishlist"
	MsgRemoveFailed = "Failed to remove from wishlist"
)

// Notification is a transient user-facing message.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	ProductID string           `json:"product_id,omitempty"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Live reports whether the notification is still visible at now.
func (n Notification) Live(now time.Time) bool {
	return now.Before(n.ExpiresAt)
}

// NotificationFor builds the toast for a settled mutation.
func NotificationFor(op Op, productID string, failed bool, now time.Time) Notification {
	n := Notification{Kind: NotifySuccess, ProductID: productID, ExpiresAt: now.Add(ToastTTL)}
	switch {
	case op == OpAdd && !failed:
		n.Message = MsgAdded
	case op == OpAdd:
		n.Kind, n.Message = NotifyError, MsgAddFailed
	case !failed:
		n.Message = MsgRemoved
	default:
		n.Kind, n.Message = NotifyError, MsgRemoveFailed
	}
	return n
}
