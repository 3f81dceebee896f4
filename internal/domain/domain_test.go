package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewUserIdentity(t *testing.T) {
	a := NewUserIdentity()
	b := NewUserIdentity()

	assert.Regexp(t, `^user_[0-9a-f]{32}$`, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, IsValidIdentity(a.ID))
}

func TestIsValidIdentity(t *testing.T) {
	assert.True(t, IsValidIdentity("user_k3j9x2lq8"))
	assert.False(t, IsValidIdentity(""))
	assert.False(t, IsValidIdentity("user_"))
	assert.False(t, IsValidIdentity("admin_123"))
	assert.False(t, IsValidIdentity("user_../../etc"))
}

func TestClampCount(t *testing.T) {
	three, zero := 3, 0
	assert.Equal(t, 4, ClampCount(&three, 1))
	assert.Equal(t, 2, ClampCount(&three, -1))
	assert.Equal(t, 0, ClampCount(&zero, -1))
	assert.Equal(t, 1, ClampCount(nil, 1))
	assert.Equal(t, 0, ClampCount(nil, -1))
}

func TestNotificationFor(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		op     Op
		failed bool
		kind   NotificationKind
		msg    string
	}{
		{OpAdd, false, NotifySuccess, "Added to wishlist ♥"},
		{OpAdd, true, NotifyError, "Failed to add to wishlist"},
		{OpRemove, false, NotifySuccess, "Removed from wishlist"},
		{OpRemove, true, NotifyError, "Failed to remove from wishlist"},
	}
	for _, tt := range tests {
		n := NotificationFor(tt.op, "ring-101", tt.failed, now)
		assert.Equal(t, tt.kind, n.Kind)
		assert.Equal(t, tt.msg, n.Message)
		assert.True(t, n.Live(now.Add(1999*time.Millisecond)))
		assert.False(t, n.Live(now.Add(2*time.Second)))
	}
}

func TestResult(t *testing.T) {
	ok := Result{ProductID: "ring-101", Op: OpAdd, Liked: true, Count: 1}
	assert.True(t, ok.OK())
	assert.Equal(t, "add ring-101: liked=true count=1", ok.String())

	failed := Result{ProductID: "ring-101", Op: OpRemove, Err: errors.New("down")}
	assert.False(t, failed.OK())
	assert.Equal(t, "remove ring-101: down", failed.String())
}
