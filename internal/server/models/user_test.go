package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOTPRecord_Live(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, OTPRecord{}.Live(now))
	assert.False(t, OTPRecord{Hash: "h"}.Live(now))
	assert.True(t, OTPRecord{Hash: "h", ExpiresAt: now}.Live(now))
	assert.False(t, OTPRecord{Hash: "h", ExpiresAt: now.Add(-time.Second)}.Live(now))
}

func TestRole(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("root").Valid())
	assert.True(t, (&User{Role: RoleAdmin}).IsAdmin())
	assert.False(t, (*User)(nil).IsAdmin())
}
