package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointerHelpers(t *testing.T) {
	assert.True(t, IsTrue(ToPtr(true)))
	assert.False(t, IsTrue(nil))
	assert.False(t, IsTrue(ToPtr(false)))

	assert.Equal(t, 0, FromPtr[int](nil))
	assert.Equal(t, 7, FromPtr(ToPtr(7)))

	assert.Nil(t, TrimmedPtr("   "))
	if p := TrimmedPtr("  Lagos "); assert.NotNil(t, p) {
		assert.Equal(t, "Lagos", *p)
	}
}

func TestUTCNow(t *testing.T) {
	now := UTCNow()
	assert.Equal(t, "UTC", now.Location().String())
	assert.False(t, IsExpiredPtr(nil))
	assert.True(t, IsExpired(now.Add(-1)))
}
