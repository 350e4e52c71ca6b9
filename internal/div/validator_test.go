package div

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_FreshSubscriptionAccepts(t *testing.T) {
	v := New()
	outcome := v.Check(100, 10)
	assert.Equal(t, Ok, outcome)

	last, ok := v.LastDelegated()
	require.True(t, ok)
	assert.Equal(t, int64(100), last)
}

func TestValidator_SequentialAccepts(t *testing.T) {
	v := New()
	v.Check(100, 10)

	for i, offset := range []int64{11, 12, 13} {
		outcome := v.Check(int64(101+i), offset)
		assert.Equal(t, Ok, outcome, "offset %d should be accepted", offset)
	}
}

func TestValidator_DuplicateIsDropped(t *testing.T) {
	v := New()
	v.Check(100, 10)
	v.Check(101, 11)

	outcome := v.Check(100, 12)
	assert.Equal(t, Duplicate, outcome)

	last, _ := v.LastDelegated()
	assert.Equal(t, int64(101), last, "duplicate must not move the baseline")
}

func TestValidator_GapBlocks(t *testing.T) {
	v := New()
	v.Check(100, 10)
	v.Check(101, 11)

	outcome := v.Check(103, 12)
	assert.Equal(t, Gap, outcome)

	last, _ := v.LastDelegated()
	assert.Equal(t, int64(101), last, "a gap must not advance the baseline")
}

func TestValidator_SkipDIVConsumesSingleShot(t *testing.T) {
	v := New()
	v.Check(100, 10)
	v.Check(101, 11)
	v.Check(103, 12) // gap recorded at offset 12

	v.SetSkipDIV(12)
	outcome := v.Check(103, 12)
	assert.Equal(t, Ok, outcome)

	last, _ := v.LastDelegated()
	assert.Equal(t, int64(103), last)

	// Second occurrence of the same offset is no longer exempted.
	outcome = v.Check(105, 12)
	assert.Equal(t, Gap, outcome)
}

func TestValidator_ResetClearsBaseline(t *testing.T) {
	v := New()
	v.Check(100, 10)
	v.Reset()

	_, ok := v.LastDelegated()
	assert.False(t, ok)

	outcome := v.Check(55, 0)
	assert.Equal(t, Ok, outcome, "post-reset, any execution id starts a fresh baseline")
}
