package clock

import (
	"testing"
	"time"
)

func TestNow_ReturnsCurrentTime(t *testing.T) {
	before := time.Now()
	result := Now()
	after := time.Now()

	if result.Before(before) || result.After(after) {
		t.Errorf("Now() returned %v, expected between %v and %v", result, before, after)
	}
}

func TestMockClock_Now(t *testing.T) {
	mockTime := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	mock := NewMockClock(mockTime)

	result := mock.Now()

	if !result.Equal(mockTime) {
		t.Errorf("MockClock.Now() returned %v, expected exactly %v", result, mockTime)
	}
}

func TestMockClock_Advance(t *testing.T) {
	mockTime := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	mock := NewMockClock(mockTime)

	mock.Advance(time.Hour)

	expected := mockTime.Add(time.Hour)
	if !mock.Now().Equal(expected) {
		t.Errorf("After Advance, Now() = %v, expected %v", mock.Now(), expected)
	}
}

func TestMockClock_Set(t *testing.T) {
	mock := NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	target := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)

	mock.Set(target)

	if !mock.Now().Equal(target) {
		t.Errorf("After Set, Now() = %v, expected %v", mock.Now(), target)
	}
}

func TestMockClock_SinceUntil(t *testing.T) {
	base := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	mock := NewMockClock(base)

	past := base.Add(-time.Minute)
	if got := mock.Since(past); got != time.Minute {
		t.Errorf("Since = %v, expected 1m", got)
	}

	future := base.Add(time.Minute)
	if got := mock.Until(future); got != time.Minute {
		t.Errorf("Until = %v, expected 1m", got)
	}
}
