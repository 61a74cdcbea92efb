package mock

import (
	"testing"
	"time"

	"webauthz/pkg/webauthz"
)

var _ webauthz.Clock = (*MockClock)(nil)

func TestMockClock_Now(t *testing.T) {
	fixedTime := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := NewMockClock(fixedTime)

	if !clock.Now().Equal(fixedTime) {
		t.Errorf("Expected time %v, got %v", fixedTime, clock.Now())
	}
}

func TestMockClock_Advance(t *testing.T) {
	startTime := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := NewMockClock(startTime)

	clock.Advance(1 * time.Hour)
	clock.Advance(30 * time.Minute)

	expectedTime := startTime.Add(90 * time.Minute)
	if !clock.Now().Equal(expectedTime) {
		t.Errorf("Expected time %v after advance, got %v", expectedTime, clock.Now())
	}
}

func TestMockClock_Set(t *testing.T) {
	clock := NewMockClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))

	newTime := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clock.Set(newTime)

	if !clock.Now().Equal(newTime) {
		t.Errorf("Expected time %v after set, got %v", newTime, clock.Now())
	}
}

func TestNewMockClock_ZeroTime(t *testing.T) {
	before := time.Now()
	clock := NewMockClock(time.Time{})

	if clock.Now().Before(before) {
		t.Errorf("Zero time should initialize to the current time, got %v", clock.Now())
	}
}
