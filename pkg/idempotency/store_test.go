package idempotency_test

import (
	"testing"

	"github.com/ehgkals/realtime-fin-mq/pkg/idempotency"
)

func TestAlreadyProcessedFirstSightThenDuplicate(t *testing.T) {
	s := idempotency.New(false)

	if s.AlreadyProcessed("a") {
		t.Fatalf("first sight of id should not be reported as already processed")
	}
	if !s.AlreadyProcessed("a") {
		t.Fatalf("second sight of id should be reported as already processed")
	}
}

func TestRemoveProcessedAllowsReadmission(t *testing.T) {
	s := idempotency.New(false)

	s.AlreadyProcessed("a")
	s.RemoveProcessed("a")

	if s.AlreadyProcessed("a") {
		t.Fatalf("id should be re-admittable after RemoveProcessed")
	}
}

func TestPermanentModeIgnoresRemove(t *testing.T) {
	s := idempotency.New(true)

	s.AlreadyProcessed("a")
	s.RemoveProcessed("a")

	if !s.AlreadyProcessed("a") {
		t.Fatalf("permanent mode must not release ids via RemoveProcessed")
	}
}

func TestClearResetsStore(t *testing.T) {
	s := idempotency.New(false)
	s.AlreadyProcessed("a")
	s.Clear()

	if s.AlreadyProcessed("a") {
		t.Fatalf("id should be admittable again after Clear")
	}
}
