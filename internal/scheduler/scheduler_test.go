package scheduler

import "testing"

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	if err := s.AddJob("cron", "* * * * *", func() {}); err != nil {
		t.Errorf("Expected no error adding job, got %v", err)
	}
	if err := s.AddJob("every", "@every 5m", func() {}); err != nil {
		t.Errorf("Expected descriptor to be accepted, got %v", err)
	}
}

func TestSchedulerAddJob_Invalid(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	if err := s.AddJob("bad", "not a schedule", func() {}); err == nil {
		t.Error("Expected error for invalid expression")
	}
}
