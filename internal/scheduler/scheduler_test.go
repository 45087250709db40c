package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAddJobRejectsBadSpec(t *testing.T) {
	s := New("")
	if err := s.AddJob("broken", "not a schedule", func(context.Context) {}); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	if len(s.Jobs()) != 0 {
		t.Errorf("invalid job was registered: %v", s.Jobs())
	}
}

func TestAddJobRejectsDuplicate(t *testing.T) {
	s := New("")
	if err := s.AddJob("cleanup", "@hourly", func(context.Context) {}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddJob("cleanup", "@daily", func(context.Context) {}); err == nil {
		t.Error("expected error for duplicate job name")
	}
}

func TestJobsSorted(t *testing.T) {
	s := New("UTC")
	for _, name := range []string{"summary", "cleanup", "backup"} {
		if err := s.AddJob(name, "@hourly", func(context.Context) {}); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff([]string{"backup", "cleanup", "summary"}, s.Jobs()); diff != "" {
		t.Errorf("Jobs() mismatch (-want +got):\n%s", diff)
	}
}

func TestNextRun(t *testing.T) {
	s := New("UTC")
	if err := s.AddJob("cleanup", "@hourly", func(context.Context) {}); err != nil {
		t.Fatal(err)
	}
	if !s.NextRun("cleanup").IsZero() {
		t.Error("NextRun should be zero before Start")
	}

	s.Start(context.Background())
	defer s.Stop()

	next := s.NextRun("cleanup")
	if next.IsZero() || !next.After(time.Now()) || next.After(time.Now().Add(time.Hour+time.Second)) {
		t.Errorf("NextRun = %v, want within the next hour", next)
	}
	if !s.NextRun("missing").IsZero() {
		t.Error("NextRun of unknown job should be zero")
	}
}

func TestRunNow(t *testing.T) {
	s := New("")
	var calls atomic.Int32
	if err := s.AddJob("summary", "@daily", func(context.Context) { calls.Add(1) }); err != nil {
		t.Fatal(err)
	}

	if err := s.RunNow("summary"); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("job ran %d times, want 1", calls.Load())
	}
	if err := s.RunNow("missing"); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestRunNowRecoversPanic(t *testing.T) {
	s := New("")
	_ = s.AddJob("explode", "@daily", func(context.Context) { panic("boom") })

	if err := s.RunNow("explode"); err != nil {
		t.Fatal(err)
	}
}

func TestScheduledJobReceivesStartContext(t *testing.T) {
	s := New("")
	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "bot")

	got := make(chan any, 1)
	_ = s.AddJob("tick", "@every 1s", func(ctx context.Context) {
		select {
		case got <- ctx.Value(ctxKey{}):
		default:
		}
	})

	s.Start(ctx)
	defer s.Stop()

	select {
	case v := <-got:
		if v != "bot" {
			t.Errorf("job context value = %v, want bot", v)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled job did not run")
	}
}

func TestStopIdempotent(t *testing.T) {
	s := New("")
	s.Stop()
	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}
