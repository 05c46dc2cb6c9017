package poll

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"stackerbuild.io/bomsync/errors"
)

func sequence(states ...string) (func(context.Context) (Report[int], error), *int) {
	calls := 0

	return func(context.Context) (Report[int], error) {
		state := states[len(states)-1]
		if calls < len(states) {
			state = states[calls]
		}
		calls++

		return Report[int]{State: state, Detail: "detail", Value: calls}, nil
	}, &calls
}

func target(max int) Target {
	return Target{
		Name:        "scan state",
		Terminal:    []string{"SUCCESS"},
		Failure:     []string{"FAILURE"},
		MaxAttempts: max,
		Interval:    time.Millisecond,
	}
}

func TestUntilTerminalFirst(t *testing.T) {
	fetch, calls := sequence("SUCCESS")

	got, err := Until(context.Background(), target(5), fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if *calls != 1 {
		t.Errorf("calls = %d, want 1", *calls)
	}

	want := Report[int]{State: "SUCCESS", Detail: "detail", Value: 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Until() (-want +got)\n%s", diff)
	}
}

func TestUntilEventuallyTerminal(t *testing.T) {
	fetch, calls := sequence("STARTED", "STARTED", "SUCCESS")

	got, err := Until(context.Background(), target(5), fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if *calls != 3 || got.Value != 3 {
		t.Errorf("calls = %d, value = %d, want 3", *calls, got.Value)
	}
}

func TestUntilTimeout(t *testing.T) {
	for _, max := range []int{1, 3, 7} {
		fetch, calls := sequence("in_progress")

		_, err := Until(context.Background(), target(max), fetch)
		if !stderrors.Is(err, errors.ErrTimeout) {
			t.Fatalf("max=%d: err = %v, want ErrTimeout", max, err)
		}

		if *calls != max {
			t.Errorf("max=%d: calls = %d", max, *calls)
		}
	}
}

func TestUntilFailureStopsImmediately(t *testing.T) {
	fetch, calls := sequence("STARTED", "FAILURE", "SUCCESS")

	got, err := Until(context.Background(), target(10), fetch)
	if !stderrors.Is(err, errors.ErrRemoteFailure) {
		t.Fatalf("err = %v, want ErrRemoteFailure", err)
	}

	if stderrors.Is(err, errors.ErrTimeout) {
		t.Error("failure state must not be reported as a timeout")
	}

	if *calls != 2 {
		t.Errorf("calls = %d, want 2", *calls)
	}

	if got.State != "FAILURE" {
		t.Errorf("last state = %q", got.State)
	}
}

func TestUntilFetchError(t *testing.T) {
	boom := stderrors.New("boom")
	calls := 0

	_, err := Until(context.Background(), target(4), func(context.Context) (Report[int], error) {
		calls++

		return Report[int]{}, boom
	})
	if !stderrors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestUntilInvalidTarget(t *testing.T) {
	fetch, calls := sequence("SUCCESS")

	if _, err := Until(context.Background(), target(0), fetch); !stderrors.Is(err, errors.ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}

	if *calls != 0 {
		t.Errorf("calls = %d, want 0", *calls)
	}
}

func TestUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	tgt := target(100)
	tgt.Interval = time.Hour

	_, err := Until(ctx, tgt, func(context.Context) (Report[int], error) {
		calls++
		cancel()

		return Report[int]{State: "STARTED"}, nil
	})
	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBudget(t *testing.T) {
	tgt := Target{MaxAttempts: 30, Interval: 10 * time.Second}
	if got := tgt.Budget(); got != 5*time.Minute {
		t.Errorf("Budget() = %s", got)
	}
}
