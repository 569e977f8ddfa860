package lifecycle

import "testing"

func TestFromPipelineState(t *testing.T) {
	t.Parallel()

	cases := []struct {
		state string
		want  Status
	}{
		{"created", StatusRunning},
		{"waiting_for_resource", StatusRunning},
		{"preparing", StatusRunning},
		{"pending", StatusRunning},
		{"running", StatusRunning},
		{"success", StatusSuccessful},
		{"failed", StatusFailed},
		{"canceled", StatusCanceled},
		{"skipped", StatusDismissed},
		{"scheduled", Status("scheduled")},
		{"manual", Status("manual")},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.state, func(t *testing.T) {
			t.Parallel()
			if got := FromPipelineState(tc.state); got != tc.want {
				t.Fatalf("unexpected status: got=%q want=%q", got, tc.want)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	t.Parallel()

	terminal := []Status{StatusSuccessful, StatusFailed, StatusCanceled, StatusDismissed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("expected %q to be terminal", s)
		}
	}
	for _, s := range []Status{StatusAccepted, StatusRunning} {
		if s.Terminal() {
			t.Fatalf("expected %q to be non-terminal", s)
		}
	}
}
