package stage_test

import (
	"testing"

	"orbix/internal/stage"
)

func TestResultCounters(t *testing.T) {
	var r stage.Result
	if !r.Empty() {
		t.Fatal("expected zero result to be empty")
	}
	r.Succeed()
	r.Succeed()
	r.Fail()
	r.Skip()

	if r.Considered != 4 || r.Succeeded != 2 || r.Failed != 1 || r.Skipped != 1 {
		t.Fatalf("unexpected counters: %+v", r)
	}
	if got := r.String(); got != "considered=4 succeeded=2 failed=1 skipped=1" {
		t.Fatalf("unexpected string %q", got)
	}
}

func TestResultAddKeepsFirstHalt(t *testing.T) {
	r := stage.Result{Succeeded: 1, Considered: 1, Halted: "daily cap"}
	r.Add(stage.Result{Failed: 2, Considered: 2, Halted: "other"})
	if r.Considered != 3 || r.Failed != 2 {
		t.Fatalf("unexpected merge: %+v", r)
	}
	if r.Halted != "daily cap" {
		t.Fatalf("expected first halt reason kept, got %q", r.Halted)
	}
}

func TestHealthConstructors(t *testing.T) {
	if h := stage.Healthy("render"); !h.Ready || h.Name != "render" {
		t.Fatalf("unexpected healthy record %+v", h)
	}
	if h := stage.Unhealthy("publish", "youtube not configured"); h.Ready || h.Detail == "" {
		t.Fatalf("unexpected unhealthy record %+v", h)
	}
}
