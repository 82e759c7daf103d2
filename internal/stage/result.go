package stage

import "fmt"

// Result tallies what a single stage invocation did.
type Result struct {
	Considered int
	Succeeded  int
	Failed     int
	Skipped    int
	// Halted is set when the stage stopped early, such as on a reached
	// publish cap.
	Halted string
}

// Succeed records a successfully processed item.
func (r *Result) Succeed() {
	r.Considered++
	r.Succeeded++
}

// Fail records an item that failed and was left or marked for later.
func (r *Result) Fail() {
	r.Considered++
	r.Failed++
}

// Skip records an item that was eligible but intentionally not processed.
func (r *Result) Skip() {
	r.Considered++
	r.Skipped++
}

// Add merges other into r.
func (r *Result) Add(other Result) {
	r.Considered += other.Considered
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Skipped += other.Skipped
	if r.Halted == "" {
		r.Halted = other.Halted
	}
}

// Empty reports whether nothing was considered.
func (r Result) Empty() bool {
	return r.Considered == 0 && r.Halted == ""
}

func (r Result) String() string {
	s := fmt.Sprintf("considered=%d succeeded=%d failed=%d skipped=%d", r.Considered, r.Succeeded, r.Failed, r.Skipped)
	if r.Halted != "" {
		s += " halted=" + r.Halted
	}
	return s
}
