package campaign

import "fmt"

// ErrStepOutOfRange is returned for step indices outside [0, StepCount).
var ErrStepOutOfRange = fmt.Errorf("campaign step out of range")

// Content is the ordered list of step payloads. The scheduler only uses
// StepCount to bound indices and passes Step text through untouched.
type Content interface {
	StepCount() int
	Step(index int) (string, error)
}
