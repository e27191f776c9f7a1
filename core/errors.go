package core

import "fmt"

// MissingBlockError reports a reply that lacked an expected labeled block.
// Reply holds the raw text so it can be shown to the user.
type MissingBlockError struct {
	Step  StepType
	Path  string
	Tag   string
	Reply string
}

func (e *MissingBlockError) Error() string {
	return fmt.Sprintf("%s: no %q block labeled %q in reply", e.Step, e.Tag, e.Path)
}

// InvalidBlockError reports a block that was found but failed validation.
type InvalidBlockError struct {
	Step  StepType
	Path  string
	Reply string
	Err   error
}

func (e *InvalidBlockError) Error() string {
	return fmt.Sprintf("generated %s is invalid: %v", e.Path, e.Err)
}

func (e *InvalidBlockError) Unwrap() error {
	return e.Err
}
