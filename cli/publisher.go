package cli

import (
	"fmt"

	"github.com/lambdaforge/lambdaforge/core"
	"github.com/lambdaforge/lambdaforge/logger"
)

// stepError is a failed step as delivered to the UI.
type stepError struct {
	Step core.StepType
	Err  error
}

func (e stepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

type CliStepPublisher struct {
	stepChan  chan core.StepType
	errorChan chan stepError
	logger    logger.Logger
}

func NewCliStepPublisher(logger logger.Logger) *CliStepPublisher {
	return &CliStepPublisher{
		stepChan:  make(chan core.StepType, 100),
		errorChan: make(chan stepError, 10),
		logger:    logger,
	}
}

func (p *CliStepPublisher) PublishStep(step core.StepType) {
	select {
	case p.stepChan <- step:
		p.logger.Debug(fmt.Sprintf("Successfully published step: %v", step))
	default:
		p.logger.Warn(fmt.Sprintf("Failed to publish step: %v. Channel full.", step))
	}
}

func (p *CliStepPublisher) Error(step core.StepType, err error) {
	select {
	case p.errorChan <- stepError{Step: step, Err: err}:
		p.logger.Debug(fmt.Sprintf("Successfully published error for step: %v", step))
	default:
		p.logger.Warn(fmt.Sprintf("Failed to publish error for step: %v. Channel full.", step))
	}
}
