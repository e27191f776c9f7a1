package core

import "context"

type Step interface {
	Execute(ctx context.Context, state *State) error
}

type StepType int

const (
	EnsureDirectories StepType = iota
	GenerateBackend
	BootstrapBackend
	GenerateCoreInfra
	WriteRuntimeSource
	GenerateComputeInfra
	GenerateWorkflow
	WriteGitIgnore
	PublishRepository
	Done
)

var stepNames = [...]string{
	EnsureDirectories:    "Creating project directories",
	GenerateBackend:      "Generating state backend",
	BootstrapBackend:     "Bootstrapping state backend",
	GenerateCoreInfra:    "Generating core infrastructure",
	WriteRuntimeSource:   "Writing Lambda source",
	GenerateComputeInfra: "Adding Lambda and load balancer",
	GenerateWorkflow:     "Generating deploy workflow",
	WriteGitIgnore:       "Writing .gitignore",
	PublishRepository:    "Publishing repository",
	Done:                 "Done",
}

func (s StepType) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return "Unknown step"
	}
	return stepNames[s]
}

type StepManager interface {
	GetSteps() []StepType
	GetStep(StepType) Step
}

type DefaultStepManager struct {
	steps map[StepType]Step
}

func NewDefaultStepManager() *DefaultStepManager {
	return &DefaultStepManager{
		steps: map[StepType]Step{
			EnsureDirectories:    &EnsureDirectoriesStep{},
			GenerateBackend:      &GenerateBackendStep{},
			BootstrapBackend:     &BootstrapBackendStep{},
			GenerateCoreInfra:    &GenerateCoreInfraStep{},
			WriteRuntimeSource:   &WriteRuntimeSourceStep{},
			GenerateComputeInfra: &GenerateComputeInfraStep{},
			GenerateWorkflow:     &GenerateWorkflowStep{},
			WriteGitIgnore:       &WriteGitIgnoreStep{},
			PublishRepository:    &PublishRepositoryStep{},
			Done:                 &DoneStep{},
		},
	}
}

// GetSteps returns every step type in run order.
func (m *DefaultStepManager) GetSteps() []StepType {
	steps := make([]StepType, 0, len(stepNames))
	for s := EnsureDirectories; s <= Done; s++ {
		steps = append(steps, s)
	}
	return steps
}

func (m *DefaultStepManager) GetStep(t StepType) Step {
	return m.steps[t]
}
