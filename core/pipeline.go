package core

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/lambdaforge/lambdaforge/config"
	"github.com/lambdaforge/lambdaforge/fs"
	"github.com/lambdaforge/lambdaforge/llm"
	"github.com/lambdaforge/lambdaforge/logger"
	"github.com/lambdaforge/lambdaforge/provision"
)

// Summary is what a finished run reports back to the user.
type Summary struct {
	StateBucket string
	LockTable   string
	RemoteURL   string
	Written     []string
	Warnings    []string
	// Replies holds the raw reply of every step that skipped a block.
	Replies []StepReply
	// Tree is the generated project layout, as listed by fs.ListFiles.
	Tree map[string]interface{}
}

type StepReply struct {
	Step  StepType
	Reply string
}

// keepReply records reply for the summary once per step.
func (s *Summary) keepReply(step StepType, reply string) {
	for _, r := range s.Replies {
		if r.Step == step {
			return
		}
	}
	s.Replies = append(s.Replies, StepReply{Step: step, Reply: reply})
}

type State struct {
	Config     *config.Config
	Names      config.Names
	Params     llm.PromptParams
	Llm        llm.LlmClient
	FileSystem *fs.FileSystem
	Terraform  *provision.Terraform
	Git        *provision.Git
	Replies    map[StepType]string
	Summary    Summary
	Logger     logger.Logger
}

// NewState wires one run. fsys must be rooted at cfg.ProjectDir; runner is used
// for both terraform and git.
func NewState(cfg *config.Config, names config.Names, client llm.LlmClient, fsys *fs.FileSystem, runner provision.Runner, l logger.Logger) *State {
	if l == nil {
		l = logger.NewNullLogger()
	}
	return &State{
		Config: cfg,
		Names:  names,
		Params: llm.PromptParams{
			ProjectName:     cfg.ProjectName,
			Region:          cfg.AWSRegion,
			Runtime:         cfg.LambdaRuntime,
			StateBucket:     names.StateBucket,
			LockTable:       names.LockTable,
			FunctionMessage: cfg.FunctionMessage,
		},
		Llm:        client,
		FileSystem: fsys,
		Terraform:  provision.NewTerraform(runner, cfg.TerraformBin, l),
		Git:        provision.NewGit(runner, cfg.GitBin, cfg.ProjectDir, l),
		Replies:    make(map[StepType]string),
		Summary: Summary{
			StateBucket: names.StateBucket,
			LockTable:   names.LockTable,
			RemoteURL:   cfg.RemoteURL,
		},
		Logger: l,
	}
}

// hostPath maps a project-relative path to the directory external tools run in.
func (s *State) hostPath(rel string) string {
	return filepath.Join(s.Config.ProjectDir, rel)
}

type Pipeline struct {
	stepManager StepManager
	state       *State
	publisher   StepPublisher
}

func NewPipeline(state *State, sm StepManager, pub StepPublisher) *Pipeline {
	if pub == nil {
		pub = &DefaultStepPublisher{}
	}
	return &Pipeline{
		stepManager: sm,
		state:       state,
		publisher:   pub,
	}
}

func (p *Pipeline) State() *State {
	return p.state
}

func (p *Pipeline) Execute(ctx context.Context) error {
	steps := p.stepManager.GetSteps()
	p.state.Logger.Info("Starting pipeline execution")
	for i, stepType := range steps {
		select {
		case <-ctx.Done():
			p.state.Logger.Info("Pipeline execution cancelled")
			return ctx.Err()
		default:
		}

		p.state.Logger.Info(fmt.Sprintf("Attempting to execute step %d: %v", i, stepType))
		step := p.stepManager.GetStep(stepType)
		if step == nil {
			p.state.Logger.Error(fmt.Sprintf("Step %v not found", stepType))
			p.publisher.Error(stepType, fmt.Errorf("step %v not found", stepType))
			return fmt.Errorf("step %v not found", stepType)
		}

		startTime := time.Now()
		if err := step.Execute(ctx, p.state); err != nil {
			p.state.Logger.Error(fmt.Sprintf("Error executing step %v: %v", stepType, err))
			p.publisher.Error(stepType, err)
			return err
		}
		p.state.Logger.Info(fmt.Sprintf("Step %v completed in %v", stepType, time.Since(startTime)))
		p.publisher.PublishStep(stepType)
	}

	p.state.Logger.Info("Pipeline execution completed")
	return nil
}

type StepPublisher interface {
	PublishStep(step StepType)
	Error(step StepType, err error)
}

type DefaultStepPublisher struct{}

func (p *DefaultStepPublisher) PublishStep(step StepType) {}

func (p *DefaultStepPublisher) Error(step StepType, err error) {}
