package cli

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lambdaforge/lambdaforge/config"
	"github.com/lambdaforge/lambdaforge/core"
	"github.com/lambdaforge/lambdaforge/fs"
	"github.com/lambdaforge/lambdaforge/llm"
	"github.com/lambdaforge/lambdaforge/logger"
	"github.com/lambdaforge/lambdaforge/provision"
)

var errEngineStopped = errors.New("engine stopped before the run started")

type ExecutionRequest struct {
	Config     *config.Config
	Names      config.Names
	ResultChan chan RunResult
	CreatedAt  time.Time
}

// RunResult is sent once per request when its pipeline stops.
type RunResult struct {
	State *core.State
	Err   error
}

type Engine struct {
	pub          core.StepPublisher
	logger       logger.Logger
	requests     chan ExecutionRequest
	workerWG     sync.WaitGroup
	shutdownChan chan struct{}
	shutdownOnce sync.Once

	newClient func(*llm.LlmConfig, logger.Logger) (llm.LlmClient, error)
	newFS     func(dir string) *fs.FileSystem
	runner    provision.Runner
}

func NewEngine(pub core.StepPublisher, l logger.Logger) *Engine {
	if l == nil {
		l = logger.NewNullLogger()
	}
	return &Engine{
		pub:          pub,
		logger:       l,
		requests:     make(chan ExecutionRequest, 1),
		shutdownChan: make(chan struct{}),
		newClient:    llm.NewClient,
		newFS:        fs.NewBasePathFileSystem,
		runner:       provision.NewExecRunner(),
	}
}

// Start launches the single worker. Runs touch one working tree, so they are
// never executed concurrently.
func (e *Engine) Start(ctx context.Context) {
	e.workerWG.Add(1)
	go e.worker(ctx)
}

func (e *Engine) worker(ctx context.Context) {
	defer e.workerWG.Done()
	for {
		select {
		case req := <-e.requests:
			req.ResultChan <- e.execute(ctx, req)
			close(req.ResultChan)
		case <-ctx.Done():
			e.drain(ctx.Err())
			return
		case <-e.shutdownChan:
			e.drain(errEngineStopped)
			return
		}
	}
}

// drain answers requests still queued when the worker stops.
func (e *Engine) drain(err error) {
	for {
		select {
		case req := <-e.requests:
			e.logger.Debug("Dropping queued run: " + err.Error())
			req.ResultChan <- RunResult{Err: err}
			close(req.ResultChan)
		default:
			return
		}
	}
}

func (e *Engine) execute(ctx context.Context, req ExecutionRequest) RunResult {
	cfg := req.Config
	e.logger.Debug("Using API key " + cfg.MaskedAPIKey())

	client, err := e.newClient(&llm.LlmConfig{
		Provider:    cfg.Provider,
		APIKey:      cfg.APIKey,
		ModelName:   cfg.ModelName,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		BatchID:     llm.EnsureBatchID(""),
		TellmURL:    cfg.TellmURL,
	}, e.logger)
	if err != nil {
		e.pub.Error(core.EnsureDirectories, err)
		return RunResult{Err: err}
	}

	state := core.NewState(cfg, req.Names, client, e.newFS(cfg.ProjectDir), e.runner, e.logger)
	pipeline := core.NewPipeline(state, core.NewDefaultStepManager(), e.pub)
	return RunResult{State: state, Err: pipeline.Execute(ctx)}
}

func (e *Engine) AddRequest(cfg *config.Config, names config.Names) chan RunResult {
	resultChan := make(chan RunResult, 1)
	e.requests <- ExecutionRequest{
		Config:     cfg,
		Names:      names,
		ResultChan: resultChan,
		CreatedAt:  time.Now(),
	}
	return resultChan
}

func (e *Engine) Shutdown(timeout time.Duration) {
	e.shutdownOnce.Do(func() { close(e.shutdownChan) })

	done := make(chan struct{})
	go func() {
		e.workerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Debug("Engine shut down gracefully")
	case <-time.After(timeout):
		e.logger.Warn("Shutdown timed out, a run may still be in progress")
	}
}
