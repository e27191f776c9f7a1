package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lambdaforge/lambdaforge/config"
	"github.com/lambdaforge/lambdaforge/core"
	"github.com/lambdaforge/lambdaforge/fs"
	"github.com/lambdaforge/lambdaforge/llm"
	"github.com/lambdaforge/lambdaforge/logger"
	"github.com/lambdaforge/lambdaforge/provision"
	"github.com/lambdaforge/lambdaforge/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type scriptedLLM struct {
	replies map[string]string
}

func (s *scriptedLLM) GetCompletion(ctx context.Context, prompt string) (string, error) {
	for marker, reply := range s.replies {
		if strings.Contains(prompt, marker) {
			return reply, nil
		}
	}
	return "", errors.New("unexpected prompt")
}

type nopRunner struct{ calls int }

func (r *nopRunner) Run(ctx context.Context, dir, name string, args ...string) (provision.Result, error) {
	r.calls++
	return provision.Result{}, nil
}

func block(path, tag, body string) string {
	return "### " + path + " " + tag + "\n```" + tag + "\n" + body + "\n```\n"
}

func TestExtractReply(t *testing.T) {
	reply := "Intro\n" + block("main.tf", "hcl", `resource "a" "b" {}`)

	got, err := extractReply(strings.NewReader(reply), "main.tf", "hcl")
	require.NoError(t, err)
	assert.Equal(t, `resource "a" "b" {}`, got)

	got, err = extractReply(strings.NewReader(reply), "", "hcl")
	require.NoError(t, err)
	assert.Equal(t, `resource "a" "b" {}`, got)

	_, err = extractReply(strings.NewReader(reply), "variables.tf", "hcl")
	assert.EqualError(t, err, "no hcl block labeled variables.tf found")
}

func TestExtractReply_NoTagTakesFirstFence(t *testing.T) {
	reply := block("src/index.js", "javascript", "exports.handler = 1;") + block("main.tf", "hcl", `resource "a" "b" {}`)

	got, err := extractReply(strings.NewReader(reply), "", "")
	require.NoError(t, err)
	assert.Equal(t, "exports.handler = 1;", got)

	_, err = extractReply(strings.NewReader(reply), "main.tf", "")
	assert.EqualError(t, err, "a --tag is required to find the block labeled main.tf")

	_, err = extractReply(strings.NewReader("no code here"), "", "")
	assert.EqualError(t, err, "no fenced code block found")
}

func TestRunFlagsApply(t *testing.T) {
	cfg := config.DefaultConfig()
	runFlags{dir: "/tmp/p", remote: "https://r", skipBootstrap: true, noValidate: true}.apply(cfg)

	assert.Equal(t, "/tmp/p", cfg.ProjectDir)
	assert.Equal(t, "https://r", cfg.RemoteURL)
	assert.True(t, cfg.SkipBootstrap)
	assert.False(t, cfg.SkipPublish)
	assert.False(t, cfg.ValidateContent)
}

func TestEngine_RunsPipeline(t *testing.T) {
	client := &scriptedLLM{replies: map[string]string{
		"### backend-bootstrap/backend.tf hcl":  block("backend-bootstrap/backend.tf", "hcl", `resource "aws_s3_bucket" "state" {}`),
		"### variables.tf hcl":                  block("main.tf", "hcl", `resource "aws_vpc" "main" {}`) + block("variables.tf", "hcl", `variable "aws_region" {}`),
		"### src/index.js javascript":           block("main.tf", "hcl", `resource "aws_lb" "alb" {}`),
		"### .github/workflows/deploy.yml yaml": block(".github/workflows/deploy.yml", "yaml", "on: push\njobs: {}"),
	}}
	memFS := fs.NewMemoryFileSystem()
	runner := &nopRunner{}

	pub := NewCliStepPublisher(logger.NewNullLogger())
	engine := NewEngine(pub, nil)
	engine.newClient = func(*llm.LlmConfig, logger.Logger) (llm.LlmClient, error) { return client, nil }
	engine.newFS = func(string) *fs.FileSystem { return memFS }
	engine.runner = runner

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)
	defer engine.Shutdown(time.Second)

	cfg := config.DefaultConfig()
	cfg.APIKey = "k"
	cfg.SkipPublish = true

	var out bytes.Buffer
	res := runPlain(ctx, &out, pub, engine.AddRequest(cfg, config.NamesWithSuffix(cfg.ProjectName, "deadbeef")))
	require.NoError(t, res.Err)

	assert.Equal(t, 2, runner.calls, "terraform init and apply")
	assert.Equal(t, "pankaj-devops-lambda-tfstate-deadbeef", res.State.Summary.StateBucket)
	assert.Equal(t, len(core.NewDefaultStepManager().GetSteps()), strings.Count(out.String(), "\n"))

	mainTF, err := memFS.ReadFile("main.tf")
	require.NoError(t, err)
	assert.Equal(t, `resource "aws_lb" "alb" {}`, mainTF)
}

func TestEngine_WritesIntoWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	client := &scriptedLLM{replies: map[string]string{
		"### backend-bootstrap/backend.tf hcl":  block("backend-bootstrap/backend.tf", "hcl", `resource "aws_s3_bucket" "state" {}`),
		"### variables.tf hcl":                  block("main.tf", "hcl", `resource "aws_vpc" "main" {}`) + block("variables.tf", "hcl", `variable "aws_region" {}`),
		"### src/index.js javascript":           block("main.tf", "hcl", `resource "aws_lb" "alb" {}`),
		"### .github/workflows/deploy.yml yaml": block(".github/workflows/deploy.yml", "yaml", "on: push\njobs: {}"),
	}}

	pub := NewCliStepPublisher(logger.NewNullLogger())
	engine := NewEngine(pub, nil)
	engine.newClient = func(*llm.LlmConfig, logger.Logger) (llm.LlmClient, error) { return client, nil }
	engine.runner = &nopRunner{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)
	defer engine.Shutdown(time.Second)

	cfg := config.DefaultConfig()
	cfg.APIKey = "k"
	cfg.SkipPublish = true
	require.Equal(t, ".", cfg.ProjectDir)

	var out bytes.Buffer
	res := runPlain(ctx, &out, pub, engine.AddRequest(cfg, config.NamesWithSuffix(cfg.ProjectName, "deadbeef")))
	require.NoError(t, res.Err)

	mainTF, err := os.ReadFile(filepath.Join(dir, "main.tf"))
	require.NoError(t, err)
	assert.Equal(t, `resource "aws_lb" "alb" {}`, string(mainTF))
	assert.FileExists(t, filepath.Join(dir, ".github", "workflows", "deploy.yml"))
	assert.Contains(t, res.State.Summary.Tree, "backend-bootstrap")
}

func TestEngine_QueuedRequestAnsweredOnCancel(t *testing.T) {
	pub := NewCliStepPublisher(logger.NewNullLogger())
	engine := NewEngine(pub, nil)
	engine.newClient = func(*llm.LlmConfig, logger.Logger) (llm.LlmClient, error) {
		return &scriptedLLM{}, nil
	}
	engine.newFS = func(string) *fs.FileSystem { return fs.NewMemoryFileSystem() }

	resultChan := engine.AddRequest(config.DefaultConfig(), config.Names{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine.Start(ctx)
	defer engine.Shutdown(time.Second)

	res, ok := awaitResult(resultChan, time.Second)
	require.True(t, ok)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestRunPlain_ReturnsOnCancel(t *testing.T) {
	grace := cancelGrace
	cancelGrace = 10 * time.Millisecond
	t.Cleanup(func() { cancelGrace = grace })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	res := runPlain(ctx, &out, NewCliStepPublisher(logger.NewNullLogger()), make(chan RunResult))
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestEngine_ClientError(t *testing.T) {
	pub := NewCliStepPublisher(logger.NewNullLogger())
	engine := NewEngine(pub, nil)
	engine.newClient = func(*llm.LlmConfig, logger.Logger) (llm.LlmClient, error) {
		return nil, errors.New("Gemini API key is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)
	defer engine.Shutdown(time.Second)

	var out bytes.Buffer
	res := runPlain(ctx, &out, pub, engine.AddRequest(config.DefaultConfig(), config.Names{}))
	assert.EqualError(t, res.Err, "Gemini API key is required")
	assert.Nil(t, res.State)
	assert.Contains(t, out.String(), "✗")
}

func TestRenderFailure_MissingBlockShowsReply(t *testing.T) {
	var out bytes.Buffer
	err := &core.MissingBlockError{Step: core.GenerateWorkflow, Path: ".github/workflows/deploy.yml", Tag: "yaml", Reply: "Sorry, I can't help."}
	renderFailure(&out, err)

	assert.Contains(t, out.String(), "deploy.yml")
	assert.Contains(t, out.String(), "Sorry, I can't help.")
}

func TestRenderFailure_InvalidBlockShowsOnlyItsReply(t *testing.T) {
	var out bytes.Buffer
	err := &core.InvalidBlockError{
		Step:  core.GenerateBackend,
		Path:  "backend-bootstrap/backend.tf",
		Reply: "### backend-bootstrap/backend.tf hcl\nbroken",
		Err:   &validate.Error{Path: "backend-bootstrap/backend.tf", Diagnostics: []validate.Diagnostic{{Line: 2, Column: 10, Message: "Invalid expression"}}},
	}
	renderFailure(&out, err)

	assert.Contains(t, out.String(), "2:10: Invalid expression")
	assert.Contains(t, out.String(), "AI response (Generating state backend) was:")
	assert.Equal(t, 1, strings.Count(out.String(), "AI response"))
}

func TestRenderSummary_ShowsSkippedRepliesAndTree(t *testing.T) {
	var out bytes.Buffer
	renderSummary(&out, core.Summary{
		StateBucket: "b",
		LockTable:   "l",
		Warnings:    []string{"no javascript block"},
		Replies:     []core.StepReply{{Step: core.GenerateComputeInfra, Reply: "I could not do that."}},
		Tree: map[string]interface{}{
			"main.tf": nil,
			"src":     map[string]interface{}{"index.js": nil},
		},
	}, false)

	s := out.String()
	assert.Contains(t, s, "Warning: no javascript block")
	assert.Contains(t, s, "I could not do that.")
	assert.Contains(t, s, "src/")
	assert.Less(t, strings.Index(s, "src/"), strings.Index(s, "main.tf"), "directories are listed first")
	assert.NotContains(t, s, "Repository:")
}

func TestRenderFailure_PushHint(t *testing.T) {
	var out bytes.Buffer
	err := &provision.CommandError{Cmd: "git push -u origin main", Dir: ".", Result: provision.Result{ExitCode: 128}}
	renderFailure(&out, err)
	assert.Contains(t, out.String(), "push access")
}

func TestCliStepPublisher_DropsWhenFull(t *testing.T) {
	pub := NewCliStepPublisher(logger.NewNullLogger())
	for i := 0; i < 105; i++ {
		pub.PublishStep(core.Done)
	}
	assert.Len(t, pub.stepChan, 100)

	pub.Error(core.GenerateBackend, errors.New("boom"))
	se := <-pub.errorChan
	assert.Equal(t, core.GenerateBackend, se.Step)
	assert.Equal(t, "Generating state backend: boom", se.Error())
}
