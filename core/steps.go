package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lambdaforge/lambdaforge/config"
	"github.com/lambdaforge/lambdaforge/extract"
	"github.com/lambdaforge/lambdaforge/llm"
	"github.com/lambdaforge/lambdaforge/provision"
	"github.com/lambdaforge/lambdaforge/validate"
)

const (
	backendDir   = "backend-bootstrap"
	sourceDir    = "src"
	workflowsDir = ".github/workflows"
)

const packageJSON = `{
  "name": "my-nodejs-app",
  "version": "1.0.0",
  "description": "A simple Node.js Lambda app",
  "main": "index.js",
  "scripts": {
    "test": "echo \"Error: no test specified\" && exit 1"
  },
  "keywords": [],
  "author": "",
  "license": "ISC"
}
`

const gitIgnore = `.env
node_modules/
npm-debug.log*
yarn-debug.log*
yarn-error.log*
.terraform/
*.tfstate*
__pycache__/
lambda.zip
`

func indexJS(message string) string {
	body, _ := json.Marshal(message)
	return fmt.Sprintf(`exports.handler = async (event) => {
  console.log("Lambda invoked with event:", JSON.stringify(event, null, 2));
  return {
    statusCode: 200,
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify({ message: %s }),
  };
};
`, body)
}

// artifact is one block a step expects in a reply. Key selects the
// on-missing rule; it equals Path except for revisions of an earlier file.
type artifact struct {
	Key  string
	Path string
	Tag  string
}

// accept checks a block against its artifact rule. It returns the content to
// write, or ok=false when the block is skipped with a warning.
func accept(state *State, step StepType, a artifact, b extract.Block, reply string) (string, bool, error) {
	log := state.Logger.WithField("path", a.Path)

	if !b.Found {
		missing := &MissingBlockError{Step: step, Path: a.Path, Tag: a.Tag, Reply: reply}
		if state.Config.IsFatal(a.Key) {
			log.Error(missing.Error())
			return "", false, missing
		}
		log.WithField("reply", reply).Warn(fmt.Sprintf("Could not find %s block for %s, keeping existing file", a.Tag, a.Path))
		state.Summary.Warnings = append(state.Summary.Warnings, missing.Error())
		state.Summary.keepReply(step, reply)
		return "", false, nil
	}

	if state.Config.ValidateContent {
		if err := validate.Content(a.Path, a.Tag, b.Content); err != nil {
			if state.Config.IsFatal(a.Key) {
				log.Error(err.Error())
				return "", false, &InvalidBlockError{Step: step, Path: a.Path, Reply: reply, Err: err}
			}
			log.WithField("reply", reply).Warn(fmt.Sprintf("Discarding invalid %s: %v", a.Path, err))
			state.Summary.Warnings = append(state.Summary.Warnings, err.Error())
			state.Summary.keepReply(step, reply)
			return "", false, nil
		}
	}
	return b.Content, true, nil
}

// generate asks the model for artifacts and writes every accepted block. No
// file is written unless all fatal artifacts are present and valid.
func generate(ctx context.Context, state *State, step StepType, prompt string, artifacts []artifact) error {
	want := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		want[a.Path] = a.Tag
	}

	reply, blocks, err := llm.GenerateFiles(ctx, state.Llm, prompt, want)
	if err != nil {
		state.Logger.Error(fmt.Sprintf("Failed to generate %s", step))
		return fmt.Errorf("failed to generate %s: %w", step, err)
	}
	state.Replies[step] = reply

	contents := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		content, ok, err := accept(state, step, a, blocks[a.Path], reply)
		if err != nil {
			return err
		}
		if ok {
			contents[a.Path] = content
		}
	}

	for _, a := range artifacts {
		content, ok := contents[a.Path]
		if !ok {
			continue
		}
		if err := writeFile(state, a.Path, content); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(state *State, path, content string) error {
	if err := state.FileSystem.WriteFile(path, content); err != nil {
		state.Logger.Error(fmt.Sprintf("Failed to write %s", path))
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	state.Logger.Debug(fmt.Sprintf("Created %s", path))
	for _, w := range state.Summary.Written {
		if w == path {
			return nil
		}
	}
	state.Summary.Written = append(state.Summary.Written, path)
	return nil
}

type EnsureDirectoriesStep struct{}

func (s *EnsureDirectoriesStep) Execute(ctx context.Context, state *State) error {
	state.Logger.Debug("Creating project directories.")
	if err := state.FileSystem.EnsureDirs(workflowsDir, backendDir, sourceDir); err != nil {
		state.Logger.Error("Failed to create project directories")
		return fmt.Errorf("failed to create project directories: %w", err)
	}
	return nil
}

type GenerateBackendStep struct{}

func (s *GenerateBackendStep) Execute(ctx context.Context, state *State) error {
	state.Logger.Debug("Generating state backend configuration.")
	return generate(ctx, state, GenerateBackend, llm.BackendPrompt(state.Params), []artifact{
		{Key: config.BackendTF, Path: config.BackendTF, Tag: "hcl"},
	})
}

type BootstrapBackendStep struct{}

func (s *BootstrapBackendStep) Execute(ctx context.Context, state *State) error {
	if state.Config.SkipBootstrap {
		state.Logger.Info("Skipping backend bootstrap")
		return nil
	}
	if !state.FileSystem.FileExists(config.BackendTF) {
		state.Logger.Error("No backend configuration to apply")
		return fmt.Errorf("failed to bootstrap backend: %s was not written", config.BackendTF)
	}

	dir := state.hostPath(backendDir)
	if _, err := state.Terraform.Init(ctx, dir); err != nil {
		return fmt.Errorf("failed to bootstrap backend: %w", err)
	}
	if _, err := state.Terraform.Apply(ctx, dir); err != nil {
		return fmt.Errorf("failed to bootstrap backend: %w", err)
	}
	state.Logger.Info("Terraform backend setup complete")
	return nil
}

type GenerateCoreInfraStep struct{}

func (s *GenerateCoreInfraStep) Execute(ctx context.Context, state *State) error {
	state.Logger.Debug("Generating main.tf and variables.tf.")
	return generate(ctx, state, GenerateCoreInfra, llm.CoreInfraPrompt(state.Params), []artifact{
		{Key: config.MainTF, Path: config.MainTF, Tag: "hcl"},
		{Key: config.VariablesTF, Path: config.VariablesTF, Tag: "hcl"},
	})
}

type WriteRuntimeSourceStep struct{}

func (s *WriteRuntimeSourceStep) Execute(ctx context.Context, state *State) error {
	state.Logger.Debug("Writing Lambda source placeholders.")
	if err := writeFile(state, config.IndexJS, indexJS(state.Config.FunctionMessage)); err != nil {
		return err
	}
	return writeFile(state, config.PackageJSON, packageJSON)
}

type GenerateComputeInfraStep struct{}

func (s *GenerateComputeInfraStep) Execute(ctx context.Context, state *State) error {
	state.Logger.Debug("Updating main.tf with Lambda and ALB.")
	current, err := state.FileSystem.ReadFile(config.MainTF)
	if err != nil {
		state.Logger.Error("Failed to read main.tf")
		return fmt.Errorf("failed to read %s: %w", config.MainTF, err)
	}
	return generate(ctx, state, GenerateComputeInfra, llm.ComputeUpdatePrompt(state.Params, current), []artifact{
		{Key: config.UpdatedMainTF, Path: config.MainTF, Tag: "hcl"},
		{Key: config.IndexJS, Path: config.IndexJS, Tag: "javascript"},
		{Key: config.PackageJSON, Path: config.PackageJSON, Tag: "json"},
	})
}

type GenerateWorkflowStep struct{}

func (s *GenerateWorkflowStep) Execute(ctx context.Context, state *State) error {
	state.Logger.Debug("Generating GitHub Actions workflow.")
	return generate(ctx, state, GenerateWorkflow, llm.WorkflowPrompt(state.Params), []artifact{
		{Key: config.WorkflowYML, Path: config.WorkflowYML, Tag: "yaml"},
	})
}

type WriteGitIgnoreStep struct{}

func (s *WriteGitIgnoreStep) Execute(ctx context.Context, state *State) error {
	return writeFile(state, config.GitIgnore, gitIgnore)
}

type PublishRepositoryStep struct{}

func (s *PublishRepositoryStep) Execute(ctx context.Context, state *State) error {
	if state.Config.SkipPublish {
		state.Logger.Info("Skipping repository publish")
		return nil
	}
	err := state.Git.Publish(ctx, provision.PublishOptions{
		Message:    state.Config.CommitMessage,
		Branch:     state.Config.Branch,
		RemoteName: state.Config.RemoteName,
		RemoteURL:  state.Config.RemoteURL,
	})
	if err != nil {
		return fmt.Errorf("failed to publish repository: %w", err)
	}
	return nil
}

// projectNoise are directories left out of the reported project tree.
var projectNoise = []string{".git", ".terraform", "node_modules"}

type DoneStep struct{}

func (s *DoneStep) Execute(ctx context.Context, state *State) error {
	tree, err := state.FileSystem.ListFiles(".", projectNoise...)
	if err != nil {
		state.Logger.Warn(fmt.Sprintf("Failed to list project files: %v", err))
	}
	state.Summary.Tree = tree
	state.Logger.
		WithField("state_bucket", state.Summary.StateBucket).
		WithField("lock_table", state.Summary.LockTable).
		WithField("remote_url", state.Summary.RemoteURL).
		Info("Deployment automation finished")
	return nil
}
