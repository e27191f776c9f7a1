package provision

import (
	"context"
	"fmt"

	"github.com/lambdaforge/lambdaforge/logger"
)

// Terraform drives the terraform binary against one working directory.
type Terraform struct {
	runner Runner
	binary string
	logger logger.Logger
}

func NewTerraform(runner Runner, binary string, l logger.Logger) *Terraform {
	if binary == "" {
		binary = "terraform"
	}
	if l == nil {
		l = logger.NewNullLogger()
	}
	return &Terraform{runner: runner, binary: binary, logger: l}
}

// Init runs `terraform init -input=false` in dir.
func (t *Terraform) Init(ctx context.Context, dir string) (Result, error) {
	return t.run(ctx, dir, "init", "-input=false")
}

// Apply runs `terraform apply -auto-approve -input=false` in dir.
func (t *Terraform) Apply(ctx context.Context, dir string) (Result, error) {
	return t.run(ctx, dir, "apply", "-auto-approve", "-input=false")
}

func (t *Terraform) run(ctx context.Context, dir string, args ...string) (Result, error) {
	log := t.logger.WithField("dir", dir)
	log.Info(fmt.Sprintf("Running terraform %s", args[0]))

	res, err := t.runner.Run(ctx, dir, t.binary, args...)
	if res.Stdout != "" {
		log.Debug(res.Stdout)
	}
	if res.Stderr != "" {
		log.Debug(res.Stderr)
	}
	if err != nil {
		log.Error(fmt.Sprintf("terraform %s failed: %v", args[0], err))
		return res, fmt.Errorf("terraform %s failed: %w", args[0], err)
	}

	log.Info(fmt.Sprintf("terraform %s completed", args[0]))
	return res, nil
}
