package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lambdaforge/lambdaforge/config"
	"github.com/lambdaforge/lambdaforge/extract"
	"github.com/lambdaforge/lambdaforge/fs"
	"github.com/lambdaforge/lambdaforge/logger"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// errReported marks failures that were already printed to the user.
var errReported = errors.New("run failed")

var rootCmd = &cobra.Command{
	Use:           "lambdaforge",
	Short:         "lambdaforge generates and publishes Lambda deployment infrastructure",
	Long:          `lambdaforge asks a language model for Terraform, Lambda source and a GitHub Actions workflow, bootstraps a Terraform state backend and pushes the result to a git remote.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate, bootstrap and publish the deployment project",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags, err := parseRunFlags(cmd)
		if err != nil {
			return fmt.Errorf("error parsing flags: %w", err)
		}
		return runProject(cmd.Context(), flags)
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a labeled code block from a saved model reply",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		tag, _ := cmd.Flags().GetString("tag")
		id, _ := cmd.Flags().GetString("id")

		in := cmd.InOrStdin()
		if file != "" {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		content, err := extractReply(in, id, tag)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), content)
		return nil
	},
}

var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "Zip the Lambda source directory for upload",
	RunE: func(cmd *cobra.Command, args []string) error {
		src, _ := cmd.Flags().GetString("src")
		out, _ := cmd.Flags().GetString("out")

		n, err := fs.NewOsFileSystem().WriteToZip(src, out)
		if err != nil {
			return fmt.Errorf("failed to package %s: %w", src, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Packaged %d files from %s into %s\n", n, src, nameStyle.Render(out))
		return nil
	},
}

var namesCmd = &cobra.Command{
	Use:   "names",
	Short: "Print a fresh set of unique backend resource names",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetString("project")
		names := config.NewRunNames(project)
		fmt.Fprintf(cmd.OutOrStdout(), "state_bucket: %s\nlock_table: %s\n", names.StateBucket, names.LockTable)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(packageCmd)
	rootCmd.AddCommand(namesCmd)

	runCmd.Flags().StringP("config", "c", "", "Path to configuration file")
	runCmd.Flags().StringP("dir", "d", "", "Project directory to generate into")
	runCmd.Flags().StringP("remote", "r", "", "Git remote URL to push to")
	runCmd.Flags().Bool("skip-bootstrap", false, "Do not run terraform for the state backend")
	runCmd.Flags().Bool("skip-publish", false, "Do not commit and push the generated project")
	runCmd.Flags().Bool("no-validate", false, "Write generated files without parsing them first")
	runCmd.Flags().Bool("plain", false, "Print plain progress lines instead of the interactive view")

	extractCmd.Flags().StringP("file", "f", "", "File holding the reply (defaults to stdin)")
	extractCmd.Flags().StringP("tag", "t", "", "Language tag of the block; required with --id")
	extractCmd.Flags().String("id", "", "File path label of the block; empty takes the first fenced block with --tag, or of any language")

	packageCmd.Flags().String("src", "src", "Directory to package")
	packageCmd.Flags().String("out", "lambda.zip", "Zip file to write")

	namesCmd.Flags().StringP("project", "p", config.DefaultConfig().ProjectName, "Project name prefix")
}

type runFlags struct {
	config        string
	dir           string
	remote        string
	skipBootstrap bool
	skipPublish   bool
	noValidate    bool
	plain         bool
	verbose       bool
}

func parseRunFlags(cmd *cobra.Command) (runFlags, error) {
	var f runFlags
	var err error
	if f.config, err = cmd.Flags().GetString("config"); err != nil {
		return f, err
	}
	if f.dir, err = cmd.Flags().GetString("dir"); err != nil {
		return f, err
	}
	if f.remote, err = cmd.Flags().GetString("remote"); err != nil {
		return f, err
	}
	if f.skipBootstrap, err = cmd.Flags().GetBool("skip-bootstrap"); err != nil {
		return f, err
	}
	if f.skipPublish, err = cmd.Flags().GetBool("skip-publish"); err != nil {
		return f, err
	}
	if f.noValidate, err = cmd.Flags().GetBool("no-validate"); err != nil {
		return f, err
	}
	if f.plain, err = cmd.Flags().GetBool("plain"); err != nil {
		return f, err
	}
	if f.verbose, err = cmd.Flags().GetBool("verbose"); err != nil {
		return f, err
	}
	return f, nil
}

// apply overlays command-line flags on the loaded configuration.
func (f runFlags) apply(cfg *config.Config) {
	if f.dir != "" {
		cfg.ProjectDir = f.dir
	}
	if f.remote != "" {
		cfg.RemoteURL = f.remote
	}
	if f.skipBootstrap {
		cfg.SkipBootstrap = true
	}
	if f.skipPublish {
		cfg.SkipPublish = true
	}
	if f.noValidate {
		cfg.ValidateContent = false
	}
}

func extractReply(r io.Reader, id, tag string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read reply: %w", err)
	}

	if id != "" && tag == "" {
		return "", fmt.Errorf("a --tag is required to find the block labeled %s", id)
	}

	var content string
	var ok bool
	if id == "" {
		content, ok = extract.ExtractFenced(string(data), tag)
	} else {
		content, ok = extract.Extract(string(data), id, tag)
	}
	if !ok {
		if id == "" && tag == "" {
			return "", errors.New("no fenced code block found")
		}
		if id == "" {
			return "", fmt.Errorf("no %s code block found", tag)
		}
		return "", fmt.Errorf("no %s block labeled %s found", tag, id)
	}
	return content, nil
}

// setupLogger writes JSON logs to ~/.lambdaforge/lambdaforge.log and, when
// verbose, human-readable logs to stderr.
func setupLogger(verbose bool) (logger.Logger, func()) {
	var loggers logger.Tee
	closer := func() {}

	if f, err := logger.OpenLogFile(); err == nil {
		loggers = append(loggers, logger.New(f, zerolog.DebugLevel))
		closer = func() { f.Close() }
	}
	if verbose {
		loggers = append(loggers, logger.NewConsole(os.Stderr, zerolog.DebugLevel))
	}
	if len(loggers) == 0 {
		return logger.NewNullLogger(), closer
	}
	return loggers, closer
}

func runProject(parent context.Context, flags runFlags) error {
	cfg, err := config.LoadConfig(flags.config)
	if err != nil {
		return err
	}
	flags.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, closeLog := setupLogger(flags.verbose)
	defer closeLog()
	log.Debug("Initializing lambdaforge")

	names := config.NewRunNames(cfg.ProjectName)
	publisher := NewCliStepPublisher(log)
	engine := NewEngine(publisher, log)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt)
	defer cancel()

	engine.Start(ctx)
	defer engine.Shutdown(5 * time.Second)
	resultChan := engine.AddRequest(cfg, names)

	plain := flags.plain || flags.verbose || !isatty.IsTerminal(os.Stdout.Fd())

	var res RunResult
	if plain {
		fmt.Printf("Generating %s (state bucket %s)\n", nameStyle.Render(cfg.ProjectName), names.StateBucket)
		res = runPlain(ctx, os.Stdout, publisher, resultChan)
	} else {
		uiCtx, uiCancel := context.WithCancel(ctx)
		model := newRunModel(uiCtx, cancel, publisher, resultChan, log)
		final, err := tea.NewProgram(model).Run()
		uiCancel()
		if err != nil {
			return fmt.Errorf("error running program: %w", err)
		}
		if m, ok := final.(runModel); ok && m.result != nil {
			res = *m.result
		} else {
			cancel()
			var done bool
			if res, done = awaitResult(resultChan, cancelGrace); !done {
				return errors.New("run interrupted")
			}
		}
	}

	if res.Err != nil {
		renderFailure(os.Stderr, res.Err)
		return errReported
	}
	renderSummary(os.Stdout, res.State.Summary, !cfg.SkipPublish)
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, failStyle.Render("Error: "+err.Error()))
		}
		os.Exit(1)
	}
}
