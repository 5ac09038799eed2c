package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zhubert/changeset-release/ci"
	"github.com/zhubert/changeset-release/cli"
	"github.com/zhubert/changeset-release/config"
	pexec "github.com/zhubert/changeset-release/exec"
	"github.com/zhubert/changeset-release/logger"
	"github.com/zhubert/changeset-release/release"
)

// defaultLogFile is what a bare --log-file parses to.
const defaultLogFile = "default"

// options holds the global flags.
type options struct {
	cwd            string
	baseBranch     string
	title          string
	commitMessage  string
	versionCommand string
	publish        bool
	publishCommand string
	dedupe         bool
	createReleases bool
	setupGitUser   bool

	debug   bool
	logFile string
	timeout time.Duration
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "changeset-release",
		Short: "Open the version PR or publish, depending on pending changesets",
		Long: `changeset-release runs on every push to a base branch.

While changesets are pending it applies them on the changeset-release/<base>
branch and opens or updates a "Version Packages" pull request. Once that PR is
merged and no changesets remain, it publishes the packages (when enabled),
tags them and creates a GitHub release per published package.

Settings are read from .changeset/release.yaml; flags override the file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.SetDebug(opts.debug)
			path, err := resolveLogPath(opts.logFile)
			if err != nil || path == "" {
				return err
			}
			return logger.Init(path)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelease(cmd, opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.cwd, "cwd", "", "Repository root (default: current directory)")
	flags.StringVar(&opts.baseBranch, "base-branch", "", "Branch to release from (default: GITHUB_REF_NAME)")
	flags.StringVar(&opts.title, "title", config.DefaultTitle, "Title of the version PR")
	flags.StringVar(&opts.commitMessage, "commit-message", config.DefaultCommitMessage, "Commit message for the version commit")
	flags.StringVar(&opts.versionCommand, "version-command", config.DefaultVersionCommand, "Command that applies changesets")
	flags.BoolVar(&opts.publish, "publish", false, "Publish when no changesets are pending")
	flags.StringVar(&opts.publishCommand, "publish-command", config.DefaultPublishCommand, "Command that publishes packages (implies --publish)")
	flags.BoolVar(&opts.dedupe, "dedupe", false, "Run pnpm dedupe after versioning")
	flags.BoolVar(&opts.createReleases, "create-releases", true, "Create a GitHub release per published package")
	flags.BoolVar(&opts.setupGitUser, "setup-git-user", true, "Commit as github-actions[bot]")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flags.StringVar(&opts.logFile, "log-file", "", "Also write logs to this file (bare flag: the state directory's log)")
	flags.Lookup("log-file").NoOptDefVal = defaultLogFile
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Minute, "Abort the run after this long")

	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newBodyCmd(opts))
	return rootCmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify git, gh and pnpm are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			checker := cli.NewChecker(pexec.NewRealExecutor())
			results := checker.CheckAll(cmd.Context(), cli.DefaultPrerequisites())
			fmt.Fprint(cmd.OutOrStdout(), cli.FormatCheckResults(results))
			return cli.ValidateRequired(results)
		},
	}
}

func newBodyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "body",
		Short: "Apply changesets in the working tree and print the version PR body",
		Long: `body runs the version command in the current working tree and prints the
pull request body a release run would produce. Nothing is committed or pushed,
but the versioned files are left in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			env := ci.FromEnv()
			runner := release.NewRunner(cfg, env, pexec.NewRealExecutorWithEnv(env.CommandEnv()...), uuid.NewString())
			body, err := runner.Preview(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	}
}

func runRelease(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	env := ci.FromEnv()
	runID := uuid.NewString()
	log := logger.WithRun(runID)
	log.Info("starting release run", "cwd", cfg.Cwd, "ref", env.RefName, "sha", env.SHA, "publish", cfg.Publish)

	runner := release.NewRunner(cfg, env, pexec.NewRealExecutorWithEnv(env.CommandEnv()...), runID)
	result, err := runner.Run(ctx)
	if err != nil {
		log.Error("release run failed", "error", err)
		return err
	}

	outputs, err := result.Outputs()
	if err != nil {
		return err
	}
	if err := ci.WriteOutputs(env.OutputPath, outputs); err != nil {
		return err
	}

	log.Info("release run finished",
		"hasChangesets", result.HasChangesets,
		"published", result.Published,
		"pullRequest", result.PullRequestNumber,
	)
	return nil
}

// resolveLogPath maps the --log-file value to a path; empty means no file.
func resolveLogPath(flag string) (string, error) {
	if flag == defaultLogFile {
		return logger.DefaultLogPath()
	}
	return flag, nil
}

// loadConfig reads the repository config and applies the flags the user set.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cwd := opts.cwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		cwd = wd
	}

	cfg, err := config.LoadOrDefault(cwd)
	if err != nil {
		return nil, err
	}
	cfg.ResolveCwd(cwd)
	applyFlags(cmd, opts, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, opts *options, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("base-branch") {
		cfg.BaseBranch = opts.baseBranch
	}
	if flags.Changed("title") {
		cfg.Title = opts.title
	}
	if flags.Changed("commit-message") {
		cfg.CommitMessage = opts.commitMessage
	}
	if flags.Changed("version-command") {
		cfg.VersionCommand = opts.versionCommand
	}
	if flags.Changed("publish") {
		cfg.Publish = opts.publish
	}
	if flags.Changed("publish-command") {
		cfg.PublishCommand = opts.publishCommand
		cfg.Publish = true
	}
	if flags.Changed("dedupe") {
		cfg.Dedupe = opts.dedupe
	}
	if flags.Changed("create-releases") {
		cfg.CreateReleases = opts.createReleases
	}
	if flags.Changed("setup-git-user") {
		cfg.SetupGitUser = opts.setupGitUser
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&options{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
