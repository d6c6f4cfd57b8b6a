package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"typysetup/internal/installer"
	"typysetup/internal/logging"
	"typysetup/internal/prefs"
	"typysetup/internal/project"
	"typysetup/internal/pyproject"
	"typysetup/internal/registry"
	"typysetup/internal/ux"
	"typysetup/internal/venv"
	"typysetup/internal/vscode"
	"typysetup/internal/wizard"
)

const version = "1.0.0"

var (
	// Global flags
	verbose      bool
	templatesDir string

	logger *zap.Logger
)

// rootCmd runs the interactive setup wizard when invoked without a
// subcommand.
var rootCmd = &cobra.Command{
	Use:   "typysetup [path]",
	Short: "Interactive Python project setup",
	Long: `typysetup scaffolds Python projects interactively.

It walks through template selection, interpreter and package manager
choice, dependency groups and editor configuration, then creates the
virtual environment, pyproject.toml and VS Code files in one guided run.
A failed or interrupted run rolls back everything it created.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runSetup,
}

var setupCmd = &cobra.Command{
	Use:   "setup [path]",
	Short: "Run the setup wizard for a project directory",
	Long: `Runs the full setup wizard. With no path, the current directory
is set up. The directory is created if it does not exist and removed
again if the run fails before completing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSetup,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the typysetup version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("typysetup %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&templatesDir, "templates", "", "Directory of template overrides (*.yaml)")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(preferencesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSetup(cmd *cobra.Command, args []string) error {
	projectDir := "."
	if len(args) == 1 {
		projectDir = args[0]
	}

	reg, err := registry.Load(templatesDir, logger)
	if err != nil {
		return err
	}
	pm, err := prefs.NewManager("", logger)
	if err != nil {
		return err
	}

	orch := wizard.New(wizard.Deps{
		Registry:  reg,
		Prompter:  wizard.NewTerminalPrompter(os.Stdin, os.Stdout),
		Prefs:     pm,
		Projects:  project.NewStore(logger),
		Envs:      venv.NewCreator(logger),
		Installer: installer.New(logger),
		Editor:    vscode.NewGenerator(logger),
		Manifest:  pyproject.NewGenerator(logger),
		Out:       os.Stdout,
		Log:       logger,
	})

	_, err = orch.Run(context.Background(), projectDir)
	if errors.Is(err, wizard.ErrCancelled) {
		ux.Dimf(os.Stdout, "Setup cancelled.")
		return fmt.Errorf("cancelled")
	}
	return err
}
