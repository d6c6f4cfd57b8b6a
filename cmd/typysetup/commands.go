package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"typysetup/internal/prefs"
	"typysetup/internal/project"
	"typysetup/internal/registry"
	"typysetup/internal/ux"
)

var (
	listTag     string
	listManager string
	listPython  string
	historyN    int
)

// listCmd shows the available project templates.
var listCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List available project templates",
	Long: `Lists the project templates the wizard can scaffold. An optional
query matches slug, name, description and tags; --tag, --manager and
--python narrow the result further.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

// historyCmd shows recent setup runs.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent setup runs",
	RunE:  runHistory,
}

// preferencesCmd manages the stored defaults.
var preferencesCmd = &cobra.Command{
	Use:     "preferences",
	Aliases: []string{"prefs"},
	Short:   "Show or change stored preferences",
	RunE:    runPreferencesShow,
}

var preferencesSetCmd = &cobra.Command{
	Use:   "set [field] [value]",
	Short: "Set one preference field",
	Long: `Sets a preference field. Valid fields:
  preferred_manager          uv, pip or poetry
  preferred_python_version   e.g. 3.12
  vscode_config_merge_mode   merge`,
	Args: cobra.ExactArgs(2),
	RunE: runPreferencesSet,
}

var preferencesResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset preferences to defaults",
	Long:  `Resets all preferences to their defaults. The current record is kept in a timestamped backup first.`,
	RunE:  runPreferencesReset,
}

// configCmd inspects a project's setup record.
var configCmd = &cobra.Command{
	Use:   "config [path]",
	Short: "Show a project's setup record",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfig,
}

func init() {
	listCmd.Flags().StringVar(&listTag, "tag", "", "Only templates carrying this tag")
	listCmd.Flags().StringVar(&listManager, "manager", "", "Only templates supporting this package manager")
	listCmd.Flags().StringVar(&listPython, "python", "", "Only templates compatible with this python version")
	historyCmd.Flags().IntVarP(&historyN, "limit", "n", 10, "Number of entries to show")

	preferencesCmd.AddCommand(preferencesSetCmd)
	preferencesCmd.AddCommand(preferencesResetCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	reg, err := registry.Load(templatesDir, logger)
	if err != nil {
		return err
	}

	templates := reg.All()
	if len(args) == 1 {
		templates = reg.Search(args[0])
	}
	templates = filterTemplates(templates)

	if len(templates) == 0 {
		ux.Dimf(os.Stdout, "no templates match")
		return nil
	}

	tbl := ux.NewTable("SLUG", "NAME", "PYTHON", "MANAGERS", "TAGS")
	for _, t := range templates {
		python := t.PythonVersion
		if python == "" {
			python = "any"
		}
		tbl.AddRow(t.Slug, t.Name, python, strings.Join(t.Managers, ","), strings.Join(t.Tags, ","))
	}
	tbl.Render(os.Stdout)
	return nil
}

func filterTemplates(templates []*registry.SetupType) []*registry.SetupType {
	var out []*registry.SetupType
	for _, t := range templates {
		if listTag != "" && !t.HasTag(listTag) {
			continue
		}
		if listManager != "" && !t.SupportsManager(listManager) {
			continue
		}
		if listPython != "" && t.PythonVersion != "" {
			c, err := registry.ParseConstraint(t.PythonVersion)
			if err != nil || !c.Satisfies(listPython) {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

func runHistory(cmd *cobra.Command, args []string) error {
	pm, err := prefs.NewManager("", logger)
	if err != nil {
		return err
	}
	p, err := pm.Load()
	if err != nil {
		return err
	}

	entries := p.RecentHistory(historyN)
	if len(entries) == 0 {
		ux.Dimf(os.Stdout, "no setup runs recorded yet")
		return nil
	}

	tbl := ux.NewTable("WHEN", "TEMPLATE", "PROJECT", "MANAGER", "RESULT", "TOOK")
	for _, e := range entries {
		result := "ok"
		if !e.Success {
			result = "failed"
		}
		tbl.AddRow(
			e.Timestamp.Local().Format("2006-01-02 15:04"),
			e.SetupType,
			e.ProjectPath,
			e.PackageManager,
			result,
			fmt.Sprintf("%.1fs", e.DurationSeconds),
		)
	}
	tbl.Render(os.Stdout)
	return nil
}

func runPreferencesShow(cmd *cobra.Command, args []string) error {
	pm, err := prefs.NewManager("", logger)
	if err != nil {
		return err
	}
	p, err := pm.Load()
	if err != nil {
		return err
	}

	ux.Titlef(os.Stdout, "Preferences (%s)", pm.Path())
	fmt.Printf("  preferred_manager:        %s\n", p.PreferredManager)
	fmt.Printf("  preferred_python_version: %s\n", orUnset(p.PreferredPythonVersion))
	fmt.Printf("  vscode_config_merge_mode: %s\n", p.VSCodeMergeMode)
	fmt.Printf("  preferred_setup_types:    %s\n", orUnset(strings.Join(p.PreferredSetupTypes, ", ")))
	fmt.Printf("  first_run:                %s\n", strconv.FormatBool(p.FirstRun))
	fmt.Printf("  setup_history:            %d entries\n", len(p.SetupHistory))
	return nil
}

func runPreferencesSet(cmd *cobra.Command, args []string) error {
	pm, err := prefs.NewManager("", logger)
	if err != nil {
		return err
	}
	if err := pm.UpdateField(args[0], args[1]); err != nil {
		return err
	}
	ux.Successf(os.Stdout, "%s = %s", args[0], args[1])
	return nil
}

func runPreferencesReset(cmd *cobra.Command, args []string) error {
	pm, err := prefs.NewManager("", logger)
	if err != nil {
		return err
	}
	backupPath, err := pm.Reset()
	if err != nil {
		return err
	}
	if backupPath != "" {
		ux.Successf(os.Stdout, "preferences reset (previous record kept at %s)", backupPath)
	} else {
		ux.Successf(os.Stdout, "preferences reset")
	}
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	projectDir := "."
	if len(args) == 1 {
		projectDir = args[0]
	}

	store := project.NewStore(logger)
	cfg, err := store.Load(projectDir)
	if err != nil {
		if errors.Is(err, project.ErrCorrupt) {
			return fmt.Errorf("setup record at %s is unreadable; it is left untouched for inspection: %w",
				project.ConfigPath(projectDir), err)
		}
		return err
	}
	if cfg == nil {
		ux.Dimf(os.Stdout, "no setup record in %s", projectDir)
		return nil
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}
