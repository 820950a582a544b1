package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"archiver-go/internal/app"
	"archiver-go/internal/archiver"
	"archiver-go/internal/config"
	"archiver-go/internal/report"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

// usageError marks failures caused by how the command was invoked rather
// than by the pipeline itself.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 1 for configuration and usage problems and 2 for pipeline
// failures.
func exitCode(err error) int {
	var verr *config.ValidationError
	var uerr *usageError
	if errors.As(err, &verr) || errors.As(err, &uerr) {
		return 1
	}
	return 2
}

// loadConfig reads the config file, if any, and applies flag overrides.
// A missing config file is not an error.
func loadConfig(flags *pflag.FlagSet, defaults map[string]string) (*config.Config, error) {
	path := defaults["config_path"]
	if flags.Changed("config") {
		path, _ = flags.GetString("config")
	}

	cfg, err := config.ReadFromFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !flags.Changed("config"):
		cfg = config.Default()
	case err != nil:
		return nil, &usageError{fmt.Errorf("reading config: %w", err)}
	}
	if cfg.LogDir == "" {
		cfg.LogDir = defaults["log_dir"]
	}

	if err := applyFlags(cfg, flags); err != nil {
		return nil, &usageError{err}
	}
	return cfg, nil
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(cfg *config.Config, flags *pflag.FlagSet) error {
	var err error
	str := func(name string, dst *string) {
		if err == nil && flags.Changed(name) {
			*dst, err = flags.GetString(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if err == nil && flags.Changed(name) {
			*dst, err = flags.GetBool(name)
		}
	}
	megabytes := func(name string, dst *int64) {
		if err == nil && flags.Changed(name) {
			*dst, err = flags.GetInt64(name)
		}
	}

	str("base", &cfg.BasePath)
	str("destination", &cfg.DestinationPath)
	str("source", &cfg.Extras.SourceURL)
	str("html", &cfg.Extras.HTMLURL)
	str("binaries", &cfg.Extras.BinariesPath)
	str("cache", &cfg.Cache.Type)
	megabytes("important-mb", &cfg.Discs.ImportantMB)
	megabytes("regular-mb", &cfg.Discs.RegularMB)
	boolean("copy", &cfg.Transfer.CopyOnly)
	boolean("test", &cfg.Transfer.DryRun)
	boolean("skip-important", &cfg.Skip.Important)
	boolean("skip-regular", &cfg.Skip.Regular)
	if err == nil && flags.Changed("folders") {
		cfg.ImportantFolders, err = flags.GetStringSlice("folders")
	}
	if err == nil && flags.Changed("workers") {
		cfg.Transfer.Workers, err = flags.GetInt("workers")
	}
	return err
}

// newApp loads the config and creates an ArchiverApp. The caller must defer app.Close().
func newApp(cmd *cobra.Command, command string) (*app.ArchiverApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := loadConfig(cmd.Flags(), defaults)
	if err != nil {
		return nil, err
	}

	a, err := app.NewArchiverApp(cmd.Context(), cfg, app.Options{
		Command: command,
		HomeDir: defaults["home_dir"],
		Stderr:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return &usageError{err}
	}
	return nil
}

// printPlan writes a tree to terminals and tab-separated rows otherwise.
func printPlan(w io.Writer, results []*archiver.SetResult) error {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, err := io.WriteString(w, report.Tree(results))
		return err
	}
	return report.TSV(w, results)
}

var rootCmd = &cobra.Command{
	Use:           "archiver",
	Short:         "Split a photo library across fixed-size discs",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Pack and write discs",
	Args:  noArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "run")
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("archive failed: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), report.Summary(results))
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show how files would be packed without writing",
	Args:  noArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "plan")
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Plan(cmd.Context())
		if err != nil {
			return fmt.Errorf("planning failed: %w", err)
		}
		return printPlan(cmd.OutOrStdout(), results)
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		base, _ := cmd.Flags().GetString("base")
		dest, _ := cmd.Flags().GetString("destination")
		cfg := config.NewConfig(base, dest, defaults["home_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return &usageError{fmt.Errorf("failed to initialize config: %w", err)}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration initialized at %s\n", defaults["config_path"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return &usageError{fmt.Errorf("failed to read config: %w", err)}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration from %s:\n\n", defaults["config_path"])
		m := &config.Manager{}
		return m.Write(cmd.OutOrStdout(), cfg)
	},
}

func addPipelineFlags(flags *pflag.FlagSet) {
	flags.StringP("base", "b", "", "Root folder to archive")
	flags.StringP("destination", "d", "", "Folder that receives the disc directories")
	flags.StringP("source", "s", "", `Source archive path or URL ("-" disables)`)
	flags.String("html", "", `Viewer archive path or URL ("-" disables)`)
	flags.String("binaries", "", "Folder of binaries copied onto every disc")
	flags.StringSliceP("folders", "f", nil, "Important folders, relative to the base")
	flags.Int64("important-mb", 0, "Disc capacity for the important set, in MB")
	flags.Int64("regular-mb", 0, "Disc capacity for the regular set, in MB")
	flags.BoolP("copy", "c", false, "Copy content instead of moving it")
	flags.BoolP("test", "t", false, "Dry run: log intended transfers without writing")
	flags.Bool("skip-important", false, "Skip the important set")
	flags.Bool("skip-regular", false, "Skip the regular set")
	flags.String("cache", "", "Discovery cache: json, sqlite, memory or none")
	flags.Int("workers", 0, "Transfer workers (0 means one per CPU)")
	flags.String("config", "", "Config file path")
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err}
	})

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().StringP("base", "b", "", "Root folder to archive")
	configInitCmd.Flags().StringP("destination", "d", "", "Folder that receives the disc directories")

	// root commands
	addPipelineFlags(runCmd.Flags())
	addPipelineFlags(planCmd.Flags())
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(configCmd)
}
