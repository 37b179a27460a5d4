package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"triage/cli/internal/baseline"
	"triage/cli/internal/config"
	"triage/cli/internal/diag"
	"triage/cli/internal/erruser"
	"triage/cli/internal/git"
	"triage/cli/internal/issues"
	"triage/cli/internal/logging"
	"triage/cli/internal/pipeline"
	"triage/cli/internal/policy"
	"triage/cli/internal/sarif"
	"triage/cli/internal/trace"
	"triage/cli/internal/version"
)

// Exit codes: 0 success, 1 failed verdict (or validation warnings with
// --strict), 2 usage or input error.
const (
	exitFailed = 1
	exitUsage  = 2
)

const defaultBaselineFile = ".triage/baseline.json"

// errExit is an error that carries an exit code for the CLI. Use errors.As to detect it.
type errExit int

func (e errExit) Error() string {
	return "exit " + strconv.Itoa(int(e))
}

func main() {
	os.Exit(Run())
}

// Run is the entry point for the CLI.
func Run() int {
	return runCLI(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func runCLI(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.Execute(); err != nil {
		var exitErr errExit
		if errors.As(err, &exitErr) {
			return int(exitErr)
		}
		fmt.Fprintln(stderr, err)
		if d := erruser.Details(err); d != nil {
			fmt.Fprintf(stderr, "Details: %v\n", d)
		}
		return exitUsage
	}
	return 0
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "triage",
		Short:   "Filter analyzer results and decide whether a run fails",
		Version: version.String(),
	}
	pf := rootCmd.PersistentFlags()
	pf.String("dir", "", "Project directory (default: git root of the current directory)")
	pf.String("global-config", "", "Global config file (default: $XDG_CONFIG_HOME/triage/config.toml)")
	pf.Bool("debug", false, "Log pipeline stages at debug level to stderr")
	pf.Bool("trace", false, "Print per-stage issue counts to stderr")
	pf.Bool("no-color", false, "Disable colored output (also honored: NO_COLOR)")
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newBaselineCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	return rootCmd
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("results", "", "Analyzer results JSON file, or - for stdin")
	cmd.Flags().String("sarif", "", "SARIF 2.1.0 file to import as results, or - for stdin")
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-inline", false, "Disable inline suppression markers")
	cmd.Flags().String("marker", "", "Inline suppression marker (overrides config and env)")
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Filter results, print them with the verdict, and exit 1 on failure",
		Args:  cobra.NoArgs,
		RunE:  runCheck,
	}
	addInputFlags(cmd)
	addFilterFlags(cmd)
	cmd.Flags().String("fail-on", "", "Lowest severity that fails: never, critical, high, medium, low")
	cmd.Flags().Int("fail-threshold", 0, "Minimum pass score 0..100 (overrides config and env)")
	cmd.Flags().String("baseline-file", "", "Baseline file (overrides config and env)")
	cmd.Flags().Bool("no-baseline", false, "Skip baseline filtering")
	cmd.Flags().String("output", "json", "Output format: json (default) or human")
	return cmd
}

func newBaselineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Record the current issues as accepted so later checks report only new ones",
		Args:  cobra.NoArgs,
		RunE:  runBaseline,
	}
	addInputFlags(cmd)
	addFilterFlags(cmd)
	cmd.Flags().String("baseline-file", "", "Where to write the baseline (default: configured baseline_file or "+defaultBaselineFile+")")
	return cmd
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check ignore rules and the baseline file and print any warnings",
		Args:  cobra.NoArgs,
		RunE:  runValidate,
	}
	addInputFlags(cmd)
	cmd.Flags().String("baseline-file", "", "Baseline file to check (overrides config and env)")
	cmd.Flags().Bool("strict", false, "Exit 1 when there are warnings")
	return cmd
}

// env bundles what every command resolves before running.
type env struct {
	root   string
	cfg    *config.Config
	log    *zap.Logger
	tracer *trace.Tracer
	styles diag.Styles
}

func setup(cmd *cobra.Command) (*env, error) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, erruser.New("Could not determine current directory.", err)
		}
		dir = cwd
	}
	root, _, err := git.ProjectRoot(dir)
	if err != nil {
		return nil, err
	}
	globalConfig, _ := cmd.Flags().GetString("global-config")
	cfg, err := config.Load(cmd.Context(), config.LoadOptions{
		RepoRoot:         root,
		GlobalConfigPath: globalConfig,
		Overrides:        overridesFromFlags(cmd),
	})
	if err != nil {
		return nil, err
	}
	debug, _ := cmd.Flags().GetBool("debug")
	log, err := logging.New(debug)
	if err != nil {
		return nil, erruser.New("Could not initialize logging.", err)
	}
	log.Debug("configuration loaded", zap.String("root", root), zap.Strings("files", cfg.Files))
	var tracer *trace.Tracer
	if on, _ := cmd.Flags().GetBool("trace"); on {
		tracer = trace.New(cmd.ErrOrStderr())
	}
	return &env{root: root, cfg: cfg, log: log, tracer: tracer, styles: stylesFor(cmd)}, nil
}

func stylesFor(cmd *cobra.Command) diag.Styles {
	noColor, _ := cmd.Flags().GetBool("no-color")
	if noColor || os.Getenv("NO_COLOR") != "" {
		return diag.PlainStyles()
	}
	return diag.ColorStyles()
}

func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

func overridesFromFlags(cmd *cobra.Command) *config.Overrides {
	o := &config.Overrides{}
	set := false
	if changed(cmd, "fail-on") {
		v, _ := cmd.Flags().GetString("fail-on")
		o.FailOn = &v
		set = true
	}
	if changed(cmd, "fail-threshold") {
		v, _ := cmd.Flags().GetInt("fail-threshold")
		o.FailThreshold = &v
		set = true
	}
	if changed(cmd, "baseline-file") {
		v, _ := cmd.Flags().GetString("baseline-file")
		o.BaselineFile = &v
		set = true
	}
	if changed(cmd, "marker") {
		v, _ := cmd.Flags().GetString("marker")
		o.SuppressionMarker = &v
		set = true
	}
	if changed(cmd, "no-inline") {
		v, _ := cmd.Flags().GetBool("no-inline")
		enabled := !v
		o.InlineSuppression = &enabled
		set = true
	}
	if !set {
		return nil
	}
	return o
}

// readInput loads results from --results or --sarif; exactly one is required
// unless optional is set, in which case neither returns nil.
func readInput(cmd *cobra.Command, cfg *config.Config, optional bool) ([]issues.Result, error) {
	resultsPath, _ := cmd.Flags().GetString("results")
	sarifPath, _ := cmd.Flags().GetString("sarif")
	switch {
	case resultsPath != "" && sarifPath != "":
		return nil, erruser.New("Use either --results or --sarif, not both.", nil)
	case resultsPath == "" && sarifPath == "":
		if optional {
			return nil, nil
		}
		return nil, erruser.New("Provide analyzer results with --results <file> or --sarif <file> (- for stdin).", nil)
	case resultsPath != "":
		var rs []issues.Result
		var err error
		if resultsPath == "-" {
			rs, err = issues.ReadResults(cmd.InOrStdin())
		} else {
			rs, err = issues.ReadResultsFile(resultsPath)
		}
		if err != nil {
			return nil, erruser.New("Could not read analyzer results.", err)
		}
		return rs, nil
	default:
		var doc *sarif.Document
		var err error
		if sarifPath == "-" {
			doc, err = sarif.Read(cmd.InOrStdin())
		} else {
			doc, err = sarif.ReadFile(sarifPath)
		}
		if err != nil {
			return nil, erruser.New("Could not read SARIF input.", err)
		}
		return sarif.ToResults(doc, sarif.Options{SeverityMapping: cfg.SarifSeverity}), nil
	}
}

func pipelineOptions(e *env) pipeline.Options {
	return pipeline.Options{
		IgnoreErrors: e.cfg.IgnoreErrors,
		Inline:       e.cfg.InlineSuppression,
		Marker:       e.cfg.SuppressionMarker,
		Root:         e.root,
		BaselinePath: e.cfg.BaselinePath(e.root),
		Policy: policy.Policy{
			FailOn:        e.cfg.FailOn,
			FailThreshold: e.cfg.FailThreshold,
			Denylist:      e.cfg.DontReport,
		},
		Logger: e.log,
		Tracer: e.tracer,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "json" && output != "human" {
		return erruser.New("Invalid output format; use json or human.", nil)
	}
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.log.Sync() }()
	results, err := readInput(cmd, e.cfg, false)
	if err != nil {
		return err
	}
	opts := pipelineOptions(e)
	if noBaseline, _ := cmd.Flags().GetBool("no-baseline"); noBaseline {
		opts.BaselinePath = ""
	}
	out := pipeline.Run(results, opts)

	if err := diag.Render(cmd.ErrOrStderr(), out.Warnings, e.styles); err != nil {
		return erruser.New("Could not write warnings.", err)
	}
	w := cmd.OutOrStdout()
	if output == "human" {
		err = writeHuman(w, out, e.styles)
	} else {
		err = writeJSON(w, out)
	}
	if err != nil {
		return erruser.New("Could not write results.", err)
	}
	if out.Verdict.Failed {
		return errExit(exitFailed)
	}
	return nil
}

func runBaseline(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.log.Sync() }()
	results, err := readInput(cmd, e.cfg, false)
	if err != nil {
		return err
	}
	path := e.cfg.BaselinePath(e.root)
	if path == "" {
		path = filepath.Join(e.root, defaultBaselineFile)
	}
	filtered, warnings := pipeline.Prefilter(results, pipelineOptions(e))
	if err := diag.Render(cmd.ErrOrStderr(), warnings, e.styles); err != nil {
		return erruser.New("Could not write warnings.", err)
	}
	dontReport := e.cfg.DontReport
	if old, _, err := baseline.Load(path); err == nil {
		dontReport = baseline.Denylist(dontReport, old.DontReport)
	}
	doc := baseline.Capture(filtered, dontReport, version.Baseline(), time.Now())
	if err := baseline.Save(path, doc); err != nil {
		return err
	}
	e.log.Debug("baseline written", zap.String("path", path), zap.Int("entries", doc.Count()))
	fmt.Fprintf(cmd.OutOrStdout(), "Baseline written to %s (%d entries across %d analyzer(s)).\n", path, doc.Count(), len(doc.Errors))
	return nil
}

func runValidate(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.log.Sync() }()
	results, err := readInput(cmd, e.cfg, true)
	if err != nil {
		return err
	}
	var known []string
	if results != nil {
		known = issues.IDs(results)
	}
	warnings := pipeline.Validate(pipelineOptions(e), known)
	if err := diag.Render(cmd.ErrOrStderr(), warnings, e.styles); err != nil {
		return erruser.New("Could not write warnings.", err)
	}
	if len(warnings) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration OK.")
		return nil
	}
	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		return errExit(exitFailed)
	}
	return nil
}

// writeJSON writes the outcome as one indented JSON object followed by a newline.
func writeJSON(w io.Writer, out pipeline.Outcome) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
