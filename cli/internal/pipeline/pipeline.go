// Package pipeline runs the filtering stages and the failure decision over a
// finished result collection:
//
//	ignore_errors rules -> inline markers -> baseline (optional) -> fail policy
//
// Every stage returns new results; the input collection is never modified.
// Options are assembled once by the caller (see cmd/triage) and passed in.
package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"triage/cli/internal/baseline"
	"triage/cli/internal/diag"
	"triage/cli/internal/ignore"
	"triage/cli/internal/inline"
	"triage/cli/internal/issues"
	"triage/cli/internal/logging"
	"triage/cli/internal/policy"
	"triage/cli/internal/trace"
)

// Options configures Run. The zero value runs no filters and evaluates with
// the default fail_on.
type Options struct {
	// IgnoreErrors maps analyzer id to its raw rule list (as decoded from config).
	IgnoreErrors map[string]any
	// Inline enables marker-comment suppression.
	Inline bool
	// Marker is the suppression marker; empty means inline.DefaultMarker.
	Marker string
	// Root resolves relative issue paths for inline suppression.
	Root string
	// ReadFile replaces os.ReadFile for inline suppression when set.
	ReadFile inline.ReadFunc
	// BaselinePath enables baseline filtering when non-empty.
	BaselinePath string
	// Policy is the failure policy. Its Denylist holds the configured
	// dont_report ids; Run unions them with the baseline's.
	Policy policy.Policy
	Logger *zap.Logger
	Tracer *trace.Tracer
}

// Outcome is the result of Run.
type Outcome struct {
	Results  []issues.Result `json:"results"`
	Warnings []diag.Warning  `json:"warnings"`
	Verdict  policy.Verdict  `json:"verdict"`
	// Denylist is the effective dont_report list used for the verdict.
	Denylist []string `json:"dont_report"`
	Score    float64  `json:"score"`
	// Baseline is the loaded baseline, nil when disabled or unavailable.
	Baseline *baseline.Baseline `json:"-"`
}

// Prefilter runs the ignore_errors and inline stages only. It is what a
// baseline capture snapshots.
func Prefilter(results []issues.Result, opts Options) ([]issues.Result, []diag.Warning) {
	log := logging.OrNop(opts.Logger)
	known := issues.IDs(results)

	compiled, warnings := ignore.Compile(opts.IgnoreErrors, known)
	logWarnings(log, warnings)
	log.Debug("compiled ignore rules", zap.Stringer("rules", compiled))

	out := ignore.Filter(results, compiled)
	opts.Tracer.Stage("ignore_errors", results, out)
	log.Debug("ignore_errors stage", zap.Int("before", issues.CountIssues(results)), zap.Int("after", issues.CountIssues(out)))

	if opts.Inline {
		var fopts []inline.Option
		if opts.ReadFile != nil {
			fopts = append(fopts, inline.WithReader(opts.ReadFile))
		}
		f := inline.New(opts.Marker, opts.Root, fopts...)
		before := out
		out = f.Apply(out)
		opts.Tracer.Stage("inline ("+f.Marker()+")", before, out)
		log.Debug("inline stage",
			zap.String("marker", f.Marker()),
			zap.Int("files_read", f.Reads()),
			zap.Int("before", issues.CountIssues(before)),
			zap.Int("after", issues.CountIssues(out)))
	}
	return out, warnings
}

// Run filters results and evaluates the failure policy. Configuration
// problems and an unavailable baseline are reported as warnings; Run never
// fails.
func Run(results []issues.Result, opts Options) Outcome {
	log := logging.OrNop(opts.Logger)
	out, warnings := Prefilter(results, opts)

	denylist := baseline.Denylist(opts.Policy.Denylist, nil)
	var b *baseline.Baseline
	if opts.BaselinePath != "" {
		loaded, bw, err := baseline.Load(opts.BaselinePath)
		if err != nil {
			w := diag.Warnf(diag.SourceBaseline, "", "%v; baseline filtering skipped", err)
			logWarnings(log, []diag.Warning{w})
			warnings = append(warnings, w)
		} else {
			logWarnings(log, bw)
			warnings = append(warnings, bw...)
			b = loaded
			before := out
			out = baseline.Filter(out, b)
			denylist = baseline.Denylist(opts.Policy.Denylist, b.DontReport)
			opts.Tracer.Stage(fmt.Sprintf("baseline (%d entries)", b.Count()), before, out)
			log.Debug("baseline stage",
				zap.String("path", opts.BaselinePath),
				zap.Int("entries", b.Count()),
				zap.Int("before", issues.CountIssues(before)),
				zap.Int("after", issues.CountIssues(out)))
		}
	}

	p := opts.Policy
	p.Denylist = denylist
	verdict := policy.Evaluate(out, p)
	score := policy.Score(out)
	opts.Tracer.Section("verdict")
	opts.Tracer.Printf("fail_on=%s score=%.1f dont_report=%v failed=%v: %s\n", p.FailOn, score, denylist, verdict.Failed, verdict.Reason)
	log.Debug("verdict", zap.Bool("failed", verdict.Failed), zap.String("reason", verdict.Reason), zap.Float64("score", score))

	if warnings == nil {
		warnings = []diag.Warning{}
	}
	return Outcome{
		Results:  out,
		Warnings: warnings,
		Verdict:  verdict,
		Denylist: denylist,
		Score:    score,
		Baseline: b,
	}
}

// Validate gathers every configuration warning without filtering: ignore
// rules checked against known analyzer ids (nil skips the unknown-id check),
// and the baseline file when one is configured.
func Validate(opts Options, known []string) []diag.Warning {
	warnings := ignore.Validate(opts.IgnoreErrors, known)
	if opts.BaselinePath != "" {
		_, bw, err := baseline.Load(opts.BaselinePath)
		if err != nil {
			warnings = append(warnings, diag.Warnf(diag.SourceBaseline, "", "%v", err))
		}
		warnings = append(warnings, bw...)
	}
	logWarnings(logging.OrNop(opts.Logger), warnings)
	return warnings
}

func logWarnings(log *zap.Logger, warnings []diag.Warning) {
	for _, w := range warnings {
		log.Warn(w.Message, zap.String("source", w.Source), zap.String("analyzer", w.Analyzer))
	}
}
