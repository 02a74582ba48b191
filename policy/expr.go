package policy

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/s0up4200/ptseed/downloader"
	"github.com/s0up4200/ptseed/registry"
)

// removeFilter is a compiled user expression adding eviction candidates
// beyond the ratio/seed-time thresholds, e.g.
//
//	Ratio > 3.0 && SeedingDays >= 14 && Classification != "double_up"
type removeFilter struct {
	expression string
	program    *vm.Program
}

// compileRemoveFilter validates and compiles the expression once at startup.
func compileRemoveFilter(expression string) (*removeFilter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{Expression: expression, Reason: "empty expression"}
	}

	program, err := expr.Compile(expression,
		expr.Env(filterEnv(nil, downloader.LiveMetric{})),
		expr.AsBool(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Err:        err,
		}
	}

	return &removeFilter{expression: expression, program: program}, nil
}

// matches evaluates the filter against one torrent.
func (f *removeFilter) matches(rec *registry.Record, m downloader.LiveMetric) (bool, error) {
	out, err := expr.Run(f.program, filterEnv(rec, m))
	if err != nil {
		return false, &EvaluationError{
			Expression: f.expression,
			Torrent:    m.Name,
			Err:        err,
		}
	}

	result, ok := out.(bool)
	if !ok {
		return false, &EvaluationError{
			Expression: f.expression,
			Torrent:    m.Name,
			Err:        fmt.Errorf("expression returned %T, want bool", out),
		}
	}

	return result, nil
}

// filterEnv exposes the torrent's fields to the expression. A nil record
// yields the zero environment used for compile-time validation.
func filterEnv(rec *registry.Record, m downloader.LiveMetric) map[string]any {
	env := map[string]any{
		"Hash":           m.Hash,
		"Name":           m.Name,
		"Ratio":          m.Ratio,
		"SeedingDays":    SeedingDays(m.SeedTime),
		"SizeGB":         float64(m.Size) / (1024 * 1024 * 1024),
		"State":          m.State,
		"Classification": "",
		"Priority":       0,
	}
	if rec != nil {
		env["Classification"] = string(rec.Classification)
		env["Priority"] = rec.Priority
	}
	return env
}
