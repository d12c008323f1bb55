package preflight

import (
	"github.com/mesler1/dadcam/internal/config"
	"github.com/mesler1/dadcam/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Detail   string
	Optional bool
}

// RunAll executes every check for cfg: directories first, then programs.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckCreatableDirectory("Destination", cfg.Paths.Destination),
		CheckCreatableDirectory("State directory", cfg.Paths.StateDir),
		CheckCreatableDirectory("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Detection.Backend == config.BackendCommand && cfg.Detection.ModelDir != "" {
		model := CheckCreatableDirectory("Model directory", cfg.Detection.ModelDir)
		model.Optional = true
		results = append(results, model)
	}
	for _, status := range CheckSystemDeps(cfg) {
		results = append(results, fromStatus(status))
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}

func fromStatus(s deps.Status) Result {
	detail := s.Detail
	if s.Available {
		detail = s.Path
	}
	return Result{Name: s.Name, Passed: s.Available, Detail: detail, Optional: s.Optional}
}
