package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/hashicorp/go-version"
)

var versionRegex = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?`)

// Report is the outcome of checking one tool against its pin.
type Report struct {
	Tool       string
	Binary     string
	Found      string
	Constraint string
	Err        error
}

// OK reports whether the tool satisfied its pin.
func (r Report) OK() bool {
	return r.Err == nil
}

// Verify runs every pinned tool's version command and checks the reported
// version against its constraint. Tools without a constraint are only probed
// for presence.
func Verify(ctx context.Context, runner Runner, env *Environment) []Report {
	names := make([]string, 0, len(env.Tools))
	for name := range env.Tools {
		names = append(names, name)
	}
	sort.Strings(names)

	reports := make([]Report, 0, len(names))
	for _, name := range names {
		reports = append(reports, verifyTool(ctx, runner, env, name))
	}
	return reports
}

func verifyTool(ctx context.Context, runner Runner, env *Environment, name string) Report {
	tool := env.Tools[name]
	report := Report{Tool: name, Binary: tool.Binary, Constraint: tool.Version}

	var out bytes.Buffer
	cmd := Command{
		Name:   name,
		Path:   tool.Binary,
		Args:   tool.VersionArgs,
		Env:    env.environ(),
		Stdout: &out,
		Stderr: &out,
	}
	if err := runner.Run(ctx, cmd); err != nil {
		report.Err = fmt.Errorf("probe %s: %w", tool.Binary, err)
		return report
	}

	found := versionRegex.FindString(out.String())
	report.Found = found
	if tool.Version == "" {
		return report
	}
	if found == "" {
		report.Err = fmt.Errorf("%s printed no recognizable version", tool.Binary)
		return report
	}

	constraint, err := version.NewConstraint(tool.Version)
	if err != nil {
		report.Err = fmt.Errorf("invalid version constraint %q for %s: %w", tool.Version, name, err)
		return report
	}
	v, err := version.NewVersion(found)
	if err != nil {
		report.Err = fmt.Errorf("parse %s version %q: %w", tool.Binary, found, err)
		return report
	}
	if !constraint.Check(v) {
		report.Err = fmt.Errorf("%s %s does not satisfy %q", tool.Binary, found, tool.Version)
	}
	return report
}
