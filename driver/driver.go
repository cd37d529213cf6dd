// Package driver orchestrates a full classification run: load a graph and
// a failure report, build one or two solvers, feed them the crash stack
// and coverage observations, and report the resulting classification.
package driver

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/crashwalk/crashwalk/cerr"
	"github.com/crashwalk/crashwalk/cfgmodel"
	"github.com/crashwalk/crashwalk/failure"
	"github.com/crashwalk/crashwalk/solver"
	"github.com/crashwalk/crashwalk/solver/fsa"
	"github.com/crashwalk/crashwalk/solver/svpa"
	"github.com/crashwalk/crashwalk/solver/utl"
)

// Collapse selects which solver input(s) basic-block collapse is applied
// to before solving.
type Collapse string

// Collapse modes.
const (
	CollapseNone   Collapse = "none"
	CollapseFirst  Collapse = "first"
	CollapseSecond Collapse = "second"
	CollapseBoth   Collapse = "both"
)

// Options configures one driver run.
type Options struct {
	GraphPath string

	// JSONPath, if non-empty, names the failure report file (use "-" for
	// stdin) to parse in the JSON wire format. Preferred over the legacy
	// text fields below.
	JSONPath string
	// Legacy mode: the crash stack, obsYes vectors, and obsNo groups as
	// literal CLI text, one -y/-n occurrence per vector/group.
	LegacyCrash  string
	LegacyObsYes []string
	LegacyObsNo  []string

	StackOnly       bool
	Intraprocedural bool

	First, Second string // solver names: "fsa", "utl", "svpa", "pexpect"
	Compare       string // "", "eq", "gt", "lt"
	Collapse      Collapse
	ResultStyle   string // "none", "compact", "full", "csiclipse", "standard"

	// SvpaJarPath names the SVPA server jar a "pexpect" solver spawns a
	// JVM against; unused by the in-process "svpa" solver.
	SvpaJarPath string

	// DotPath, if non-empty, names a file to dump the loaded (uncollapsed)
	// graph to in DOT format, for visual debugging.
	DotPath string

	Out io.Writer
	Err io.Writer
}

// Run executes one full driver pass and returns the primary solver's
// classification (the second solver's classification, if any, is only used
// for the -compare check).
func Run(opts Options) (*solver.Classification, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}

	g, err := cfgmodel.ParseFile(opts.GraphPath)
	if err != nil {
		return nil, errors.Wrap(err, "loading control flow graph")
	}

	if opts.DotPath != "" {
		if err := writeDotFile(opts.DotPath, g); err != nil {
			return nil, errors.Wrap(err, "writing -dot output")
		}
	}

	report, err := loadReport(opts)
	if err != nil {
		return nil, errors.Wrap(err, "loading failure report")
	}
	if opts.StackOnly {
		report.ClearObsYesAndNo()
	}
	if err := checkReportNodes(g, report); err != nil {
		return nil, err
	}

	if opts.Intraprocedural {
		if err := checkSingleProcedure(g); err != nil {
			return nil, err
		}
	}

	exclude := report.AllNodes()

	firstGraph := g
	secondGraph := g
	switch opts.Collapse {
	case CollapseFirst:
		firstGraph = cfgmodel.CollapseBasicBlocks(g, exclude, false)
	case CollapseSecond:
		secondGraph = cfgmodel.CollapseBasicBlocks(g, exclude, false)
	case CollapseBoth:
		collapsed := cfgmodel.CollapseBasicBlocks(g, exclude, false)
		firstGraph, secondGraph = collapsed, collapsed
	}

	firstResult, err := runSolver(opts.First, firstGraph, report, opts.SvpaJarPath)
	if err != nil {
		return nil, errors.Wrap(err, "running first solver")
	}
	firstResult = expand(firstGraph, g, firstResult)

	var secondResult *solver.Classification
	if opts.Second != "" {
		secondResult, err = runSolver(opts.Second, secondGraph, report, opts.SvpaJarPath)
		if err != nil {
			return nil, errors.Wrap(err, "running second solver")
		}
		secondResult = expand(secondGraph, g, secondResult)

		if opts.Compare != "" {
			cmp, err := parseCompare(opts.Compare)
			if err != nil {
				return nil, err
			}
			if !solver.SatisfiesCompare(cmp, firstResult, secondResult) {
				return nil, errors.WithStack(&cerr.ComparatorMismatchError{
					Reason: fmt.Sprintf("%s and %s classifications do not satisfy -compare %s", opts.First, opts.Second, opts.Compare),
				})
			}
		}
	}

	if err := PrintResult(opts.Out, opts.Err, g, firstResult, opts.ResultStyle, opts.Intraprocedural); err != nil {
		return nil, err
	}
	return firstResult, nil
}

func parseCompare(s string) (solver.Compare, error) {
	switch s {
	case "eq":
		return solver.CompareEq, nil
	case "gt":
		return solver.CompareGt, nil
	case "lt":
		return solver.CompareLt, nil
	default:
		return 0, errors.WithStack(&cerr.InvalidInputError{Reason: "invalid -compare value " + s})
	}
}

func loadReport(opts Options) (*failure.Report, error) {
	if opts.JSONPath != "" {
		var r io.Reader
		if opts.JSONPath == "-" {
			r = os.Stdin
		} else {
			f, err := os.Open(opts.JSONPath)
			if err != nil {
				return nil, errors.WithStack(err)
			}
			defer f.Close()
			r = f
		}
		return failure.LoadJSON(r)
	}
	return loadLegacyReport(opts)
}

// loadLegacyReport builds a report directly from the -c/-y/-n CLI text
// strings: one crash-stack line, any number of obsYes vector lines, and any
// number of singleton obsNo lines.
func loadLegacyReport(opts Options) (*failure.Report, error) {
	stack, err := failure.ParseStackLine(opts.LegacyCrash)
	if err != nil {
		return nil, err
	}
	report := &failure.Report{Stack: stack}
	for _, line := range opts.LegacyObsYes {
		report.ObsYes = append(report.ObsYes, failure.ParseObsYesLine(line))
	}
	for _, line := range opts.LegacyObsNo {
		group, err := failure.ParseObsNoLine(line)
		if err != nil {
			return nil, err
		}
		report.ObsNo = append(report.ObsNo, group)
	}
	return report, nil
}

func writeDotFile(path string, g *cfgmodel.Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	return cfgmodel.WriteDOT(f, g)
}

// checkReportNodes validates that every node id named in the stack or
// observations actually exists in g, so a typo or a report built against a
// different graph is reported as InvalidInput instead of surfacing as a
// confusing solver-internal failure.
func checkReportNodes(g *cfgmodel.Graph, report *failure.Report) error {
	for id := range report.AllNodes() {
		if _, ok := g.NodeWithID(id); !ok {
			return errors.WithStack(&cerr.InvalidInputError{
				Reason: fmt.Sprintf("failure report references unknown node %q", id),
			})
		}
	}
	return nil
}

func checkSingleProcedure(g *cfgmodel.Graph) error {
	procs := make(map[string]bool)
	for _, id := range g.AllNodeIDs() {
		n := g.MustNode(id)
		if n.Kind() == cfgmodel.KindEntry {
			procs[n.Procedure()] = true
		}
	}
	if len(procs) != 1 {
		return errors.WithStack(&cerr.InvalidInputError{
			Reason: fmt.Sprintf("intraprocedural mode requires exactly one procedure, found %d", len(procs)),
		})
	}
	return nil
}

func runSolver(name string, g *cfgmodel.Graph, report *failure.Report, svpaJarPath string) (*solver.Classification, error) {
	var es solver.ExecutionSolver
	switch name {
	case "fsa", "FSA":
		es = fsa.New(g)
	case "utl", "UTL":
		es = utl.New(g)
	case "svpa", "SVPA":
		s, err := svpa.New(g)
		if err != nil {
			return nil, err
		}
		es = s
	case "pexpect", "Pexpect":
		s, err := svpa.NewWithTransport(g, svpa.NewSubprocessTransport(svpaJarPath))
		if err != nil {
			return nil, err
		}
		es = s
	default:
		return nil, errors.WithStack(&cerr.InvalidInputError{Reason: "unknown solver " + name})
	}
	if err := es.EncodeCrash(report.Stack); err != nil {
		return nil, err
	}
	for _, group := range report.ObsNo {
		if err := es.EncodeObsNo(group); err != nil {
			return nil, err
		}
	}
	for _, vector := range report.ObsYes {
		if err := es.EncodeObsYes(vector); err != nil {
			return nil, err
		}
	}
	return es.FindKnownExecution()
}

// expand maps a classification computed over a (possibly collapsed)
// working graph back onto the original, uncollapsed graph's node ids.
func expand(working, original *cfgmodel.Graph, c *solver.Classification) *solver.Classification {
	if working == original {
		return c
	}
	out := solver.NewClassification()
	for id := range cfgmodel.ExpandToOriginal(working, c.DefYes) {
		out.DefYes[id] = true
	}
	for id := range cfgmodel.ExpandToOriginal(working, c.DefNo) {
		out.DefNo[id] = true
	}
	for id := range cfgmodel.ExpandToOriginal(working, c.Maybe) {
		out.Maybe[id] = true
	}
	return out
}
