package driver

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"bitbucket.org/zombiezen/cardcpx/natsort"
	"github.com/pkg/errors"

	"github.com/crashwalk/crashwalk/cerr"
	"github.com/crashwalk/crashwalk/cfgmodel"
	"github.com/crashwalk/crashwalk/solver"
)

// resultsStartMarker precedes every result dump, node- or line-based alike,
// so a wrapping tool can locate where diagnostic chatter ends and the
// machine-parseable result begins.
const resultsStartMarker = "--- Begin results"

// PrintResult renders a classification to out, in the style named by style:
// "none" (nothing), "compact" (counts only), "full" (counts plus every
// node id), or "csiclipse"/"standard" (per-file source line sets).
func PrintResult(out, errOut io.Writer, g *cfgmodel.Graph, c *solver.Classification, style string, intra bool) error {
	switch style {
	case "", "none":
		return nil
	case "compact":
		printNodeResult(out, c, false)
		return nil
	case "full":
		printNodeResult(out, c, true)
		return nil
	case "csiclipse":
		return printLinesResult(out, g, c, true, intra)
	case "standard":
		return printLinesResult(out, g, c, false, intra)
	default:
		return errors.WithStack(&cerr.InvalidInputError{Reason: "unknown result style " + style})
	}
}

func sortNodeIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return natsort.Less(ids[i], ids[j]) })
}

func printNodeResult(out io.Writer, c *solver.Classification, full bool) {
	total := len(c.DefYes) + len(c.DefNo) + len(c.Maybe)
	fmt.Fprintln(out, resultsStartMarker)
	printSet(out, "defYes", c.DefYes, total, full)
	printSet(out, "defNo", c.DefNo, total, full)
	printSet(out, "maybe", c.Maybe, total, full)
}

func printSet(out io.Writer, label string, set map[string]bool, total int, full bool) {
	pct := 0.0
	if total > 0 {
		pct = 100 * float64(len(set)) / float64(total)
	}
	if !full {
		fmt.Fprintf(out, "%s (%d, %.1f%%)\n", label, len(set), pct)
		return
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sortNodeIDs(ids)
	fmt.Fprintf(out, "%s (%d, %.1f%%): %s\n", label, len(set), pct, strings.Join(ids, ", "))
}

// fileLines accumulates, per source file, the line numbers belonging to
// each classification bucket.
type fileLines struct {
	function string
	yes, no, maybe map[int]bool
}

func printLinesResult(out io.Writer, g *cfgmodel.Graph, c *solver.Classification, csiclipse, intra bool) error {
	funcToFile := make(map[string]string)
	for _, id := range g.AllNodeIDs() {
		n := g.MustNode(id)
		if n.Kind() != cfgmodel.KindEntry {
			continue
		}
		if prev, ok := funcToFile[n.Procedure()]; ok && prev != n.File() {
			return errors.WithStack(&cerr.InvalidInputError{
				Reason: "duplicate entry node for procedure " + n.Procedure(),
			})
		}
		funcToFile[n.Procedure()] = n.File()
	}
	if intra && len(funcToFile) != 1 {
		return errors.WithStack(&cerr.InvalidInputError{
			Reason: fmt.Sprintf("intraprocedural mode requires exactly one procedure, found %d", len(funcToFile)),
		})
	}

	byFile := make(map[string]*fileLines)
	fileOf := func(id string) (string, string) {
		n, ok := g.NodeWithID(id)
		if !ok {
			return "", ""
		}
		return n.File(), n.Procedure()
	}
	accumulate := func(ids map[string]bool, pick func(*fileLines) map[int]bool) {
		for id := range ids {
			n, ok := g.NodeWithID(id)
			if !ok {
				continue
			}
			file, proc := fileOf(id)
			fl, ok := byFile[file]
			if !ok {
				fl = &fileLines{function: proc, yes: map[int]bool{}, no: map[int]bool{}, maybe: map[int]bool{}}
				byFile[file] = fl
			}
			set := pick(fl)
			for _, l := range n.Lines() {
				set[l] = true
			}
		}
	}
	accumulate(c.DefYes, func(fl *fileLines) map[int]bool { return fl.yes })
	accumulate(c.DefNo, func(fl *fileLines) map[int]bool { return fl.no })
	accumulate(c.Maybe, func(fl *fileLines) map[int]bool { return fl.maybe })

	fmt.Fprintln(out, resultsStartMarker)
	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, file := range files {
		fl := byFile[file]
		scope := "global"
		if intra {
			scope = "local"
		}
		if csiclipse {
			fmt.Fprintf(out, "%s;%s;%s;%s;%s;%s\n",
				fl.function, file, scope,
				lineSetToString(fl.yes), lineSetToString(fl.no), lineSetToString(fl.maybe))
			continue
		}
		fmt.Fprintf(out, "%s\n==========\n", file)
		fmt.Fprintf(out, "Yes: %s\n", lineSetToString(fl.yes))
		fmt.Fprintf(out, "No: %s\n", lineSetToString(fl.no))
		fmt.Fprintf(out, "Maybe: %s\n\n", lineSetToString(fl.maybe))
	}
	return nil
}

// lineSetToString renders a set of line numbers as a comma-joined,
// ascending, deduplicated list, dropping the synthetic line 0.
func lineSetToString(lines map[int]bool) string {
	out := make([]int, 0, len(lines))
	for l := range lines {
		if l == 0 {
			continue
		}
		out = append(out, l)
	}
	sort.Ints(out)
	strs := make([]string, len(out))
	for i, l := range out {
		strs[i] = strconv.Itoa(l)
	}
	return strings.Join(strs, ",")
}
