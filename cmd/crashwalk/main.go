// Command crashwalk classifies every node of a control flow graph as
// defYes, defNo, or maybe executed, given a post-mortem crash stack and
// partial yes/no coverage observations.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/crashwalk/crashwalk/driver"
)

// repeatedFlag collects one string per occurrence of a flag, e.g.
// "-y a;b -y c" yields []string{"a;b", "c"}.
type repeatedFlag []string

func (r *repeatedFlag) String() string { return strings.Join(*r, ",") }

func (r *repeatedFlag) Set(v string) error {
	*r = append(*r, v)
	return nil
}

func main() {
	var (
		jsonPath    = flag.String("json", "", "failure report path in the JSON wire format (use - for stdin)")
		crashStack  = flag.String("c", "", "legacy mode: crash stack text line")
		stackOnly   = flag.Bool("stackonly", false, "ignore obsYes/obsNo, classify from the crash stack alone")
		intra       = flag.Bool("intra", false, "require the graph to contain exactly one procedure")
		first       = flag.String("first", "utl", "solver strategy: FSA, UTL, SVPA, or Pexpect")
		second      = flag.String("second", "", "optional second solver strategy to cross-check against")
		compare     = flag.String("compare", "", "relation the second solver's result must satisfy: eq, gt, lt")
		collapse    = flag.String("collapse", "none", "basic-block collapse scope: none, first, second, both")
		resultStyle = flag.String("result-style", "compact", "none, compact, full, csiclipse, standard")
		svpaJar     = flag.String("svpa-jar", "../SVPAServer/SVPAServer.jar", "SVPA server jar, used by -first/-second Pexpect")
		dotPath     = flag.String("dot", "", "dump the loaded graph in DOT format to this path, for debugging")
	)
	var obsYes, obsNo repeatedFlag
	flag.Var(&obsYes, "y", "legacy mode: one obsYes vector line (repeatable)")
	flag.Var(&obsNo, "n", "legacy mode: one obsNo group line, singleton only (repeatable)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: crashwalk [flags] graph_filename")
		flag.PrintDefaults()
		os.Exit(1)
	}

	opts := driver.Options{
		GraphPath:       flag.Arg(0),
		JSONPath:        *jsonPath,
		LegacyCrash:     *crashStack,
		LegacyObsYes:    obsYes,
		LegacyObsNo:     obsNo,
		StackOnly:       *stackOnly,
		Intraprocedural: *intra,
		First:           *first,
		Second:          *second,
		Compare:         *compare,
		Collapse:        driver.Collapse(*collapse),
		ResultStyle:     *resultStyle,
		SvpaJarPath:     *svpaJar,
		DotPath:         *dotPath,
	}

	if _, err := driver.Run(opts); err != nil {
		log.Printf("%+v", err)
		os.Exit(1)
	}
}
