package svpa

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/kr/pty"
	"github.com/pkg/errors"

	"github.com/crashwalk/crashwalk/cerr"
	"github.com/crashwalk/crashwalk/cfgmodel"
	"github.com/crashwalk/crashwalk/failure"
)

const (
	defaultMaxMemoryMB = 32768
	minMaxMemoryMB     = 1024
	heapFraction       = 0.65625
)

// SubprocessTransport drives an external SVPA server process over a
// line-based protocol prompted by ">> ": it sends cfg/constraint/stack
// bodies terminated by "END" and empty/probe empty queries, one reply per
// command. It sends no witness command.
type SubprocessTransport struct {
	jarPath string
	cmd     *exec.Cmd
	pty     *os.File
	r       *bufio.Reader
}

// NewSubprocessTransport returns a Transport that spawns a JVM running
// jarPath as a child process communicating over a pty. MAX_MEMORY (MiB,
// default 32768, floor 1024) sizes the child's heap at MAX_MEMORY*0.65625
// MiB, mirroring the original tool's JVM -Xmx sizing.
func NewSubprocessTransport(jarPath string) *SubprocessTransport {
	return &SubprocessTransport{jarPath: jarPath}
}

func maxMemoryMB() int {
	mb := defaultMaxMemoryMB
	if v := os.Getenv("MAX_MEMORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			mb = n
		}
	}
	if mb < minMaxMemoryMB {
		mb = minMaxMemoryMB
	}
	return mb
}

func (t *SubprocessTransport) heapMB() int {
	return int(float64(maxMemoryMB()) * heapFraction)
}

func (t *SubprocessTransport) start() error {
	args := []string{fmt.Sprintf("-Xmx%dm", t.heapMB()), "-jar", t.jarPath}
	cmd := exec.Command("java", args...)
	f, err := pty.Start(cmd)
	if err != nil {
		return errors.WithStack(&cerr.ExternalFailureError{Reason: "failed to start svpa subprocess", Err: err})
	}
	t.cmd = cmd
	t.pty = f
	t.r = bufio.NewReader(f)
	return t.expectPrompt()
}

func (t *SubprocessTransport) expectPrompt() error {
	for {
		line, err := t.r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return errors.WithStack(&cerr.ExternalFailureError{Reason: "svpa subprocess exited unexpectedly"})
			}
			return errors.WithStack(&cerr.ExternalFailureError{Reason: "reading svpa subprocess output", Err: err})
		}
		if strings.HasPrefix(line, ">> ") {
			return nil
		}
	}
}

func (t *SubprocessTransport) send(lines ...string) error {
	for _, l := range lines {
		if _, err := io.WriteString(t.pty, l+"\n"); err != nil {
			return errors.WithStack(&cerr.ExternalFailureError{Reason: "writing to svpa subprocess", Err: err})
		}
	}
	return t.expectPrompt()
}

// Init starts the subprocess and uploads the CFG as internal/call/return
// transitions, followed by END.
func (t *SubprocessTransport) Init(g *cfgmodel.Graph) error {
	if err := t.start(); err != nil {
		return err
	}
	v := buildVPA(g)
	var lines []string
	lines = append(lines, "cfg")
	for s, m := range v.trans {
		for sym, arcs := range m {
			for _, a := range arcs {
				kind := "i"
				switch a.kind {
				case kindCall:
					kind = "c"
				case kindReturn:
					kind = "r"
				}
				lines = append(lines, fmt.Sprintf("t,%s,%d,%d,%s", kind, s, a.to, sym))
			}
		}
		if v.accept[s] {
			lines = append(lines, fmt.Sprintf("f,%d", s))
		}
	}
	lines = append(lines, "END")
	return t.send(lines...)
}

// EncodeCrash sends the crash stack as a sequence of call[,entry] lines.
func (t *SubprocessTransport) EncodeCrash(stack []failure.Frame) error {
	var lines []string
	lines = append(lines, "stack")
	for _, f := range stack {
		if f.Crash {
			if len(f.CallNodes) != 1 {
				return errors.WithStack(&cerr.InvalidInputError{Reason: "svpa subprocess requires an unambiguous crash node"})
			}
			lines = append(lines, f.CallNodes[0])
			continue
		}
		if len(f.CallNodes) != 1 || len(f.EntryNodes) != 1 {
			return errors.WithStack(&cerr.InvalidInputError{Reason: "svpa subprocess requires unambiguous stack frames"})
		}
		lines = append(lines, f.CallNodes[0]+","+f.EntryNodes[0])
	}
	lines = append(lines, "END")
	if err := t.send(lines...); err != nil {
		return err
	}
	sat, err := t.IsSat()
	if err != nil {
		return err
	}
	if !sat {
		return errors.WithStack(&cerr.InvariantViolationError{Reason: "crash stack is unreachable from the entry"})
	}
	return nil
}

// EncodeObsYes uploads a genObsYesSVPA-style automaton for one vector.
func (t *SubprocessTransport) EncodeObsYes(vector [][]string) error {
	var lines []string
	lines = append(lines, "constraint")
	k := len(vector)
	for i := 0; i < k; i++ {
		lines = append(lines, fmt.Sprintf("t,i,%d,%d,*", i, i))
		lines = append(lines, fmt.Sprintf("t,c,%d,%d,*", i, i))
		lines = append(lines, fmt.Sprintf("t,r,%d,%d,*", i, i))
		for _, sym := range vector[i] {
			lines = append(lines, fmt.Sprintf("t,i,%d,%d,%s", i, i+1, sym))
		}
	}
	lines = append(lines, fmt.Sprintf("t,i,%d,%d,*", k, k))
	lines = append(lines, fmt.Sprintf("t,c,%d,%d,*", k, k))
	lines = append(lines, fmt.Sprintf("t,r,%d,%d,*", k, k))
	lines = append(lines, fmt.Sprintf("f,%d", k))
	lines = append(lines, "END")
	return t.send(lines...)
}

// EncodeObsNo uploads a constraint automaton rejecting the singleton node:
// every symbol but the forbidden one self-loops in the accepting state, the
// forbidden symbol falls into a non-accepting trap state.
func (t *SubprocessTransport) EncodeObsNo(group []string) error {
	if len(group) != 1 {
		return errors.WithStack(&cerr.InvalidInputError{Reason: "svpa subprocess requires singleton obsNo groups"})
	}
	forbidden := group[0]
	lines := []string{
		"constraint",
		"t,i,0,0,*", "t,c,0,0,*", "t,r,0,0,*",
		fmt.Sprintf("t,i,0,1,%s", forbidden),
		fmt.Sprintf("t,c,0,1,%s", forbidden),
		fmt.Sprintf("t,r,0,1,%s", forbidden),
		"t,i,1,1,*", "t,c,1,1,*", "t,r,1,1,*",
		"f,0",
		"END",
	}
	return t.send(lines...)
}

// IsSat asks whether the emptiness probe reports non-empty.
func (t *SubprocessTransport) IsSat() (bool, error) {
	if err := t.send("empty"); err != nil {
		return false, err
	}
	line, err := t.r.ReadString('\n')
	if err != nil {
		return false, errors.WithStack(&cerr.ExternalFailureError{Reason: "reading svpa subprocess reply", Err: err})
	}
	return strings.TrimSpace(line) == "false", nil
}

// ProbeSat asks "probe empty" with a temporary node requirement/forbiddance.
func (t *SubprocessTransport) ProbeSat(require, forbid string) (bool, error) {
	if err := t.send(fmt.Sprintf("probe empty,%s,%s", require, forbid)); err != nil {
		return false, err
	}
	line, err := t.r.ReadString('\n')
	if err != nil {
		return false, errors.WithStack(&cerr.ExternalFailureError{Reason: "reading svpa subprocess reply", Err: err})
	}
	return strings.TrimSpace(line) == "false", nil
}

// Close terminates the subprocess.
func (t *SubprocessTransport) Close() error {
	if t.pty != nil {
		t.pty.Close()
	}
	if t.cmd != nil && t.cmd.Process != nil {
		return t.cmd.Process.Kill()
	}
	return nil
}
