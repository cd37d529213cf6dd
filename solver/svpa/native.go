package svpa

import (
	"github.com/pkg/errors"

	"github.com/crashwalk/crashwalk/cerr"
	"github.com/crashwalk/crashwalk/cfgmodel"
	"github.com/crashwalk/crashwalk/failure"
)

// NativeTransport reasons about the VPA in-process, with no external
// dependency. It is the default transport.
type NativeTransport struct {
	base        *vpaBase
	constraints []*obsAutomaton
	crashDone   bool
}

// NewNativeTransport returns a Transport backed by an in-process VPA
// reachability search.
func NewNativeTransport() *NativeTransport {
	return &NativeTransport{}
}

// Init builds the base VPA from g.
func (t *NativeTransport) Init(g *cfgmodel.Graph) error {
	t.base = buildVPA(g)
	return nil
}

// EncodeCrash encodes the crash stack as the combined linear constraint.
func (t *NativeTransport) EncodeCrash(stack []failure.Frame) error {
	if t.crashDone {
		return errors.WithStack(&cerr.InvariantViolationError{Reason: "EncodeCrash called more than once"})
	}
	if len(stack) == 0 {
		return errors.WithStack(&cerr.InvalidInputError{Reason: "empty crash stack"})
	}
	var vector [][]string
	for _, f := range stack {
		if f.Crash {
			vector = append(vector, f.CallNodes)
			continue
		}
		vector = append(vector, f.CallNodes)
		vector = append(vector, f.EntryNodes)
	}
	t.constraints = append(t.constraints, linearCrashAutomaton(vector))
	t.crashDone = true
	return nil
}

// EncodeObsYes encodes one ordered "yes" vector.
func (t *NativeTransport) EncodeObsYes(vector [][]string) error {
	if len(vector) == 0 {
		return errors.WithStack(&cerr.InvalidInputError{Reason: "empty obsYes vector"})
	}
	t.constraints = append(t.constraints, linearObsAutomaton(vector))
	return nil
}

// EncodeObsNo encodes one "no" group; only singleton groups are supported.
func (t *NativeTransport) EncodeObsNo(group []string) error {
	if len(group) != 1 {
		return errors.WithStack(&cerr.InvalidInputError{Reason: "svpa solver requires singleton obsNo groups"})
	}
	t.constraints = append(t.constraints, forbidAutomaton(group[0]))
	return nil
}

// IsSat reports whether the constraints encoded so far admit an execution.
func (t *NativeTransport) IsSat() (bool, error) {
	return t.ProbeSat("", "")
}

// ProbeSat reports satisfiability with one extra temporary require/forbid
// constraint layered on top of the persistent constraints.
func (t *NativeTransport) ProbeSat(require, forbid string) (bool, error) {
	all := make([]*obsAutomaton, 0, len(t.constraints)+1)
	all = append(all, t.constraints...)
	if require != "" {
		all = append(all, requireAutomaton(require))
	}
	if forbid != "" {
		all = append(all, forbidAutomaton(forbid))
	}
	return vpaProductReachable(t.base, all), nil
}

// vpaState is one node of the lazily-explored product search: the base
// VPA's state and call stack, plus each observation automaton's state.
type vpaState struct {
	base  int
	stack []int
	obs   []int
}

func vpaProductReachable(base *vpaBase, obs []*obsAutomaton) bool {
	start := vpaState{base: base.start, obs: make([]int, len(obs))}
	if vpaAccepts(base, obs, start) {
		return true
	}
	seen := map[string]bool{vpaKey(start): true}
	queue := []vpaState{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, sym := range vpaCandidateSymbols(base, obs, cur) {
			nb, ns, ok := base.step(cur.base, sym, cur.stack)
			if !ok {
				continue
			}
			nextObs := make([]int, len(obs))
			allOK := true
			for i, a := range obs {
				n, ok := a.step(cur.obs[i], sym)
				if !ok {
					allOK = false
					break
				}
				nextObs[i] = n
			}
			if !allOK {
				continue
			}
			next := vpaState{base: nb, stack: ns, obs: nextObs}
			k := vpaKey(next)
			if seen[k] {
				continue
			}
			seen[k] = true
			if vpaAccepts(base, obs, next) {
				return true
			}
			queue = append(queue, next)
		}
	}
	return false
}

func vpaAccepts(base *vpaBase, obs []*obsAutomaton, s vpaState) bool {
	if !base.accept[s.base] {
		return false
	}
	for i, a := range obs {
		if !a.accept[s.obs[i]] {
			return false
		}
	}
	return true
}

func vpaCandidateSymbols(base *vpaBase, obs []*obsAutomaton, s vpaState) []string {
	seen := make(map[string]bool)
	var out []string
	for sym := range base.trans[s.base] {
		if !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	for i, a := range obs {
		for sym := range a.trans[s.obs[i]] {
			if !seen[sym] {
				seen[sym] = true
				out = append(out, sym)
			}
		}
	}
	return out
}

func vpaKey(s vpaState) string {
	b := make([]byte, 0, 4+4*len(s.stack)+4*len(s.obs))
	putInt := func(v int) {
		b = append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	putInt(s.base)
	putInt(len(s.stack))
	for _, v := range s.stack {
		putInt(v)
	}
	for _, v := range s.obs {
		putInt(v)
	}
	return string(b)
}
