package svpa

import (
	"github.com/crashwalk/crashwalk/cfgmodel"
	"github.com/crashwalk/crashwalk/failure"
)

// Transport abstracts the engine that actually reasons about the VPA: by
// default an in-process NativeTransport, or optionally a SubprocessTransport
// that drives an external SVPA server over the line protocol described on
// SubprocessTransport.
type Transport interface {
	Init(g *cfgmodel.Graph) error
	EncodeCrash(stack []failure.Frame) error
	EncodeObsYes(vector [][]string) error
	EncodeObsNo(group []string) error
	IsSat() (bool, error)
	// ProbeSat reports satisfiability with one extra temporary constraint:
	// require forces node require to occur, forbid forces node forbid to
	// never occur. At most one of the two is set per call.
	ProbeSat(require, forbid string) (bool, error)
}
