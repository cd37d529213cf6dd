package failure

import (
	"encoding/json"
	"io"
	"io/ioutil"

	"github.com/crashwalk/crashwalk/cerr"
	"github.com/pkg/errors"
)

// wireFrame is a single stack frame in the current JSON format.
type wireFrame struct {
	Call  []string `json:"call"`
	Entry []string `json:"entry"`
	Crash []string `json:"crash"`
}

// wireReport is the current JSON failure-report format.
type wireReport struct {
	CrashStack []wireFrame `json:"crashstack"`

	// Legacy format.
	Stack []wireFrame `json:"stack"`
	Crash []string    `json:"crash"`

	ObsYes []wireObsYes `json:"obsYes"`
	ObsNo  [][]string   `json:"obsNo"`
}

type wireObsYes struct {
	Reliable *bool      `json:"reliable"`
	Entries  [][]string `json:"entries"`
}

// LoadJSON parses a failure report from r in the JSON wire format.
func LoadJSON(r io.Reader) (*Report, error) {
	buf, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return LoadJSONBytes(buf)
}

// LoadJSONBytes parses a failure report from the JSON wire format in b.
func LoadJSONBytes(b []byte) (*Report, error) {
	var wr wireReport
	if err := json.Unmarshal(b, &wr); err != nil {
		return nil, errors.WithStack(err)
	}
	report := &Report{}

	stack, err := extractCrashStack(wr)
	if err != nil {
		return nil, err
	}
	report.Stack = stack

	for _, oy := range wr.ObsYes {
		if oy.Reliable == nil || *oy.Reliable != false {
			return nil, errors.WithStack(&cerr.InvalidInputError{
				Reason: `obsYes entry must carry "reliable": false`,
			})
		}
		if len(oy.Entries) == 0 {
			return nil, errors.WithStack(&cerr.InvalidInputError{Reason: "obsYes vector must not be empty"})
		}
		for _, group := range oy.Entries {
			if len(group) == 0 {
				return nil, errors.WithStack(&cerr.InvalidInputError{Reason: "obsYes group must not be empty"})
			}
		}
		report.ObsYes = append(report.ObsYes, oy.Entries)
	}

	for _, group := range wr.ObsNo {
		if len(group) == 0 {
			return nil, errors.WithStack(&cerr.InvalidInputError{Reason: "obsNo group must not be empty"})
		}
		report.ObsNo = append(report.ObsNo, group)
	}

	return report, nil
}

// extractCrashStack accepts either the current "crashstack" array-of-frames
// format or the legacy "stack"+"crash" format, never both.
func extractCrashStack(wr wireReport) ([]Frame, error) {
	hasNew := len(wr.CrashStack) > 0
	hasLegacy := len(wr.Stack) > 0 || len(wr.Crash) > 0
	switch {
	case hasNew && hasLegacy:
		return nil, errors.WithStack(&cerr.InvalidInputError{
			Reason: `failure report carries both "crashstack" and legacy "stack"/"crash" fields`,
		})
	case hasNew:
		var frames []Frame
		for i, wf := range wr.CrashStack {
			f, err := frameFromWire(wf, i == len(wr.CrashStack)-1)
			if err != nil {
				return nil, err
			}
			frames = append(frames, f)
		}
		return frames, validateStack(frames)
	case hasLegacy:
		var frames []Frame
		for _, wf := range wr.Stack {
			f, err := frameFromWire(wf, false)
			if err != nil {
				return nil, err
			}
			frames = append(frames, f)
		}
		if len(wr.Crash) == 0 {
			return nil, errors.WithStack(&cerr.InvalidInputError{Reason: `legacy failure report missing "crash"`})
		}
		frames = append(frames, Frame{CallNodes: wr.Crash, Crash: true})
		return frames, validateStack(frames)
	default:
		return nil, errors.WithStack(&cerr.InvalidInputError{Reason: "failure report has no crash stack"})
	}
}

func frameFromWire(wf wireFrame, isLast bool) (Frame, error) {
	hasCallEntry := len(wf.Call) > 0 && len(wf.Entry) > 0
	hasCrash := len(wf.Crash) > 0
	switch {
	case hasCallEntry && hasCrash:
		return Frame{}, errors.WithStack(&cerr.InvalidInputError{
			Reason: "stack frame carries both internal (call+entry) and final crash fields",
		})
	case hasCallEntry:
		return Frame{CallNodes: wf.Call, EntryNodes: wf.Entry}, nil
	case hasCrash:
		return Frame{CallNodes: wf.Crash, Crash: true}, nil
	default:
		return Frame{}, errors.WithStack(&cerr.InvalidInputError{
			Reason: "stack frame must carry exactly one of {call, entry} or {crash}",
		})
	}
}

func validateStack(frames []Frame) error {
	if len(frames) == 0 {
		return errors.WithStack(&cerr.InvalidInputError{Reason: "crash stack must not be empty"})
	}
	for i, f := range frames {
		isLast := i == len(frames)-1
		if isLast && !f.Crash {
			return errors.WithStack(&cerr.InvalidInputError{Reason: "last stack frame must be the crash frame"})
		}
		if !isLast && f.Crash {
			return errors.WithStack(&cerr.InvalidInputError{Reason: "only the last stack frame may be a crash frame"})
		}
	}
	return nil
}
