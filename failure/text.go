package failure

import (
	"io"
	"io/ioutil"
	"strings"

	"github.com/crashwalk/crashwalk/cerr"
	"github.com/pkg/errors"
)

// ParseStackLine parses a crash-stack text line: frames separated by ';',
// each frame either "call,call2|entry,entry2" (internal frame) or a bare
// "crash,crash2" for the final frame.
func ParseStackLine(line string) ([]Frame, error) {
	frameStrs := splitNonEmpty(line, ";")
	if len(frameStrs) == 0 {
		return nil, errors.WithStack(&cerr.InvalidInputError{Reason: "empty crash stack line"})
	}
	var frames []Frame
	for i, fs := range frameStrs {
		isLast := i == len(frameStrs)-1
		parts := strings.Split(fs, "|")
		switch len(parts) {
		case 1:
			if !isLast {
				return nil, errors.WithStack(&cerr.InvalidInputError{
					Reason: "only the last stack frame may omit an entry group",
				})
			}
			frames = append(frames, Frame{CallNodes: splitNonEmpty(parts[0], ","), Crash: true})
		case 2:
			if isLast {
				return nil, errors.WithStack(&cerr.InvalidInputError{
					Reason: "last stack frame must be a bare crash group",
				})
			}
			frames = append(frames, Frame{
				CallNodes:  splitNonEmpty(parts[0], ","),
				EntryNodes: splitNonEmpty(parts[1], ","),
			})
		default:
			return nil, errors.WithStack(&cerr.InvalidInputError{Reason: "malformed stack frame " + fs})
		}
	}
	return frames, nil
}

// ParseObsYesLine parses one obsYes text line into an ordered vector of
// ambiguity groups: groups separated by ';', members of each group
// separated by ','.
func ParseObsYesLine(line string) [][]string {
	var vec [][]string
	for _, g := range splitNonEmpty(line, ";") {
		vec = append(vec, splitNonEmpty(g, ","))
	}
	return vec
}

// ParseObsNoLine parses one obsNo text line into a singleton group; the
// text format only supports unambiguous (singleton) "no" observations.
func ParseObsNoLine(line string) ([]string, error) {
	members := splitNonEmpty(line, ",")
	if len(members) != 1 {
		return nil, errors.WithStack(&cerr.InvalidInputError{
			Reason: "text-format obsNo entries must name exactly one node",
		})
	}
	return members, nil
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if len(part) > 0 {
			out = append(out, part)
		}
	}
	return out
}

// LoadTextReport reads a full text-format failure report: one crash-stack
// line, then any number of obsYes lines, then any number of obsNo lines,
// separated by the given section markers ("---" between sections), read
// from r.
func LoadTextReport(r io.Reader) (*Report, error) {
	buf, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	lines := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	var nonEmpty []string
	for _, l := range lines {
		if len(strings.TrimSpace(l)) > 0 {
			nonEmpty = append(nonEmpty, l)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, errors.WithStack(&cerr.InvalidInputError{Reason: "empty failure report"})
	}
	report := &Report{}
	section := 0 // 0=stack, 1=obsYes, 2=obsNo
	for _, line := range nonEmpty {
		if strings.TrimSpace(line) == "---" {
			section++
			continue
		}
		switch section {
		case 0:
			frames, err := ParseStackLine(line)
			if err != nil {
				return nil, err
			}
			report.Stack = frames
		case 1:
			report.ObsYes = append(report.ObsYes, ParseObsYesLine(line))
		case 2:
			group, err := ParseObsNoLine(line)
			if err != nil {
				return nil, err
			}
			report.ObsNo = append(report.ObsNo, group)
		}
	}
	return report, nil
}
