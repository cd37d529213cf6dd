package cfgmodel

import (
	"encoding/json"
	"io"
	"io/ioutil"

	"github.com/crashwalk/crashwalk/cerr"
	"github.com/pkg/errors"
)

// wireNode is the JSON wire representation of a node.
type wireNode struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Procedure  string `json:"procedure"`
	File       string `json:"file"`
	Lines      []int  `json:"lines"`
	BasicBlock string `json:"basicBlock"`
	CsiLabel   string `json:"csiLabel"`
	Syntax     string `json:"syntax"`
}

// wireEdge is the JSON wire representation of an edge.
type wireEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Type  string `json:"type"`
	Scope string `json:"scope"`
	When  string `json:"when"`
}

// wireGraph is the JSON wire representation of a control flow graph.
type wireGraph struct {
	ProgramStart string     `json:"programStart"`
	Nodes        []wireNode `json:"nodes"`
	Edges        []wireEdge `json:"edges"`
}

// Parse decodes a control flow graph in the JSON wire format from r and runs
// the normalization pipeline over it.
func Parse(r io.Reader) (*Graph, error) {
	buf, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ParseBytes(buf)
}

// ParseFile decodes a control flow graph from the JSON wire format file at
// path and runs the normalization pipeline over it.
func ParseFile(path string) (*Graph, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ParseBytes(buf)
}

// ParseBytes decodes a control flow graph from the JSON wire format in b and
// runs the normalization pipeline over it.
func ParseBytes(b []byte) (*Graph, error) {
	var wg wireGraph
	if err := json.Unmarshal(b, &wg); err != nil {
		return nil, errors.WithStack(err)
	}
	g := NewGraph()
	for _, wn := range wg.Nodes {
		if len(wn.ID) == 0 {
			return nil, errors.WithStack(&cerr.InvalidInputError{Reason: "node missing id"})
		}
		n := &Node{
			Node:       g.DirectedGraph.NewNode(),
			index:      g.nextIndex,
			id:         wn.ID,
			kind:       wn.Kind,
			procedure:  wn.Procedure,
			file:       wn.File,
			lines:      wn.Lines,
			basicBlock: wn.BasicBlock,
			csiLabel:   wn.CsiLabel,
			syntax:     wn.Syntax,
		}
		g.nextIndex++
		g.AddNode(n)
	}
	for _, we := range wg.Edges {
		from, ok := g.nodes[we.From]
		if !ok {
			return nil, errors.WithStack(&cerr.InvalidInputError{Reason: "edge references unknown node " + we.From})
		}
		to, ok := g.nodes[we.To]
		if !ok {
			return nil, errors.WithStack(&cerr.InvalidInputError{Reason: "edge references unknown node " + we.To})
		}
		e := &Edge{
			Edge:  g.DirectedGraph.NewEdge(from, to),
			Type:  we.Type,
			Scope: we.Scope,
			When:  we.When,
		}
		g.DirectedGraph.SetEdge(e)
	}
	if len(wg.ProgramStart) > 0 {
		if n, ok := g.nodes[wg.ProgramStart]; ok {
			g.entry = n
		}
	}
	if g.entry == nil {
		return nil, errors.WithStack(&cerr.InvalidInputError{Reason: "unable to locate entry node"})
	}
	if err := Normalize(g); err != nil {
		return nil, err
	}
	return g, nil
}

// ParseString decodes a control flow graph from the JSON wire format in s.
func ParseString(s string) (*Graph, error) {
	return ParseBytes([]byte(s))
}
