package cfgmodel

import (
	"io"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
)

// WriteDOT marshals g to the DOT format and writes it to w, for visual
// debugging of the normalized graph. Node labels carry the node's kind and
// CFG id; entry/exit nodes are additionally shaped as boxes.
func WriteDOT(w io.Writer, g *Graph) error {
	buf, err := dot.Marshal(g, g.DOTID(), "", "\t")
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = w.Write(buf)
	return errors.WithStack(err)
}

// Attributes implements encoding.Attributer, labeling each node with its
// kind and CFG id.
func (n *Node) Attributes() []encoding.Attribute {
	attrs := []encoding.Attribute{{Key: "label", Value: n.kind + "\\n" + n.id}}
	if n.kind == KindEntry || n.kind == KindExit {
		attrs = append(attrs, encoding.Attribute{Key: "shape", Value: "box"})
	}
	return attrs
}
