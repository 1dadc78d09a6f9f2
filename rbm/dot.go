package rbm

import (
	"fmt"

	"github.com/awalterschulze/gographviz"
)

// ToDot renders the layer as an undirected bipartite graph in the dot
// format. Units are labelled with their bias and edges with their weight.
func (l *RBM) ToDot() string {
	g := gographviz.NewGraph()
	if err := g.SetName("RBM"); err != nil {
		panic(err)
	}
	g.SetDir(false)

	clusters := []struct {
		name, prefix, label string
		bias                []float32
	}{
		{"cluster_visible", "v", fmt.Sprintf("%q", "visible "+l.VisibleUnit.String()), l.C.Data().([]float32)},
		{"cluster_hidden", "h", fmt.Sprintf("%q", "hidden "+l.HiddenUnit.String()), l.B.Data().([]float32)},
	}
	for _, c := range clusters {
		g.AddSubGraph("RBM", c.name, map[string]string{
			"label": c.label,
			"rank":  "same",
		})
		for i, bias := range c.bias {
			g.AddNode(c.name, fmt.Sprintf("%s%d", c.prefix, i), map[string]string{
				"label": fmt.Sprintf("\"%s%d\\n%.3f\"", c.prefix, i, bias),
				"shape": "circle",
			})
		}
	}

	for i, row := range rows(l.W) {
		for j, w := range row {
			g.AddEdge(fmt.Sprintf("v%d", i), fmt.Sprintf("h%d", j), false, map[string]string{
				"label": fmt.Sprintf("\"%.3f\"", w),
			})
		}
	}
	return g.String()
}
