package server

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hamletlg/POCKETFLOWGRAPH/wire"
)

// GenerateScript renders a workflow as a standalone Go source file that
// rebuilds the same graph with the pocketgraph API. The artifact is a
// starting point for users who outgrow the visual editor, not a frozen
// runtime.
func GenerateScript(name string, wf wire.Workflow) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "// Code generated from workflow %q on %s.\n",
		name, time.Now().UTC().Format("2006-01-02"))
	b.WriteString("package main\n\n")
	b.WriteString("import (\n")
	b.WriteString("\t\"fmt\"\n\n")
	b.WriteString("\tpocketgraph \"github.com/hamletlg/POCKETFLOWGRAPH\"\n")
	b.WriteString("\t\"github.com/hamletlg/POCKETFLOWGRAPH/catalog\"\n")
	b.WriteString(")\n\n")

	b.WriteString("func buildDocument() (*pocketgraph.Document, error) {\n")
	b.WriteString("\tdoc := pocketgraph.NewDocument()\n")
	fmt.Fprintf(&b, "\tdoc.SetName(%q)\n", name)
	b.WriteString("\tcat := catalog.Builtins()\n\n")

	for _, n := range wf.Nodes {
		fmt.Fprintf(&b, "\tif err := doc.AddNode(&pocketgraph.NodeRecord{\n")
		fmt.Fprintf(&b, "\t\tID:       %q,\n", n.ID)
		fmt.Fprintf(&b, "\t\tKind:     %q,\n", n.Type)
		if n.Label != "" {
			fmt.Fprintf(&b, "\t\tLabel:    %q,\n", n.Label)
		}
		fmt.Fprintf(&b, "\t\tPosition: pocketgraph.Position{X: %g, Y: %g},\n",
			n.Position.X, n.Position.Y)
		if params := paramLiteral(n); params != "" {
			fmt.Fprintf(&b, "\t\tParams:   %s,\n", params)
		}
		b.WriteString("\t\tPorts:    nodePorts(cat, ")
		fmt.Fprintf(&b, "%q),\n", n.Type)
		b.WriteString("\t}); err != nil {\n\t\treturn nil, err\n\t}\n")
	}

	if len(wf.Edges) > 0 {
		b.WriteString("\n")
	}
	for _, e := range wf.Edges {
		fmt.Fprintf(&b, "\tif _, err := doc.AddEdge(%q, %q, %q, %q); err != nil {\n",
			e.Source, wire.SourcePort(e.SourceHandle), e.Target, wire.TargetPort(e.TargetHandle))
		b.WriteString("\t\treturn nil, err\n\t}\n")
	}

	b.WriteString("\n\tdoc.MarkClean()\n")
	b.WriteString("\treturn doc, nil\n")
	b.WriteString("}\n\n")

	b.WriteString("func nodePorts(cat *catalog.Catalog, kind string) pocketgraph.Ports {\n")
	b.WriteString("\tdef, ok := cat.Get(kind)\n")
	b.WriteString("\tif !ok {\n\t\treturn pocketgraph.Ports{}\n\t}\n")
	b.WriteString("\treturn pocketgraph.Ports{Inputs: def.Inputs, Outputs: def.Outputs}\n")
	b.WriteString("}\n\n")

	b.WriteString("func main() {\n")
	b.WriteString("\tdoc, err := buildDocument()\n")
	b.WriteString("\tif err != nil {\n")
	b.WriteString("\t\tfmt.Println(\"building workflow:\", err)\n")
	b.WriteString("\t\treturn\n\t}\n")
	b.WriteString("\tfmt.Printf(\"workflow %s: %d nodes, %d edges\\n\", doc.Name(), len(doc.Nodes()), len(doc.Edges()))\n")
	b.WriteString("}\n")

	return []byte(b.String())
}

func paramLiteral(n wire.Node) string {
	if n.Data == nil || n.Data.Len() == 0 {
		return ""
	}
	keys := n.Data.Keys()
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		v, _ := n.Data.Get(k)
		switch t := v.(type) {
		case string:
			parts = append(parts, fmt.Sprintf("%q, %q", k, t))
		case bool:
			parts = append(parts, fmt.Sprintf("%q, %v", k, t))
		default:
			parts = append(parts, fmt.Sprintf("%q, %q", k, fmt.Sprint(t)))
		}
	}
	return "pocketgraph.ParamsFrom(" + strings.Join(parts, ", ") + ")"
}
