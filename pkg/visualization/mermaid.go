// Package visualization renders simulation structures — workflow DAGs and
// XRootD federation trees — as Mermaid flowchart diagrams, the way
// mbflow's pkg/visualization renders its own workflow graphs for
// documentation and dashboards.
package visualization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wrenchsim/wrench/pkg/datamodel"
	"github.com/wrenchsim/wrench/pkg/xrootd"
)

// RenderOptions configures the rendered diagram's layout.
type RenderOptions struct {
	// Direction is the Mermaid flowchart direction: TB, LR, RL, or BT.
	Direction string
}

// DefaultRenderOptions returns top-to-bottom layout, matching the
// default a WMS driver's terminal output uses.
func DefaultRenderOptions() *RenderOptions {
	return &RenderOptions{Direction: "TB"}
}

func (o *RenderOptions) direction() string {
	if o == nil || o.Direction == "" {
		return "TB"
	}
	return o.Direction
}

// RenderWorkflow renders wf's task DAG as a Mermaid flowchart: one node
// per task (labelled with its state), one edge per control dependency.
func RenderWorkflow(wf *datamodel.Workflow, opts *RenderOptions) string {
	var sb strings.Builder
	sb.WriteString("flowchart ")
	sb.WriteString(opts.direction())
	sb.WriteString("\n")

	tasks := wf.Tasks()
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	for _, t := range tasks {
		sb.WriteString(fmt.Sprintf("    %s[\"%s (%s)\"]\n", mermaidID(t.ID), t.ID, t.State))
	}

	for _, t := range tasks {
		children := t.Children()
		sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })
		for _, c := range children {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", mermaidID(t.ID), mermaidID(c.ID)))
		}
	}

	return sb.String()
}

// RenderXRootDTree renders an XRootD deployment's node tree as a Mermaid
// flowchart: supervisors are rectangles, leaves are cylinders (the
// conventional Mermaid shape for a data store).
func RenderXRootDTree(root *xrootd.Node, opts *RenderOptions) string {
	var sb strings.Builder
	sb.WriteString("flowchart ")
	sb.WriteString(opts.direction())
	sb.WriteString("\n")

	renderNode(&sb, root)
	renderEdges(&sb, root)

	return sb.String()
}

func renderNode(sb *strings.Builder, n *xrootd.Node) {
	id := mermaidID(n.ID)
	if n.IsSupervisor() {
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", id, n.ID))
	} else {
		sb.WriteString(fmt.Sprintf("    %s[(\"%s\")]\n", id, n.ID))
	}
	for _, c := range n.Children {
		renderNode(sb, c)
	}
}

func renderEdges(sb *strings.Builder, n *xrootd.Node) {
	for _, c := range n.Children {
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", mermaidID(n.ID), mermaidID(c.ID)))
		renderEdges(sb, c)
	}
}

// mermaidID sanitizes an arbitrary ID into one safe for use as a Mermaid
// node identifier (Mermaid node IDs can't contain most punctuation).
func mermaidID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
