package packstack

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// PackDescriptor declares one shared resource pack. Each pack has at most
// one parent; multiple inheritance is not supported.
type PackDescriptor struct {
	ID          string
	Parent      string
	Versions    []string
	Description string
	// Root is the layer root of the pack relative to the project filesystem.
	Root string
}

// PackGraph is the validated inheritance graph of a project's packs. It is
// immutable after BuildGraph returns.
type PackGraph struct {
	packs    map[string]PackDescriptor
	parent   map[string]string
	children map[string][]string
	ids      []string
}

// BuildGraph validates descriptors and links parents. It fails with
// DuplicatePackError, UnknownParentPackError or CycleError; no partial graph
// is returned.
func BuildGraph(descs []PackDescriptor) (*PackGraph, error) {
	g := &PackGraph{
		packs:    make(map[string]PackDescriptor, len(descs)),
		parent:   make(map[string]string, len(descs)),
		children: make(map[string][]string),
	}

	for _, d := range descs {
		if d.ID == "" {
			return nil, fmt.Errorf("build pack graph: pack id is empty")
		}
		if _, exists := g.packs[d.ID]; exists {
			return nil, &DuplicatePackError{Pack: d.ID}
		}
		d.Versions = slices.Clone(d.Versions)
		g.packs[d.ID] = d
	}
	g.ids = slices.Sorted(maps.Keys(g.packs))

	for _, id := range g.ids {
		parent := g.packs[id].Parent
		if parent == "" {
			continue
		}
		if _, ok := g.packs[parent]; !ok {
			return nil, &UnknownParentPackError{Pack: id, Parent: parent}
		}
		g.parent[id] = parent
		g.children[parent] = append(g.children[parent], id)
	}

	if err := g.detectCycles(); err != nil {
		return nil, err
	}
	return g, nil
}

// detectCycles walks parent links from every pack. Out-degree is at most one,
// so each walk is a simple path; a pack seen on the current path closes a cycle.
func (g *PackGraph) detectCycles() error {
	const (
		stateNew uint8 = iota
		stateVisiting
		stateDone
	)

	state := make(map[string]uint8, len(g.ids))
	for _, start := range g.ids {
		if state[start] == stateDone {
			continue
		}

		var path []string
		pos := make(map[string]int)
		for id := start; id != ""; id = g.parent[id] {
			if state[id] == stateDone {
				break
			}
			if state[id] == stateVisiting {
				return &CycleError{Cycle: slices.Clone(path[pos[id]:])}
			}
			state[id] = stateVisiting
			pos[id] = len(path)
			path = append(path, id)
		}

		for _, id := range path {
			state[id] = stateDone
		}
	}
	return nil
}

// AncestryChain returns the root-to-self path of id: index 0 is the most
// basic pack, the last element is id itself.
func (g *PackGraph) AncestryChain(id string) ([]string, error) {
	if _, ok := g.packs[id]; !ok {
		return nil, &UnknownPackError{Pack: id}
	}
	var chain []string
	for cur := id; cur != ""; cur = g.parent[cur] {
		chain = append(chain, cur)
	}
	slices.Reverse(chain)
	return chain, nil
}

// Pack returns the descriptor of id.
func (g *PackGraph) Pack(id string) (PackDescriptor, bool) {
	d, ok := g.packs[id]
	return d, ok
}

// Packs returns all descriptors sorted by id.
func (g *PackGraph) Packs() []PackDescriptor {
	out := make([]PackDescriptor, 0, len(g.ids))
	for _, id := range g.ids {
		out = append(out, g.packs[id])
	}
	return out
}

// Parent returns the parent of id, or "" for roots and unknown packs.
func (g *PackGraph) Parent(id string) string { return g.parent[id] }

// Children returns the packs that inherit directly from id, sorted.
func (g *PackGraph) Children(id string) []string {
	return slices.Clone(g.children[id])
}

// Roots returns the packs without a parent, sorted.
func (g *PackGraph) Roots() []string {
	var roots []string
	for _, id := range g.ids {
		if g.parent[id] == "" {
			roots = append(roots, id)
		}
	}
	return roots
}

// Len returns the number of packs.
func (g *PackGraph) Len() int { return len(g.ids) }

// With returns a new graph with desc added or replaced, validated like BuildGraph.
func (g *PackGraph) With(desc PackDescriptor) (*PackGraph, error) {
	descs := make([]PackDescriptor, 0, len(g.ids)+1)
	for _, id := range g.ids {
		if id != desc.ID {
			descs = append(descs, g.packs[id])
		}
	}
	return BuildGraph(append(descs, desc))
}

// DOT exports Graphviz DOT text. Edges point from child to parent.
func (g *PackGraph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph packs {\n")
	b.WriteString("  rankdir=BT;\n")

	aliases := make(map[string]string, len(g.ids))
	for i, id := range g.ids {
		alias := fmt.Sprintf("n%d", i)
		aliases[id] = alias
		label := escapeDOT(id)
		if vs := g.packs[id].Versions; len(vs) > 0 {
			label += "\\n(" + escapeDOT(strings.Join(vs, ", ")) + ")"
		}
		fmt.Fprintf(&b, "  %s [label=\"%s\"];\n", alias, label)
	}
	for _, id := range g.ids {
		if parent := g.parent[id]; parent != "" {
			fmt.Fprintf(&b, "  %s -> %s;\n", aliases[id], aliases[parent])
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// Mermaid exports Mermaid graph text.
func (g *PackGraph) Mermaid() string {
	var b strings.Builder
	b.WriteString("graph BT\n")

	aliases := make(map[string]string, len(g.ids))
	for i, id := range g.ids {
		alias := fmt.Sprintf("n%d", i)
		aliases[id] = alias
		label := escapeMermaid(id)
		if vs := g.packs[id].Versions; len(vs) > 0 {
			label += "<br/>(" + escapeMermaid(strings.Join(vs, ", ")) + ")"
		}
		fmt.Fprintf(&b, "    %s[\"%s\"]\n", alias, label)
	}
	for _, id := range g.ids {
		if parent := g.parent[id]; parent != "" {
			fmt.Fprintf(&b, "    %s --> %s\n", aliases[id], aliases[parent])
		}
	}
	return b.String()
}

// Mermaid has no backslash escapes inside quoted labels; it uses entities.
var (
	dotEscaper     = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	mermaidEscaper = strings.NewReplacer(`"`, "#quot;")
)

func escapeDOT(s string) string {
	return dotEscaper.Replace(s)
}

func escapeMermaid(s string) string {
	return mermaidEscaper.Replace(s)
}
