// gen-diagrams renders the sample pipelines for README documentation.
// Run: go run ./cmd/gen-diagrams [seed.hcl]
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rendis/flowgpt/internal/diagram"
	"github.com/rendis/flowgpt/internal/seed"
	"github.com/rendis/flowgpt/internal/store"
)

func main() {
	f, err := loadFile(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "load seed: %v\n", err)
		os.Exit(1)
	}

	outDir := filepath.Join("docs", "diagrams")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", outDir, err)
		os.Exit(1)
	}

	for _, p := range f.Pipelines {
		model := diagram.Build(inputFor(f, p))

		mermaid := diagram.RenderMermaid(model)
		os.WriteFile(filepath.Join(outDir, p.Key+".md"),
			[]byte("# "+p.Name+"\n\n```mermaid\n"+mermaid+"\n```\n"), 0o644)

		ascii := diagram.RenderASCII(model)
		os.WriteFile(filepath.Join(outDir, p.Key+".txt"), []byte(ascii), 0o644)

		fmt.Println(ascii)
	}
	fmt.Printf("Written: %d pipelines to %s\n", len(f.Pipelines), outDir)
}

func loadFile(args []string) (*seed.File, error) {
	if len(args) > 0 {
		return seed.LoadFile(args[0])
	}
	return seed.Default()
}

// inputFor numbers nodes by their position in the seed file, the same ids
// a fresh database assigns them.
func inputFor(f *seed.File, p *seed.PipelineBlock) diagram.Input {
	ids := make(map[string]int64, len(f.Nodes))
	names := make(map[string]string, len(f.Nodes))
	types := make(map[int64]string, len(f.Nodes))
	for i, n := range f.Nodes {
		id := int64(i + 1)
		ids[n.Key] = id
		names[n.Key] = n.Name
		types[id] = n.Type
	}

	var edges []*store.Edge
	for i := 1; i < len(p.Steps); i++ {
		src, dst := p.Steps[i-1], p.Steps[i]
		edges = append(edges, &store.Edge{
			ID:         int64(i),
			SourceID:   ids[src],
			TargetID:   ids[dst],
			Order:      i - 1,
			SourceName: names[src],
			TargetName: names[dst],
		})
	}
	return diagram.Input{Title: p.Name, Edges: edges, NodeTypes: types}
}
