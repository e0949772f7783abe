package seed

import (
	_ "embed"
	"fmt"
	"math/big"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/rendis/flowgpt/pkg/schema"
)

//go:embed sample.hcl
var sampleHCL []byte

// File is the decoded content of a seed file.
type File struct {
	Nodes     []*NodeBlock     `hcl:"node,block"`
	Pipelines []*PipelineBlock `hcl:"pipeline,block"`
	Contacts  []*ContactBlock  `hcl:"contact,block"`
	Samples   []*SampleBlock   `hcl:"sample,block"`
}

// NodeBlock declares a node. Key is the label pipelines refer to it by.
type NodeBlock struct {
	Key         string    `hcl:"key,label"`
	Name        string    `hcl:"name"`
	Type        string    `hcl:"type"`
	Description string    `hcl:"description,optional"`
	Config      cty.Value `hcl:"config,optional"`
}

// PipelineBlock declares a pipeline as the ordered node keys of its chain.
type PipelineBlock struct {
	Key         string   `hcl:"key,label"`
	Name        string   `hcl:"name"`
	Description string   `hcl:"description,optional"`
	Active      *bool    `hcl:"active,optional"`
	Steps       []string `hcl:"steps"`
}

type ContactBlock struct {
	Name    string `hcl:"name"`
	Email   string `hcl:"email"`
	Phone   string `hcl:"phone,optional"`
	Message string `hcl:"message"`
	DaysAgo int    `hcl:"days_ago,optional"`
	IsRead  bool   `hcl:"is_read,optional"`
}

// SampleBlock is an input text used by --run-samples.
type SampleBlock struct {
	Key  string `hcl:"key,label"`
	Text string `hcl:"text"`
}

// Default returns the embedded sample data.
func Default() (*File, error) {
	return Parse("sample.hcl", sampleHCL)
}

// LoadFile reads and decodes the seed file at path.
func LoadFile(path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(path, src)
}

// Parse decodes src and checks that every pipeline step names a declared node.
func Parse(filename string, src []byte) (*File, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diagError("parse", filename, diags)
	}

	var f File
	if diags := gohcl.DecodeBody(file.Body, nil, &f); diags.HasErrors() {
		return nil, diagError("decode", filename, diags)
	}
	if err := f.check(); err != nil {
		return nil, err
	}
	return &f, nil
}

func diagError(stage, filename string, diags hcl.Diagnostics) error {
	return schema.NewErrorf(schema.ErrCodeValidation, "failed to %s seed file %s: %s",
		stage, filename, diags.Error()).WithCause(diags)
}

func (f *File) check() error {
	nodes := make(map[string]bool, len(f.Nodes))
	for _, n := range f.Nodes {
		if nodes[n.Key] {
			return schema.NewErrorf(schema.ErrCodeValidation, "node %q declared twice", n.Key)
		}
		nodes[n.Key] = true
	}

	pipelines := make(map[string]bool, len(f.Pipelines))
	for _, p := range f.Pipelines {
		if pipelines[p.Key] {
			return schema.NewErrorf(schema.ErrCodeValidation, "pipeline %q declared twice", p.Key)
		}
		pipelines[p.Key] = true

		if len(p.Steps) < 2 {
			return schema.NewErrorf(schema.ErrCodeValidation,
				"pipeline %q needs at least two steps, has %d", p.Key, len(p.Steps))
		}
		for _, step := range p.Steps {
			if !nodes[step] {
				return schema.NewErrorf(schema.ErrCodeValidation,
					"pipeline %q refers to undeclared node %q", p.Key, step)
			}
		}
	}
	return nil
}

// ConfigMap converts the node's config attribute to a plain map.
func (n *NodeBlock) ConfigMap() (map[string]any, error) {
	if n.Config.IsNull() {
		return map[string]any{}, nil
	}
	v, err := ctyValueToInterface(n.Config)
	if err != nil {
		return nil, fmt.Errorf("node %q config: %w", n.Key, err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"node %q config must be an object, got %s", n.Key, n.Config.Type().FriendlyName())
	}
	return m, nil
}

// IsActive defaults to true.
func (p *PipelineBlock) IsActive() bool {
	return p.Active == nil || *p.Active
}

// ctyValueToInterface converts a cty.Value to plain Go values. Whole numbers
// become int64 so configs round-trip as JSON integers.
func ctyValueToInterface(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	t := val.Type()
	if t.IsPrimitiveType() {
		switch t {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			bf := val.AsBigFloat()
			if bf.IsInt() {
				if i, acc := bf.Int64(); acc == big.Exact {
					return i, nil
				}
			}
			f, _ := bf.Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("unsupported primitive type: %s", t.FriendlyName())
		}
	}
	if t.IsObjectType() || t.IsMapType() {
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			converted, err := ctyValueToInterface(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = converted
		}
		return out, nil
	}
	if t.IsTupleType() || t.IsListType() || t.IsSetType() {
		out := []any{}
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			converted, err := ctyValueToInterface(v)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty.Type for conversion: %s", t.FriendlyName())
}
