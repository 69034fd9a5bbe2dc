// Package manifest decodes `.oo.yaml` flow and block manifests into the
// plain structures the runtime graph composer consumes. It is a minimal,
// real collaborator: no schema-level validation beyond what's needed for
// the composer to do its job — deep manifest schema robustness is out of
// scope here.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/oocana-go/oocana/internal/domain/flow"
)

// FlowManifest is the on-disk shape of a `.oo.yaml` flow file.
type FlowManifest struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description,omitempty"`
	Nodes       []NodeManifest         `yaml:"nodes"`
	InputsDef   []HandleManifest       `yaml:"inputs_def,omitempty"`
	OutputsFrom []OutputFromManifest   `yaml:"outputs_from,omitempty"`
}

// NodeManifest is one node entry in a flow manifest. Exactly one of the
// *-specific fields is populated, discriminated by Kind, matching the
// on-disk shape a manifest reader produces.
type NodeManifest struct {
	NodeID         string              `yaml:"node_id"`
	Kind           string              `yaml:"kind"` // task | subflow | slot | service | condition | value
	From           []EdgeFromManifest  `yaml:"from,omitempty"`
	RunAfter       []string            `yaml:"run_after,omitempty"`
	Ignore         bool                `yaml:"ignore,omitempty"`
	ProgressWeight *float64            `yaml:"progress_weight,omitempty"`
	InputsDefPatch []InputsPatchEntry  `yaml:"inputs_def_patch,omitempty"`

	// Task / Applet
	BlockRef       string   `yaml:"block,omitempty"`
	Concurrency    int      `yaml:"concurrency,omitempty"`
	TimeoutSeconds int      `yaml:"timeout,omitempty"`
	Executor       string   `yaml:"executor,omitempty"`
	SpawnRemote    bool     `yaml:"spawn_remote,omitempty"`
	ErrorPolicy    string   `yaml:"error_policy,omitempty"`
	IsApplet       bool     `yaml:"is_applet,omitempty"`

	// Subflow
	FlowRef string `yaml:"flow,omitempty"`

	// Slot
	ProviderRef string `yaml:"provider,omitempty"`

	// Service
	ServiceName string `yaml:"service,omitempty"`

	// Condition
	Cases   []ConditionCaseManifest `yaml:"cases,omitempty"`
	Default string                  `yaml:"default,omitempty"`

	// Value
	Outputs map[string][]interface{} `yaml:"outputs,omitempty"`
}

type EdgeFromManifest struct {
	Input string `yaml:"input"`
	// Exactly one of the following identifies the source.
	FlowInput string `yaml:"flow_input,omitempty"`
	FromNode  string `yaml:"node,omitempty"`
	FromOut   string `yaml:"output,omitempty"`
	// Literal is a pointer-to-interface so decode can distinguish "no
	// literal key at all" (nil pointer) from "literal: null" (non-nil
	// pointer to a nil interface) from "literal: <value>" (non-nil
	// pointer to that value) — the tri-state an
	// Option<Option<JsonValue>> carries.
	Literal *interface{} `yaml:"literal"`
}

type InputsPatchEntry struct {
	Handle   string `yaml:"handle"`
	Nullable *bool  `yaml:"nullable,omitempty"`
}

type ConditionCaseManifest struct {
	Handle    string `yaml:"handle"`
	Op        string `yaml:"op"`
	OnHandle  string `yaml:"on,omitempty"`
	Operand   interface{} `yaml:"value,omitempty"`
}

type HandleManifest struct {
	Name     string `yaml:"name"`
	Nullable bool   `yaml:"nullable,omitempty"`
	// Default is a pointer-to-interface so a missing `default` key (nil),
	// `default: null` (non-nil pointing to nil), and `default: <value>`
	// decode to three distinct states.
	Default *interface{} `yaml:"default"`
	// Type is a block author's optional JSON Schema description of the
	// handle's value shape. Opaque to composition beyond best-effort
	// validation of any literal Default against it.
	Type map[string]interface{} `yaml:"type,omitempty"`
}

type OutputFromManifest struct {
	Output string `yaml:"output"`
	Node   string `yaml:"node"`
	From   string `yaml:"from"`
}

// BlockManifest is the on-disk shape of a block's own manifest,
// describing its declared input/output handles independent of any flow
// that references it.
type BlockManifest struct {
	Name      string           `yaml:"name"`
	Kind      string           `yaml:"kind"` // task | service | subflow | slot | applet
	Executor  string           `yaml:"executor,omitempty"`
	InputsDef []HandleManifest `yaml:"inputs_def,omitempty"`
	Outputs   []OutputDefManifest `yaml:"outputs_def,omitempty"`
}

type OutputDefManifest struct {
	Name         string                 `yaml:"name"`
	IsAdditional bool                   `yaml:"is_additional,omitempty"`
	Type         map[string]interface{} `yaml:"type,omitempty"`
}

// ReadFlow loads and decodes a flow manifest from disk.
func ReadFlow(path string) (*FlowManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading flow manifest %s: %w", path, err)
	}
	var m FlowManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding flow manifest %s: %w", path, err)
	}
	return &m, nil
}

// ReadBlock loads and decodes a block manifest from disk.
func ReadBlock(path string) (*BlockManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading block manifest %s: %w", path, err)
	}
	var m BlockManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding block manifest %s: %w", path, err)
	}
	return &m, nil
}

// ToInputHandle converts a decoded handle manifest into the domain's
// InputHandle, resolving the tri-state literal rule: a manifest entry
// without a `default` key yields Unset, never ExplicitNull.
func ToInputHandle(h HandleManifest) flow.InputHandle {
	lit := flow.Unset()
	if h.Default != nil {
		if *h.Default == nil {
			lit = flow.ExplicitNull()
		} else {
			lit = flow.Present(*h.Default)
		}
	}
	return flow.InputHandle{
		Name:     flow.HandleName(h.Name),
		Nullable: h.Nullable,
		Default:  lit,
		Schema:   encodeSchema(h.Type),
	}
}

// encodeSchema re-marshals a decoded `type:` block back to JSON, the
// form google/jsonschema-go's Schema unmarshals from; goccy/go-yaml
// already gave us native Go values (map[string]interface{}), not a
// YAML-specific representation, so this round-trip is lossless.
func encodeSchema(t map[string]interface{}) json.RawMessage {
	if t == nil {
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil
	}
	return data
}

// ToBlockKind maps a manifest's string block kind to the domain enum.
func ToBlockKind(s string) (flow.BlockKind, error) {
	switch s {
	case "task":
		return flow.TaskBlockKind, nil
	case "service":
		return flow.ServiceBlockKind, nil
	case "subflow":
		return flow.SubflowBlockKind, nil
	case "slot":
		return flow.SlotBlockKind, nil
	case "applet":
		return flow.AppletBlockKind, nil
	default:
		return 0, fmt.Errorf("unknown block kind %q", s)
	}
}
