package schedule

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/nerrad567/gray-logic-zwave/internal/device"
)

//go:embed module.schema.json
var moduleSchemaJSON []byte

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(moduleSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing module schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("module.schema.json", doc); err != nil {
		return nil, fmt.Errorf("adding module schema: %w", err)
	}
	return c.Compile("module.schema.json")
})

// Source supplies the raw bytes of a module configuration.
type Source interface {
	// Name identifies the source in errors and logs.
	Name() string
	Read() ([]byte, error)
}

// FileSource reads a configuration file on every Read, so a reload picks
// up edits made outside the process.
type FileSource struct {
	Path string
}

// Name returns the file path.
func (s FileSource) Name() string { return s.Path }

// Read returns the file contents.
func (s FileSource) Read() ([]byte, error) { return os.ReadFile(s.Path) }

// BytesSource serves a fixed document.
type BytesSource struct {
	Label string
	Data  []byte
}

// Name returns the label.
func (s BytesSource) Name() string { return s.Label }

// Read returns a copy of the document.
func (s BytesSource) Read() ([]byte, error) { return bytes.Clone(s.Data), nil }

// persisted is the on-disk layout of a module file.
type persisted struct {
	Name                string `json:"name"`
	Description         string `json:"description"`
	RegisteredActuators []struct {
		NodeID flexNodeID `json:"nodeId"`
	} `json:"registeredActuators"`
	Parameters []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"userAppConfigurationParameters"`
}

// flexNodeID accepts a node id written as a number or a numeric string.
type flexNodeID device.NodeID

func (f *flexNodeID) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexNodeID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("node id must be a number or numeric string: %s", b)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("node id %q is not numeric", s)
	}
	*f = flexNodeID(n)
	return nil
}

// Load reads and validates a module configuration.
//
// Validation runs in two passes: the document must satisfy the embedded
// JSON schema, then every rule kind must appear exactly once with a
// well-formed value and node ids must be unique. Parameters with
// unrecognised names are kept in Ignored.
//
// Returns:
//   - *ModuleConfiguration: The validated configuration
//   - error: ErrConfigInvalid wrapping every problem found
func Load(src Source) (*ModuleConfiguration, error) {
	data, err := src.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigInvalid, src.Name(), err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Name(), err)
	}
	return cfg, nil
}

// Parse validates a module configuration document.
func Parse(data []byte) (*ModuleConfiguration, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %w", ErrConfigInvalid, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	cfg, problems := build(p)
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrConfigInvalid, errors.Join(problems...))
	}
	return cfg, nil
}

func build(p persisted) (*ModuleConfiguration, []error) {
	var problems []error
	cfg := &ModuleConfiguration{
		Name:        p.Name,
		Description: p.Description,
		Actuators:   make([]ActuatorRef, 0, len(p.RegisteredActuators)),
	}

	seenNodes := make(map[device.NodeID]bool)
	for _, a := range p.RegisteredActuators {
		id := device.NodeID(a.NodeID)
		switch {
		case !id.Valid():
			problems = append(problems, fmt.Errorf("node id %d out of range", id))
		case seenNodes[id]:
			problems = append(problems, fmt.Errorf("node %d registered twice", id))
		default:
			seenNodes[id] = true
			cfg.Actuators = append(cfg.Actuators, ActuatorRef{NodeID: id})
		}
	}

	seenKinds := make(map[RuleKind]bool)
	for _, param := range p.Parameters {
		kind, ok := ParseRuleKind(param.Name)
		if !ok {
			cfg.Ignored = append(cfg.Ignored, param.Name)
			continue
		}
		if seenKinds[kind] {
			problems = append(problems, fmt.Errorf("%q defined more than once", param.Name))
			continue
		}
		seenKinds[kind] = true

		if kind == NormalState {
			state, err := device.ParseCommandState(param.Value)
			if err != nil || state == device.StateUnknown {
				problems = append(problems, fmt.Errorf("%q must be on or off, got %q", param.Name, param.Value))
				continue
			}
			cfg.NormalState = state
			cfg.Rules = append(cfg.Rules, Rule{Kind: kind, Value: string(state)})
			continue
		}

		if param.Value != UnsetTime && !ValidTime(param.Value) {
			problems = append(problems, fmt.Errorf("%q has malformed time %q (want H:MMam/pm or %s)", param.Name, param.Value, UnsetTime))
			continue
		}
		cfg.Rules = append(cfg.Rules, Rule{Kind: kind, Value: param.Value})
	}

	for _, kind := range RequiredKinds() {
		if !seenKinds[kind] {
			problems = append(problems, fmt.Errorf("missing required parameter %q", kind))
		}
	}

	return cfg, problems
}
