package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/medtrack/internal/model"
)

// Scenario defines one contract test.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Start is the initial clock, RFC 3339.
	Start string `yaml:"start"`

	// Timezone is the document zone. Defaults to UTC so runs do not depend
	// on the host.
	Timezone string `yaml:"timezone,omitempty"`

	// Setup establishes the catalog before the flow. Setup actions must
	// succeed.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Flow is the sequence of actions under test.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the trace and the final views.
	Assertions []Assertion `yaml:"assertions"`

	// Golden is the date, YYYY-MM-DD, whose day view is snapshotted.
	// Defaults to the date of the clock when the flow ends.
	Golden string `yaml:"golden,omitempty"`
}

// ActionStep is a setup invocation.
type ActionStep struct {
	Action string         `yaml:"action"`
	Args   map[string]any `yaml:"args"`
}

// FlowStep invokes an action and optionally checks its completion.
type FlowStep struct {
	// At moves the clock before the action runs.
	At string `yaml:"at,omitempty"`

	Invoke string         `yaml:"invoke"`
	Args   map[string]any `yaml:"args"`

	// Expect is the expected completion. Nil means the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected completion of a step.
type ExpectClause struct {
	// Case is "ok" or an error case name.
	Case string `yaml:"case"`

	// Result is a subset match against the step's result.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates the trace or a final view.
type Assertion struct {
	Type string `yaml:"type"`

	// Action is used by trace_contains and trace_count.
	Action string `yaml:"action,omitempty"`

	// Args is a subset match for trace_contains.
	Args map[string]any `yaml:"args,omitempty"`

	// Count is used by trace_count.
	Count int `yaml:"count,omitempty"`

	// Actions is used by trace_order.
	Actions []string `yaml:"actions,omitempty"`

	// Table names the view for final_state: doses, inventory, alerts or events.
	Table string `yaml:"table,omitempty"`

	// Date selects the day for the doses view. Defaults to the clock's day.
	Date string `yaml:"date,omitempty"`

	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Views available to final_state.
const (
	TableDoses     = "doses"
	TableInventory = "inventory"
	TableAlerts    = "alerts"
	TableEvents    = "events"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, err := time.Parse(time.RFC3339, s.Start); err != nil {
		return fmt.Errorf("start must be RFC 3339: %w", err)
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	if s.Golden != "" {
		if _, err := model.ParseDate(s.Golden); err != nil {
			return fmt.Errorf("golden: %w", err)
		}
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if _, ok := actions[step.Action]; !ok {
			return fmt.Errorf("setup[%d]: unknown action %q", i, step.Action)
		}
	}
	for i, step := range s.Flow {
		if _, ok := actions[step.Invoke]; !ok {
			return fmt.Errorf("flow[%d]: unknown action %q", i, step.Invoke)
		}
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("flow[%d].expect: case is required", i)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		switch a.Table {
		case TableDoses, TableInventory, TableAlerts, TableEvents:
		case "":
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		default:
			return fmt.Errorf("assertions[%d]: unknown table %q", index, a.Table)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
		if a.Date != "" {
			if _, err := model.ParseDate(a.Date); err != nil {
				return fmt.Errorf("assertions[%d]: date: %w", index, err)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
