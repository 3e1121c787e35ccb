package spreadsheet

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Task fields a sheet column can map onto
const (
	FieldName             = "task_name"
	FieldStartTime        = "start_time"
	FieldExpectedDuration = "expected_duration"
	FieldPriority         = "priority"
	FieldMembers          = "members"
	FieldDescription      = "description"
	FieldEstimatedCost    = "estimated_cost"
	FieldDependencies     = "dependencies"
)

var knownFields = map[string]bool{
	FieldName:             true,
	FieldStartTime:        true,
	FieldExpectedDuration: true,
	FieldPriority:         true,
	FieldMembers:          true,
	FieldDescription:      true,
	FieldEstimatedCost:    true,
	FieldDependencies:     true,
}

// Mapping describes which sheet holds the tasks and which header names
// feed which task field. Header matching is case insensitive.
type Mapping struct {
	Version int                 `yaml:"version"`
	Sheet   string              `yaml:"sheet"`
	Aliases map[string][]string `yaml:"aliases"`
	// ListSeparator splits members and dependencies cells
	ListSeparator string `yaml:"list_separator"`
}

// DefaultMapping accepts the column names used by the task export
func DefaultMapping() *Mapping {
	return &Mapping{
		Version: 1,
		Sheet:   "Tasks",
		Aliases: map[string][]string{
			FieldName:             {"Task", "Task Name", "Name"},
			FieldStartTime:        {"Start", "Start Time"},
			FieldExpectedDuration: {"Expected Duration", "Duration", "Planned Duration"},
			FieldPriority:         {"Priority"},
			FieldMembers:          {"Members", "Assignees"},
			FieldDescription:      {"Description", "Notes"},
			FieldEstimatedCost:    {"Estimated Cost", "Cost"},
			FieldDependencies:     {"Dependencies", "Depends On"},
		},
		ListSeparator: ",",
	}
}

// LoadMapping reads a YAML mapping file; an empty path yields the default
func LoadMapping(path string) (*Mapping, error) {
	if path == "" {
		return DefaultMapping(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	return ParseMapping(data)
}

func ParseMapping(data []byte) (*Mapping, error) {
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	if len(m.Aliases) == 0 {
		return nil, fmt.Errorf("mapping has no aliases")
	}
	for field := range m.Aliases {
		if !knownFields[field] {
			return nil, fmt.Errorf("mapping names unknown field %q", field)
		}
	}
	if _, ok := m.Aliases[FieldName]; !ok {
		return nil, fmt.Errorf("mapping must map %s", FieldName)
	}
	if m.ListSeparator == "" {
		m.ListSeparator = ","
	}
	return &m, nil
}

// fieldFor resolves a header to its task field
func (m *Mapping) fieldFor(header string) (string, bool) {
	h := strings.TrimSpace(header)
	for field, aliases := range m.Aliases {
		if strings.EqualFold(field, h) {
			return field, true
		}
		for _, alias := range aliases {
			if strings.EqualFold(alias, h) {
				return field, true
			}
		}
	}
	return "", false
}

func (m *Mapping) splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, m.ListSeparator) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
