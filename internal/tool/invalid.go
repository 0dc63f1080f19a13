package tool

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joss/navigator/internal/domain"
)

// InvalidCallMessage explains a rejected call and lists the parameters the
// tool expects, so the model can correct itself on the next step.
func InvalidCallMessage(info domain.Tool, err error) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tool '%s' was called incorrectly: %v.\n", info.Name, err)

	if props, ok := info.Parameters["properties"].(map[string]any); ok && len(props) > 0 {
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)

		sb.WriteString("Expected parameters:\n")
		for _, name := range names {
			schemaMap, _ := props[name].(map[string]any)
			typeStr, _ := schemaMap["type"].(string)
			desc, _ := schemaMap["description"].(string)
			fmt.Fprintf(&sb, "  - %s (%s): %s\n", name, typeStr, desc)
		}
	}
	if required := requiredFields(info.Parameters); len(required) > 0 {
		fmt.Fprintf(&sb, "Required: %s\n", strings.Join(required, ", "))
	}

	sb.WriteString("Please check the tool's parameters and try again.")
	return sb.String()
}

func (r *Registry) availableTools() string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return "Available tools: " + strings.Join(names, ", ")
}
