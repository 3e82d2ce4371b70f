package prompt

import (
	"errors"
	"fmt"
	"strings"
)

// Render produces the system and user messages for a prompt given its
// variables. Missing required variables are an error; the user template
// defaults to passing the input through.
func Render(def *Prompt, vars map[string]string) (string, string, error) {
	if def == nil {
		return "", "", errors.New("prompt is required")
	}

	for _, required := range def.Config.Input.RequiredVariables {
		if strings.TrimSpace(vars[required]) == "" {
			return "", "", fmt.Errorf("missing required variable %q for prompt %s", required, def.Config.Slug)
		}
	}

	system := applyVars(def.Config.SystemTemplate, vars)
	user := def.Config.UserTemplate
	if user == "" {
		user = "{{input}}"
	}
	user = applyVars(user, vars)

	if strings.TrimSpace(system) == "" {
		return "", "", errors.New("system prompt is required")
	}
	return system, user, nil
}

func applyVars(template string, vars map[string]string) string {
	result := template
	for key, value := range vars {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return result
}
