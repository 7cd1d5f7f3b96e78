package services

import (
  _ "embed"
  "encoding/json"
  "fmt"
  "strings"

  "gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

type promptTemplate struct {
  System string `yaml:"system"`
  User   string `yaml:"user"`
}

type promptRegistry struct {
  templates map[string]promptTemplate
}

func loadPromptRegistry() (*promptRegistry, error) {
  templates := map[string]promptTemplate{}
  if err := yaml.Unmarshal(promptsYAML, &templates); err != nil {
    return nil, fmt.Errorf("parse prompts.yaml: %w", err)
  }
  for name, tpl := range templates {
    if strings.TrimSpace(tpl.System) == "" || strings.TrimSpace(tpl.User) == "" {
      return nil, fmt.Errorf("prompt %q missing system or user text", name)
    }
  }
  return &promptRegistry{templates: templates}, nil
}

// Render fills {{placeholder}} slots. Non-string values are inlined as JSON
// so whole documents can be dropped into a prompt.
func (r *promptRegistry) Render(name string, vars map[string]any) (system string, user string, err error) {
  tpl, ok := r.templates[name]
  if !ok {
    return "", "", fmt.Errorf("unknown prompt %q", name)
  }
  user = tpl.User
  for key, val := range vars {
    var rendered string
    switch v := val.(type) {
    case string:
      rendered = v
    default:
      raw, jErr := json.Marshal(v)
      if jErr != nil {
        return "", "", fmt.Errorf("render prompt %q var %q: %w", name, key, jErr)
      }
      rendered = string(raw)
    }
    user = strings.ReplaceAll(user, "{{"+key+"}}", rendered)
  }
  return tpl.System, user, nil
}
