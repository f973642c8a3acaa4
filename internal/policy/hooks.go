package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/a3tai/reportshield/internal/audit"
)

// stateHooksSchema describes the state hooks document: a map from USPS state
// code to the disclosures that state requires.
const stateHooksSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "propertyNames": {"pattern": "^[A-Z]{2}$"},
  "additionalProperties": {
    "type": "array",
    "items": {
      "type": "object",
      "required": ["pattern"],
      "properties": {
        "id": {"type": "string"},
        "issue": {"type": "string"},
        "severity": {"type": "string", "enum": ["CRITICAL", "MODERATE", "MINOR", "critical", "moderate", "minor"]},
        "pattern": {"type": "string", "minLength": 1}
      },
      "additionalProperties": false
    }
  }
}`

type hookDoc struct {
	ID       string `json:"id"`
	Issue    string `json:"issue"`
	Severity string `json:"severity"`
	Pattern  string `json:"pattern"`
}

var compiledSchema = compileSchema()

func compileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("state_hooks.json", strings.NewReader(stateHooksSchema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("state_hooks.json")
}

// ParseStateHooks reads a YAML or JSON state hooks document, validates it and
// compiles every pattern. Patterns match case-insensitively.
func ParseStateHooks(data []byte) (map[string][]audit.StateHook, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	js, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, eris.Wrap(err, "parse state hooks")
	}

	var raw any
	if err := json.Unmarshal(js, &raw); err != nil {
		return nil, eris.Wrap(err, "decode state hooks")
	}
	if err := compiledSchema.Validate(raw); err != nil {
		return nil, eris.Wrap(err, "state hooks do not match schema")
	}

	var docs map[string][]hookDoc
	if err := json.Unmarshal(js, &docs); err != nil {
		return nil, eris.Wrap(err, "decode state hooks")
	}

	states := make([]string, 0, len(docs))
	for st := range docs {
		states = append(states, st)
	}
	sort.Strings(states)

	out := make(map[string][]audit.StateHook, len(docs))
	for _, st := range states {
		for i, d := range docs[st] {
			hook, err := compileHook(st, i, d)
			if err != nil {
				return nil, err
			}
			out[st] = append(out[st], hook)
		}
	}
	return out, nil
}

func compileHook(state string, i int, d hookDoc) (audit.StateHook, error) {
	re, err := regexp.Compile("(?i)" + d.Pattern)
	if err != nil {
		return audit.StateHook{}, eris.Wrapf(err, "state hook %s[%d]: pattern", state, i)
	}
	sev, err := audit.ParseSeverity(d.Severity)
	if err != nil {
		return audit.StateHook{}, eris.Wrapf(err, "state hook %s[%d]", state, i)
	}
	id := d.ID
	if id == "" {
		id = fmt.Sprintf("STATE-%s-%02d", state, i+1)
	}
	return audit.StateHook{ID: id, Issue: d.Issue, Severity: sev, Pattern: re}, nil
}
