package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed launcher.embedded.schema.json
var embeddedSchemaData []byte

const resourceName = "launcher.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// Violation is a single schema failure at a JSON pointer inside the document.
type Violation struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

func (v Violation) String() string {
	loc := v.Location
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("%s: %s", loc, v.Message)
}

// ValidationError carries every leaf violation reported for a document.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	lines := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		lines = append(lines, "- "+v.String())
	}
	return "schema validation failed:\n" + strings.Join(lines, "\n")
}

// Validator checks decoded configuration documents against the embedded schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator returns a validator backed by the embedded schema. The schema
// is compiled once per process.
func NewValidator() (*Validator, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(resourceName, bytes.NewReader(embeddedSchemaData)); err != nil {
			compileErr = fmt.Errorf("add embedded schema: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile(resourceName)
	})
	if compileErr != nil {
		return nil, compileErr
	}
	return &Validator{schema: compiled}, nil
}

// Validate checks doc, which may come from any decoder. The document is
// normalized through JSON first so YAML and TOML integer and map types
// validate alike. Schema failures are returned as *ValidationError.
func (v *Validator) Validate(doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	var normalized interface{}
	if err := json.Unmarshal(data, &normalized); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}

	err = v.schema.Validate(normalized)
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}
	out := &ValidationError{}
	leaves(verr, &out.Violations)
	sort.SliceStable(out.Violations, func(i, j int) bool {
		return out.Violations[i].Location < out.Violations[j].Location
	})
	return out
}

// leaves collects the innermost causes; parent nodes only restate them.
func leaves(err *jsonschema.ValidationError, into *[]Violation) {
	if len(err.Causes) == 0 {
		*into = append(*into, Violation{Location: err.InstanceLocation, Message: err.Message})
		return
	}
	for _, cause := range err.Causes {
		leaves(cause, into)
	}
}
