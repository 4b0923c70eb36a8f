package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// StripFences removes ```json and ``` markers and surrounding whitespace.
func StripFences(reply string) string {
	s := strings.ReplaceAll(reply, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// ExtractJSON returns the first balanced JSON object or array in s.
// Braces inside string literals are ignored.
func ExtractJSON(s string) ([]byte, bool) {
	b := []byte(s)
	if json.Valid(b) {
		return b, true
	}

	start := bytes.IndexAny(b, "{[")
	for start >= 0 {
		if end := matchClose(b, start); end > 0 {
			candidate := b[start : end+1]
			if json.Valid(candidate) {
				return candidate, true
			}
		}
		next := bytes.IndexAny(b[start+1:], "{[")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}

// matchClose returns the index of the bracket closing b[start], or -1.
func matchClose(b []byte, start int) int {
	var stack []byte
	inString := false
	escaped := false
	for i := start; i < len(b); i++ {
		c := b[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

// Schema is a compiled JSON Schema used to check reply shape.
type Schema = jsonschema.Schema

// CompileSchema compiles a JSON Schema document.
func CompileSchema(name, src string) (*Schema, error) {
	c := jsonschema.NewCompiler()
	url := "mem://" + name + ".json"
	if err := c.AddResource(url, strings.NewReader(src)); err != nil {
		return nil, fmt.Errorf("adding schema %s: %w", name, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", name, err)
	}
	return s, nil
}

// MustCompileSchema is CompileSchema for package-level schemas.
func MustCompileSchema(name, src string) *Schema {
	s, err := CompileSchema(name, src)
	if err != nil {
		panic(err)
	}
	return s
}

// Decode sanitizes reply, checks it against schema (when non-nil), and
// unmarshals it into v. Every failure wraps ErrContractViolation.
func Decode(reply string, schema *Schema, v any) error {
	cleaned := StripFences(reply)
	if cleaned == "" {
		return fmt.Errorf("%w: empty reply", ErrContractViolation)
	}

	raw, ok := ExtractJSON(cleaned)
	if !ok {
		return fmt.Errorf("%w: no JSON found in reply", ErrContractViolation)
	}

	if schema != nil {
		var doc any
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return fmt.Errorf("%w: %w", ErrContractViolation, err)
		}
		if err := schema.Validate(doc); err != nil {
			return fmt.Errorf("%w: %s", ErrContractViolation, schemaMessage(err))
		}
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrContractViolation, err)
	}
	return nil
}

// schemaMessage returns the deepest cause of a validation error.
func schemaMessage(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("%s: %s", loc, ve.Message)
}
