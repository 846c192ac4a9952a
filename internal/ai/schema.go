package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Schema is the structured-output contract for one Go type: a JSON schema
// document sent to the provider plus a validator run on the reply.
type Schema struct {
	Name     string
	Document json.RawMessage
	check    func(raw []byte) error
}

// Validate decodes raw into the schema's type and runs its struct rules.
func (s *Schema) Validate(raw []byte) error {
	if s == nil || s.check == nil {
		if !json.Valid(raw) {
			return core.ErrParse(core.CodeInvalidJSON, "response is not valid JSON")
		}
		return nil
	}
	return s.check(raw)
}

// ResponseFormat returns the provider-facing form of the schema.
func (s *Schema) ResponseFormat() *ResponseSchema {
	if s == nil {
		return nil
	}
	return &ResponseSchema{Name: s.Name, Schema: s.Document}
}

var schemaCache sync.Map // reflect.Type -> *Schema

// SchemaFor reflects the JSON schema of T once and caches it.
func SchemaFor[T any]() *Schema {
	var zero T
	typ := reflect.TypeOf(zero)
	if cached, ok := schemaCache.Load(typ); ok {
		return cached.(*Schema)
	}

	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	doc, err := json.Marshal(r.Reflect(&zero))
	if err != nil {
		// Reflection of plain structs cannot fail to marshal.
		panic(fmt.Sprintf("marshal schema for %s: %v", typ, err))
	}

	s := &Schema{
		Name:     schemaName(typ),
		Document: doc,
		check: func(raw []byte) error {
			_, err := DecodeObject[T](raw)
			return err
		},
	}
	actual, _ := schemaCache.LoadOrStore(typ, s)
	return actual.(*Schema)
}

func schemaName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" {
		return "response"
	}
	var b strings.Builder
	for i, r := range name {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// DecodeObject unmarshals model output into T and validates struct rules.
// Both failures are ParseErrors.
func DecodeObject[T any](raw []byte) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, core.ErrParse(core.CodeInvalidJSON, "response does not match the expected JSON shape").WithCause(err)
	}
	if reflect.Indirect(reflect.ValueOf(&out)).Kind() == reflect.Struct {
		if err := validate.Struct(&out); err != nil {
			return out, core.ErrParse(core.CodeSchemaMismatch, describeValidation(err)).WithCause(err)
		}
	}
	return out, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// ExtractJSON pulls the first JSON object or array out of model output,
// tolerating markdown fences, surrounding prose and trailing commas.
func ExtractJSON(content string) ([]byte, error) {
	text := strings.TrimSpace(content)
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			text = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return nil, core.ErrParse(core.CodeInvalidJSON, "no JSON found in response")
	}
	end, ok := matchBracket(text, start)
	if !ok {
		return nil, core.ErrParse(core.CodeInvalidJSON, "unterminated JSON in response")
	}

	raw := stripTrailingCommas(text[start : end+1])
	if !json.Valid(raw) {
		return nil, core.ErrParse(core.CodeInvalidJSON, "response is not valid JSON")
	}
	return raw, nil
}

// matchBracket returns the index of the bracket closing text[start].
func matchBracket(text string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func stripTrailingCommas(s string) []byte {
	var out bytes.Buffer
	out.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			out.WriteByte(c)
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
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		out.WriteByte(c)
	}
	return out.Bytes()
}
