package ai

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

type sampleReply struct {
	Title string   `json:"title" validate:"required"`
	Score int      `json:"score" validate:"min=1,max=10"`
	Tags  []string `json:"tags,omitempty"`
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, false},
		{"fenced", "Here:\n```json\n{\"a\": [1, 2]}\n```\nthanks", `{"a": [1, 2]}`, false},
		{"prose", `Sure! {"a":"}"} done`, `{"a":"}"}`, false},
		{"trailing commas", `{"a":[1,2,],}`, `{"a":[1,2]}`, false},
		{"array", `[{"a":1}]`, `[{"a":1}]`, false},
		{"none", "no json here", "", true},
		{"unterminated", `{"a":1`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.content)
			if tt.wantErr {
				if !core.IsCategory(err, core.ErrCatParse) {
					t.Fatalf("expected parse error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractJSON() error = %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("ExtractJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecodeObject(t *testing.T) {
	got, err := DecodeObject[sampleReply]([]byte(`{"title":"x","score":3}`))
	if err != nil || got.Title != "x" || got.Score != 3 {
		t.Fatalf("DecodeObject() = %+v, %v", got, err)
	}

	_, err = DecodeObject[sampleReply]([]byte(`{"title":"","score":3}`))
	var de *core.DomainError
	if !asDomain(err, &de) || de.Code != core.CodeSchemaMismatch {
		t.Fatalf("expected schema mismatch, got %v", err)
	}

	_, err = DecodeObject[sampleReply]([]byte(`{"title":1}`))
	if !asDomain(err, &de) || de.Code != core.CodeInvalidJSON {
		t.Fatalf("expected invalid json, got %v", err)
	}
}

func TestSchemaFor(t *testing.T) {
	s := SchemaFor[sampleReply]()
	if s.Name != "sample_reply" {
		t.Fatalf("Name = %q", s.Name)
	}
	if SchemaFor[sampleReply]() != s {
		t.Fatalf("schema is not cached")
	}

	var doc map[string]any
	if err := json.Unmarshal(s.Document, &doc); err != nil {
		t.Fatalf("document is not JSON: %v", err)
	}
	if !strings.Contains(string(s.Document), `"title"`) {
		t.Fatalf("document misses properties: %s", s.Document)
	}
	if err := s.Validate([]byte(`{"title":"ok","score":11}`)); err == nil {
		t.Fatalf("expected validation failure for score 11")
	}
}

func asDomain(err error, target **core.DomainError) bool {
	return errors.As(err, target)
}
