package orchestrator

import "testing"

func TestExtractJSONDirect(t *testing.T) {
	v, ok := extractJSON(`  {"a": 1}  `)
	if !ok {
		t.Fatal("expected direct parse to succeed")
	}
	if string(v) != `{"a": 1}` {
		t.Errorf("got %s", v)
	}
}

func TestExtractJSONEmbedded(t *testing.T) {
	raw := "Sure! Here are the questions:\n```json\n[{\"question\": \"What is entropy?\"}]\n```\nLet me know if you need more."
	v, ok := extractJSON(raw)
	if !ok {
		t.Fatal("expected embedded array to be extracted")
	}
	if string(v) != `[{"question": "What is entropy?"}]` {
		t.Errorf("got %s", v)
	}
}

func TestExtractJSONCleansCommentsAndCommas(t *testing.T) {
	raw := `{
	"front": "term", // the concept
	"back": "definition",
}`
	v, ok := extractJSON(raw)
	if !ok {
		t.Fatalf("expected cleanup to recover JSON from %q", raw)
	}
	if len(v) == 0 {
		t.Error("empty extraction")
	}
}

func TestExtractJSONPrefersLargerSpan(t *testing.T) {
	raw := `Here you go: [{"a": 1}, {"b": 2}] done`
	v, ok := extractJSON(raw)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if v[0] != '[' {
		t.Errorf("expected the larger array span, got %s", v)
	}
}

func TestExtractJSONRejectsScalars(t *testing.T) {
	for _, raw := range []string{"42", `"just a string"`, "true", ""} {
		if _, ok := extractJSON(raw); ok {
			t.Errorf("expected scalar %q to be rejected", raw)
		}
	}
}

func TestExtractJSONNoDelimiters(t *testing.T) {
	if _, ok := extractJSON("no structured data here"); ok {
		t.Error("expected failure without brackets")
	}
}
