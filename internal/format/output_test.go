package format

import (
	"bytes"
	"strings"
	"testing"
)

type row struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

func TestParse(t *testing.T) {
	cases := map[string]Format{"": JSON, "json": JSON, " TEXT ": Text}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil || got != want {
			t.Fatalf("Parse(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := Parse("edn"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, map[string]any{}, Format("edn"), false); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestWriteJSON_Envelope(t *testing.T) {
	var b bytes.Buffer
	if err := Write(&b, map[string]any{"data": row{Name: "abc", Size: 3}}, JSON, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := b.String(); got != `{"data":{"name":"abc","size":3,"type":""}}`+"\n" {
		t.Fatalf("unexpected json %q", got)
	}
}

func TestWriteJSON_KeepsMarkupReadable(t *testing.T) {
	var b bytes.Buffer
	if err := Write(&b, map[string]any{"html": `<a href="/x?a&b">x</a>`}, JSON, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := b.String(); !strings.Contains(got, `<a href=\"/x?a&b\">`) {
		t.Fatalf("expected unescaped markup, got %q", got)
	}
}

func TestWriteJSON_Pretty(t *testing.T) {
	var b bytes.Buffer
	if err := Write(&b, map[string]any{"data": 1}, JSON, true); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := b.String(); got != "{\n  \"data\": 1\n}\n" {
		t.Fatalf("unexpected pretty json %q", got)
	}
}

func TestWriteText_Table(t *testing.T) {
	var b bytes.Buffer
	rows := []row{{Name: "abc", Size: 1536, Type: "text/plain"}, {Name: "defgh", Size: 2, Type: "image/png"}}
	if err := Write(&b, map[string]any{"data": rows}, Text, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %q", b.String())
	}
	if !strings.HasPrefix(lines[0], "NAME") || !strings.Contains(lines[0], "SIZE") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "abc ") || !strings.Contains(lines[1], "1536") {
		t.Fatalf("unexpected row %q", lines[1])
	}
	// tabwriter aligns the second column.
	if strings.Index(lines[1], "1536") != strings.Index(lines[2], "2") {
		t.Fatalf("expected aligned columns:\n%s", b.String())
	}
}

func TestWriteText_Fields(t *testing.T) {
	var b bytes.Buffer
	if err := Write(&b, map[string]any{"data": map[string]any{"name": "x", "locked": true, "note": "a\tb", "gone": nil}}, Text, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := b.String()
	if !strings.HasPrefix(out, "name") {
		t.Fatalf("expected name first, got %q", out)
	}
	for _, want := range []string{"locked  true", "note    a b", "gone    -"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}
