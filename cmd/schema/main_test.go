package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteSchemaProducesProtocolDocument(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "protocol.schema.json")
	if err := writeSchema(out, buildSchema()); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if doc["title"] != "Receiver Wire Protocol" {
		t.Fatalf("unexpected title %v", doc["title"])
	}
	for _, def := range []string{"ClientMessage", "SignalRequest", "Preset", "Tick"} {
		if !strings.Contains(string(data), `"`+def+`"`) {
			t.Fatalf("expected definition %s in schema", def)
		}
	}
	if _, err := os.Stat(out + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file renamed away")
	}
}
