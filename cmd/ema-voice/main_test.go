package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestStreamPrinterPrintsIncrementally(t *testing.T) {
	var out strings.Builder
	printer := &streamPrinter{out: &out}

	printer.UpdateMessage("a", "Hello")
	printer.UpdateMessage("a", "Hello world")
	printer.UpdateMessage("a", "Hello world.")
	printer.finish()

	if got := out.String(); got != "Hello world.\n" {
		t.Fatalf("expected incremental output, got %q", got)
	}
}

func TestStreamPrinterReprintsRewrittenText(t *testing.T) {
	var out strings.Builder
	printer := &streamPrinter{out: &out}

	printer.UpdateMessage("a", "> call `search`")
	printer.UpdateMessage("a", "> call `search` `{}`")
	printer.UpdateMessage("a", "Done")
	printer.finish()

	want := "> call `search` `{}`\nDone\n"
	if got := out.String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestWriteConfigSchema(t *testing.T) {
	var out strings.Builder
	if err := writeConfigSchema(&out); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var schema struct {
		Title      string                     `json:"title"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal([]byte(out.String()), &schema); err != nil {
		t.Fatalf("expected valid json, got %v", err)
	}
	for _, section := range []string{"chat", "speech", "audio", "display"} {
		if _, ok := schema.Properties[section]; !ok {
			t.Fatalf("expected %q section in schema, got %v", section, schema.Properties)
		}
	}
	if !strings.Contains(out.String(), "history_limit") || !strings.Contains(out.String(), "portaudio") {
		t.Fatalf("expected nested keys and enums in schema, got %s", out.String())
	}
}
