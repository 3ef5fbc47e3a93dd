package routing

import (
	"context"
	"testing"
)

func TestParseDecision_ExtractsFromProse(t *testing.T) {
	raw := "Sure! Here is my decision:\n```json\n{\"action\": \"transfer\", \"ext\": \"101\", \"message\": \"Connecting you to Jane {in Billing}.\", \"reason\": \"asked for billing\"}\n```\nLet me know."
	d, ok := ParseDecision(raw)
	if !ok {
		t.Fatalf("expected successful parse, got fallback")
	}
	if d.Action != ActionTransfer || d.TargetExtension != "101" {
		t.Fatalf("unexpected decision %+v", d)
	}
	if d.SpokenMessage != "Connecting you to Jane {in Billing}." {
		t.Fatalf("braces inside strings must not end the object: %q", d.SpokenMessage)
	}
	if d.Rationale != "asked for billing" {
		t.Fatalf("unexpected rationale %q", d.Rationale)
	}
}

func TestParseDecision_NumericExtension(t *testing.T) {
	d, ok := ParseDecision(`{"action":"voicemail","extension":205}`)
	if !ok || d.TargetExtension != "205" {
		t.Fatalf("expected numeric extension to parse, got %+v ok=%v", d, ok)
	}
	if d.SpokenMessage == "" {
		t.Fatalf("expected default voicemail message")
	}
}

func TestParseDecision_FallbackCases(t *testing.T) {
	cases := map[string]string{
		"no json":             "I think you want billing.",
		"unbalanced":          `{"action":"transfer","ext":"101"`,
		"bad json":            `{action: transfer}`,
		"unknown action":      `{"action":"escalate","ext":"101"}`,
		"transfer no ext":     `{"action":"transfer","message":"ok"}`,
		"transfer bad ext":    `{"action":"transfer","ext":"billing"}`,
		"info without speech": `{"action":"info"}`,
		"empty":               "",
	}
	for name, raw := range cases {
		d, ok := ParseDecision(raw)
		if ok {
			t.Fatalf("%s: expected fallback, got %+v", name, d)
		}
		if d != SafeDefault() {
			t.Fatalf("%s: expected safe default, got %+v", name, d)
		}
	}
}

func TestParseDecision_GoodbyeDropsTarget(t *testing.T) {
	d, ok := ParseDecision(`{"action":"GOODBYE","ext":"101"}`)
	if !ok || d.Action != ActionGoodbye {
		t.Fatalf("unexpected decision %+v ok=%v", d, ok)
	}
	if d.TargetExtension != "" {
		t.Fatalf("goodbye must not carry a target, got %q", d.TargetExtension)
	}
}

func TestParse_AlwaysReturnsUsableDecision(t *testing.T) {
	d, ok := Parse(context.Background(), "garbage", ParseContext{TenantID: "t1", CallSid: "CA1"})
	if ok || d.Action != ActionInfo || d.SpokenMessage == "" {
		t.Fatalf("expected spoken fallback, got %+v", d)
	}
}
