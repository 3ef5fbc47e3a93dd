package routing

import (
	"fmt"
	"strings"

	"switchboard/internal/llm"
	"switchboard/internal/tenant"
)

// TenantContext is the part of a tenant the receptionist may talk about.
type TenantContext struct {
	DisplayName    string
	CompanyName    string
	GreetingScript string
}

func ContextFor(t tenant.Tenant) TenantContext {
	return TenantContext{DisplayName: t.DisplayName, CompanyName: t.CompanyName, GreetingScript: t.GreetingScript}
}

// BuildRoutingPrompt is a pure function of its inputs so prompt changes can
// be tested without a model.
func BuildRoutingPrompt(tc TenantContext, directory []tenant.Extension, transcript string) []llm.ChatMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the phone receptionist for %s", tc.DisplayName)
	if tc.CompanyName != "" && tc.CompanyName != tc.DisplayName {
		fmt.Fprintf(&b, " (%s)", tc.CompanyName)
	}
	b.WriteString(". Decide how to route the caller based on what they said.\n\n")

	if tc.GreetingScript != "" {
		fmt.Fprintf(&b, "Business notes:\n%s\n\n", tc.GreetingScript)
	}

	b.WriteString("Directory:\n")
	if len(directory) == 0 {
		b.WriteString("(no extensions are currently available)\n")
	}
	for _, e := range directory {
		fmt.Fprintf(&b, "- %s: %s\n", e.Code, e.DisplayName())
	}

	b.WriteString(`
Reply with a single JSON object and nothing else:
{"action": "transfer" | "voicemail" | "info" | "goodbye", "ext": "<code, required for transfer and voicemail>", "message": "<what to say to the caller>", "reason": "<short rationale>"}

Rules:
- Only use extension codes from the directory.
- Use "info" to answer a question or ask the caller to clarify.
- Use "voicemail" when the caller wants to leave a message for someone.
- Use "goodbye" only when the caller is done.
- Keep "message" to one or two short spoken sentences.`)

	return []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: b.String()},
		{Role: llm.RoleUser, Content: transcript},
	}
}
