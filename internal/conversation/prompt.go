package conversation

import (
	"fmt"
	"strings"

	"switchboard/internal/llm"
	"switchboard/internal/tenant"
)

// BuildSMSPrompt turns a thread into model input. It is pure so prompt
// changes can be tested without a model.
func BuildSMSPrompt(t tenant.Tenant, history []Message) []llm.ChatMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "You answer text messages on behalf of %s.", t.DisplayName)
	if t.CompanyName != "" && t.CompanyName != t.DisplayName {
		fmt.Fprintf(&b, " The legal business name is %s.", t.CompanyName)
	}
	if notes := strings.TrimSpace(t.GreetingScript); notes != "" {
		fmt.Fprintf(&b, "\n\nBusiness notes:\n%s", notes)
	}
	b.WriteString("\n\nKeep replies under 300 characters and plain text. If you cannot help, tell the customer they can reply AGENT to reach a person. Never invent prices, appointments or policies.")

	out := []llm.ChatMessage{{Role: llm.RoleSystem, Content: b.String()}}
	for _, m := range history {
		role := llm.RoleUser
		if m.Role != RoleCustomer {
			role = llm.RoleAssistant
		}
		out = append(out, llm.ChatMessage{Role: role, Content: m.Content})
	}
	return out
}
