package llm

import "strings"

// BuildPrompt flattens chat messages into the instruction-delimited
// format the blocking endpoint expects. A system message is folded into
// the first user turn rather than sent as its own turn.
func BuildPrompt(messages []Message) string {
	var system string
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			break
		}
	}

	var b strings.Builder
	systemPending := system != ""
	for _, m := range messages {
		switch m.Role {
		case "system":
			// folded into the first user turn
		case "user":
			b.WriteString("[INST] ")
			if systemPending {
				b.WriteString(system)
				b.WriteString("\n\n")
				systemPending = false
			}
			b.WriteString(m.Content)
			b.WriteString(" [/INST]")
		case "assistant":
			b.WriteString(" ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}

	// A system message with no user turn still needs an instruction
	// block to anchor it.
	if systemPending {
		b.WriteString("[INST] ")
		b.WriteString(system)
		b.WriteString(" [/INST]")
	}

	return b.String()
}
