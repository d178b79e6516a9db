package notifier

import (
	"fmt"

	"mcwatch/internal/transport"
)

// ParseTarget parses a recipient string "<chatID>" or "<chatID>:<threadID>".
func ParseTarget(raw string) (transport.ChatTarget, error) {
	return transport.ParseChatTarget(raw)
}

// ParseTargets parses every recipient and drops duplicates, keeping the
// first occurrence's position.
func ParseTargets(raw []string) ([]transport.ChatTarget, error) {
	out := make([]transport.ChatTarget, 0, len(raw))
	seen := make(map[transport.ChatTarget]struct{}, len(raw))
	for i, r := range raw {
		t, err := ParseTarget(r)
		if err != nil {
			return nil, fmt.Errorf("recipient #%d: %w", i+1, err)
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}
