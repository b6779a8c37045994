package parsing

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// Parse splits a free-text ledger description into ordered segments: the
// leading document token, a secondary reference, the counterparty name and
// whatever free text is left. Earlier segments carry more weight when the
// document id is resolved.
func Parse(description string) []string {
	var parts []string
	remaining := description

	if token, ok := matchFirst(LeadingTokenRules, description); ok {
		parts = append(parts, token)
		remaining = strings.TrimSpace(description[len(token):])
	} else if token, ok := DateTokenRule.Match(description); ok {
		parts = append(parts, token)
		remaining = strings.TrimSpace(description[len(token):])
	}

	if ref, ok := matchFirst(SecondaryReferenceRules, remaining); ok {
		parts = append(parts, ref)
		remaining = strings.Trim(strings.ReplaceAll(remaining, ref, ""), " -")
	}

	if name, ok := CounterpartyRule.Match(remaining); ok {
		parts = append(parts, name)
		remaining = strings.Trim(strings.ReplaceAll(remaining, name, ""), " -")
	}

	if utf8.RuneCountInString(remaining) > 3 && !slices.Contains(parts, remaining) {
		for _, piece := range strings.Split(remaining, " - ") {
			if piece = strings.TrimSpace(piece); piece != "" {
				parts = append(parts, piece)
			}
		}
	}

	return cleanSegments(parts)
}

func cleanSegments(parts []string) []string {
	seen := make(map[string]struct{}, len(parts))
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(part, " -")
		if utf8.RuneCountInString(part) <= 1 {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		cleaned = append(cleaned, part)
	}
	return cleaned
}
