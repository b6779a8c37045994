package parsing

import "strings"

// Reference is the structured result of parsing one description.
type Reference struct {
	Segments     []string
	DocumentID   string
	Counterparty string
}

func Resolve(description string) Reference {
	segments := Parse(description)
	ref := Reference{Segments: segments}
	ref.DocumentID, _ = ResolveDocumentID(segments)
	ref.Counterparty, _ = ResolveCounterparty(segments)
	return ref
}

// ResolveDocumentID looks for a bracketed reference anywhere in the joined
// segments first, then runs the document id cascade segment by segment.
func ResolveDocumentID(segments []string) (string, bool) {
	if len(segments) == 0 {
		return "", false
	}
	if id, ok := BracketReferenceRule.Match(strings.Join(segments, " ")); ok {
		return id, true
	}
	for _, segment := range segments {
		if id, ok := matchFirst(DocumentIDRules, segment); ok {
			return id, true
		}
	}
	return "", false
}

// ResolveCounterparty returns the right-most " - " separated piece of the
// first segment that mentions a legal-entity keyword.
func ResolveCounterparty(segments []string) (string, bool) {
	for _, segment := range segments {
		pieces := strings.Split(segment, " - ")
		for i := len(pieces) - 1; i >= 0; i-- {
			piece := strings.TrimSpace(pieces[i])
			if piece != "" && hasCounterpartyKeyword(piece) {
				return piece, true
			}
		}
	}
	return "", false
}

func hasCounterpartyKeyword(text string) bool {
	upper := strings.ToUpper(text)
	for _, kw := range CounterpartyKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}
