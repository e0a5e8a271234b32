package service

import (
	"sort"
	"strings"

	"github.com/aithernet/airelay/internal/domain"
)

// SelectAssistant deterministically picks which assistant answers a message.
// An explicit @name mention wins; a single bound assistant always answers;
// otherwise assistants rotate round-robin keyed by how many AI replies the
// room has produced so far. Pure function, recomputed every turn.
func SelectAssistant(assistants []domain.Assistant, aiReplyCount int64, content string) (domain.Assistant, error) {
	if len(assistants) == 0 {
		return domain.Assistant{}, domain.ErrAssistantNotBound
	}

	if a, ok := findMention(assistants, content); ok {
		return a, nil
	}

	if len(assistants) == 1 {
		return assistants[0], nil
	}

	return assistants[aiReplyCount%int64(len(assistants))], nil
}

// findMention matches @name case-insensitively against the room's actual
// bound-assistant names. Longest names are checked first so a mention of
// @DevGPT2 never resolves to DevGPT.
func findMention(assistants []domain.Assistant, content string) (domain.Assistant, bool) {
	lower := strings.ToLower(content)

	candidates := make([]domain.Assistant, len(assistants))
	copy(candidates, assistants)
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].Name) > len(candidates[j].Name)
	})

	for _, a := range candidates {
		if a.Name == "" {
			continue
		}
		if strings.Contains(lower, "@"+strings.ToLower(a.Name)) {
			return a, true
		}
	}
	return domain.Assistant{}, false
}
