package repair

import (
	"regexp"
	"strings"
)

var (
	blankLineRe  = regexp.MustCompile(`\n[ \t]*\n`)
	spaceRunRe   = regexp.MustCompile(`[ \t]{2,}`)
	newlineRunRe = regexp.MustCompile(`\n{3,}`)
)

// SanitizeToolChatter strips leaked tool-routing syntax ("to=<tool> ..."
// runs) from assistant text. When the content splits into multiple
// blank-line blocks, the last block that does not itself look like
// chatter is returned; otherwise runs of two or more chatter tokens are
// collapsed and whitespace normalized. If cleaning would erase
// everything, the original content is returned. Idempotent.
func SanitizeToolChatter(content string, actionTools []string) string {
	if !strings.Contains(content, "to=") || !mentionsAnyTool(strings.ToLower(content), actionTools) {
		return content
	}

	blocks := blankLineRe.Split(content, -1)
	if len(blocks) > 1 {
		for i := len(blocks) - 1; i >= 0; i-- {
			block := strings.TrimSpace(blocks[i])
			if block == "" || looksLikeChatter(block, actionTools) {
				continue
			}
			return block
		}
	}

	cleaned := collapseChatterRuns(content, actionTools)
	cleaned = spaceRunRe.ReplaceAllString(cleaned, " ")
	cleaned = newlineRunRe.ReplaceAllString(cleaned, "\n\n")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return content
	}
	return cleaned
}

// looksLikeChatter reports whether a block is tool-routing chatter: a
// "to=" with a tool mention, or the telltale phrases models emit when
// narrating broken tool calls.
func looksLikeChatter(block string, actionTools []string) bool {
	l := strings.ToLower(block)
	if strings.Contains(l, "to=") && mentionsAnyTool(l, actionTools) {
		return true
	}
	return strings.Contains(l, "need proper json") || strings.Contains(l, "commentary")
}

// mentionsAnyTool reports whether the lowercased text names any
// configured tool.
func mentionsAnyTool(lower string, actionTools []string) bool {
	for _, t := range actionTools {
		if t == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// collapseChatterRuns removes sequences of two or more consecutive
// "to=<tool>[ commentary][ <short-token>]" tokens.
func collapseChatterRuns(content string, actionTools []string) string {
	if len(actionTools) == 0 {
		return content
	}
	alts := make([]string, 0, len(actionTools))
	for _, t := range actionTools {
		if t != "" {
			alts = append(alts, regexp.QuoteMeta(strings.ToLower(t)))
		}
	}
	if len(alts) == 0 {
		return content
	}
	unit := `to=(?:` + strings.Join(alts, "|") + `)(?:[ \t]+commentary)?(?:[ \t]+\w{1,12})?`
	runRe, err := regexp.Compile(`(?i)(?:` + unit + `(?:\s+|$)){2,}`)
	if err != nil {
		return content
	}
	return runRe.ReplaceAllString(content, " ")
}
