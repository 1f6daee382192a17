package repair

import (
	"regexp"
	"strings"

	"github.com/nextlevelbuilder/promptsched/internal/store"
)

// Tool names the notes manager exposes through response sources.
const (
	toolListNotes   = "list_my_notes"
	toolSearchNotes = "search_notes"
	toolGetNote     = "get_note"
)

// uuidRe matches canonical UUID v4-shaped substrings (8-4-4-4-12 hex).
var uuidRe = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// sourceNameMatches reports whether a source name refers to target,
// accepting either the bare name or any "<prefix>/<target>" namespaced
// form, case-insensitive.
func sourceNameMatches(name, target string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	t := strings.ToLower(target)
	return n == t || strings.HasSuffix(n, "/"+t)
}

// hasNotesTool reports whether any configured tool ID is a notes manager.
func hasNotesTool(actionTools []string) bool {
	for _, t := range actionTools {
		lt := strings.ToLower(t)
		if strings.Contains(lt, "notes_manager") || strings.Contains(lt, "note_manager") {
			return true
		}
	}
	return false
}

// noteSourceState summarizes what the notes tools did in a response's
// sources: whether list/search and get_note ran, which note UUIDs the
// listings exposed, and whether any fetch missed.
type noteSourceState struct {
	hasList     bool
	hasGet      bool
	listIDs     []string // first-seen order, deduplicated
	usedGetIDs  []string
	hasNotFound bool
}

// usedExpected reports whether any fetched note ID came from the listing.
func (s *noteSourceState) usedExpected() bool {
	if len(s.listIDs) == 0 {
		return false
	}
	listed := make(map[string]bool, len(s.listIDs))
	for _, id := range s.listIDs {
		listed[strings.ToLower(id)] = true
	}
	for _, id := range s.usedGetIDs {
		if listed[strings.ToLower(id)] {
			return true
		}
	}
	return false
}

// needsFollowUp applies the notes follow-up trigger: a listing ran but
// note content was never successfully fetched with one of its IDs.
func (s *noteSourceState) needsFollowUp() bool {
	if !s.hasList || len(s.listIDs) == 0 {
		return false
	}
	return !s.hasGet || s.hasNotFound || !s.usedExpected()
}

// analyzeNoteSources inspects a response's sources for notes-tool activity.
func analyzeNoteSources(sources []store.Source) noteSourceState {
	var state noteSourceState
	seen := make(map[string]bool)

	for _, src := range sources {
		name := src.Source.Name
		switch {
		case sourceNameMatches(name, toolListNotes) || sourceNameMatches(name, toolSearchNotes):
			state.hasList = true
			for _, doc := range src.Document {
				for _, id := range uuidRe.FindAllString(doc, -1) {
					key := strings.ToLower(id)
					if !seen[key] {
						seen[key] = true
						state.listIDs = append(state.listIDs, id)
					}
				}
			}
		case sourceNameMatches(name, toolGetNote):
			state.hasGet = true
			for _, meta := range src.Metadata {
				if meta.Parameters != nil && meta.Parameters.NoteID != "" {
					state.usedGetIDs = append(state.usedGetIDs, meta.Parameters.NoteID)
				}
			}
			for _, doc := range src.Document {
				if strings.Contains(strings.ToLower(doc), "note not found") {
					state.hasNotFound = true
				}
			}
		}
	}
	return state
}

// ExtractNoteAttachments pairs every non-empty get_note document with the
// note_id from the metadata entry at the same index.
func ExtractNoteAttachments(sources []store.Source) []store.NoteAttachment {
	var attachments []store.NoteAttachment
	for _, src := range sources {
		if !sourceNameMatches(src.Source.Name, toolGetNote) {
			continue
		}
		for i, doc := range src.Document {
			content := strings.TrimSpace(doc)
			if content == "" {
				continue
			}
			var noteID string
			if i < len(src.Metadata) && src.Metadata[i].Parameters != nil {
				noteID = src.Metadata[i].Parameters.NoteID
			}
			attachments = append(attachments, store.NoteAttachment{
				NoteID:  noteID,
				Content: content,
			})
		}
	}
	return attachments
}
