package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/domain"
)

// buildSynthesisPrompt constrains the completion model to answer only
// from the supplied chunks and to cite them with the explicit
// [cite:<chunk-id>] marker the parser understands.
func buildSynthesisPrompt(question string, assembled domain.AssembledContext) string {
	var contextBuilder strings.Builder
	for _, chunk := range assembled.Chunks {
		header := fmt.Sprintf("[chunk:%s]", chunk.ID)
		if chunk.Meta.Title != "" {
			header += " " + chunk.Meta.Title
		}
		if chunk.Meta.Year != 0 {
			header += fmt.Sprintf(" (%d)", chunk.Meta.Year)
		}
		if chunk.Meta.Section != "" {
			header += ", " + chunk.Meta.Section
		}
		contextBuilder.WriteString(header + "\n" + chunk.Text + "\n\n")
	}

	return fmt.Sprintf(`Answer the question using only the context below.
After every claim, cite the supporting chunk as [cite:<chunk-id>], using ids from the [chunk:...] headers.
If the context does not contain the answer, say so directly. Do not use outside knowledge.

Context:
%s
Question:
%s
`, contextBuilder.String(), question)
}

var citationMarkerRe = regexp.MustCompile(`\[cite:([A-Za-z0-9_.:-]+)\]`)

// parseCitations extracts cited chunk ids in order of first mention.
func parseCitations(answer string) []string {
	matches := citationMarkerRe.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		id := m[1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// validCitations drops ids that do not exist in the assembled context:
// a model citing an unknown chunk hallucinated the reference.
func validCitations(cited []string, assembled domain.AssembledContext) []string {
	out := make([]string, 0, len(cited))
	for _, id := range cited {
		if assembled.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// citationCoverage is the fraction of the answer's sentences backed by
// at least one valid citation marker. Sentences are the claim unit the
// gate works with; the split is deliberately crude but deterministic.
func citationCoverage(answer string, assembled domain.AssembledContext) float64 {
	sentences := splitSentences(answer)
	if len(sentences) == 0 {
		return 0
	}
	backed := 0
	for _, sentence := range sentences {
		for _, m := range citationMarkerRe.FindAllStringSubmatch(sentence, -1) {
			if assembled.Contains(m[1]) {
				backed++
				break
			}
		}
	}
	return float64(backed) / float64(len(sentences))
}

// stripCitationMarkers removes marker syntax from the user-facing text;
// the parsed citation list carries the grounding instead.
func stripCitationMarkers(answer string) string {
	cleaned := citationMarkerRe.ReplaceAllString(answer, "")
	cleaned = strings.ReplaceAll(cleaned, "  ", " ")
	return strings.TrimSpace(cleaned)
}

func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		s := strings.TrimSpace(b.String())
		if s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			flush()
		}
	}
	flush()
	return out
}
