// Package enforcer validates model output against the required extraction
// format and falls back to a deterministic answer built from the retrieved
// chunks when the output is unusable. Enforce is total: it always returns an
// answer, never an error.
package enforcer

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/medrag/consulta/internal/models"
)

// NoAnswer is returned when there are no chunks to answer from.
const NoAnswer = "No está en el informe."

// Result is the final, always well-formed answer.
type Result struct {
	Answer   string
	Sources  []*models.Chunk
	Fallback bool
}

var (
	numericRuns  = regexp.MustCompile(`\b\d{3,}(?:-\d{1,4}){4,}\b`)
	fuenteAny    = regexp.MustCompile(`(?i)\bFuente\s*:`)
	fuenteLine   = regexp.MustCompile(`(?i)^Fuente\s*:`)
	textoSection = regexp.MustCompile(`(?is)\[TEXTO\]\s*\n(.*)`)
	lineBreak    = regexp.MustCompile(`\r?\n`)
	blankRuns    = regexp.MustCompile(`\n+`)
)

// Enforce checks raw model output for the required shape: at least four
// bullet lines and a Fuente line, with no garbage patterns. Valid output is
// normalized to exactly four bullets plus the first Fuente line; anything
// else is replaced by a deterministic extraction from the top chunk.
func Enforce(raw string, chunks []*models.Chunk) Result {
	out := strings.TrimSpace(raw)

	var bullets []string
	for _, l := range lineBreak.Split(out, -1) {
		l = strings.TrimSpace(l)
		if strings.HasPrefix(l, "- ") {
			bullets = append(bullets, l)
		}
	}

	if looksLikeGarbage(out) || len(bullets) < 4 || !fuenteAny.MatchString(out) {
		return deterministicExtraction(chunks)
	}

	var fuente string
	for _, l := range lineBreak.Split(out, -1) {
		l = strings.TrimSpace(l)
		if fuenteLine.MatchString(l) {
			fuente = l
			break
		}
	}
	if fuente == "" {
		hint := ""
		if len(chunks) > 0 {
			hint = chunks[0].SourceHint
		}
		fuente = "Fuente: " + hint
	}

	return Result{
		Answer:  strings.Join(bullets[:4], "\n") + "\n" + fuente,
		Sources: chunks,
	}
}

// looksLikeGarbage detects degenerate sampler output: long hyphenated number
// runs and a single token repeated many times in a row.
func looksLikeGarbage(out string) bool {
	if out == "" {
		return true
	}
	if numericRuns.MatchString(out) {
		return true
	}
	return hasRepeatedToken(out, 10)
}

// hasRepeatedToken reports whether some word token is followed by at least
// minRepeats copies of itself separated only by whitespace. Comparison is
// case-insensitive.
func hasRepeatedToken(s string, minRepeats int) bool {
	var prev string
	run := 0
	gapOK := true

	flushToken := func(tok string) bool {
		if gapOK && tok == prev && prev != "" {
			run++
			if run >= minRepeats {
				return true
			}
		} else {
			prev = tok
			run = 0
		}
		return false
	}

	var tok []rune
	for _, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			tok = append(tok, r)
		default:
			if len(tok) > 0 {
				if flushToken(strings.ToLower(string(tok))) {
					return true
				}
				tok = tok[:0]
				gapOK = true
			}
			if !unicode.IsSpace(r) {
				gapOK = false
			}
		}
	}
	if len(tok) > 0 && flushToken(strings.ToLower(string(tok))) {
		return true
	}
	return false
}

// deterministicExtraction copies the first four sentences of the top chunk
// verbatim and cites it. With no chunks at all, the answer states that the
// report does not contain the information.
func deterministicExtraction(chunks []*models.Chunk) Result {
	if len(chunks) == 0 {
		return Result{Answer: NoAnswer, Fallback: true}
	}
	primary := chunks[0]

	bullets := extractFourSentences(primary.Text)
	for len(bullets) < 4 {
		if len(bullets) > 0 {
			bullets = append(bullets, bullets[len(bullets)-1])
		} else {
			bullets = append(bullets, truncateRunes(strings.TrimSpace(primary.Text), 200))
		}
	}

	var b strings.Builder
	for _, bullet := range bullets {
		b.WriteString("- ")
		b.WriteString(bullet)
		b.WriteString("\n")
	}
	b.WriteString("Fuente: ")
	b.WriteString(primary.SourceHint)

	return Result{
		Answer:   b.String(),
		Sources:  []*models.Chunk{primary},
		Fallback: true,
	}
}

// extractFourSentences pulls up to four verbatim lines from the chunk body,
// falling back to sentence splitting when the body has fewer than four lines.
func extractFourSentences(chunkText string) []string {
	body := chunkText
	if m := textoSection.FindStringSubmatch(chunkText); m != nil {
		body = m[1]
	}
	body = strings.TrimSpace(body)

	parts := nonEmptyTrimmed(blankRuns.Split(body, -1))
	if len(parts) < 4 {
		parts = nonEmptyTrimmed(splitSentences(body))
	}
	if len(parts) > 4 {
		parts = parts[:4]
	}
	return parts
}

// splitSentences splits after '.', '!' or '?' followed by whitespace, keeping
// the punctuation with the sentence.
func splitSentences(s string) []string {
	var parts []string
	runes := []rune(s)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			parts = append(parts, string(runes[start:i+1]))
			i++
			for i < len(runes) && unicode.IsSpace(runes[i]) {
				i++
			}
			start = i
			i--
		}
	}
	if start < len(runes) {
		parts = append(parts, string(runes[start:]))
	}
	return parts
}

func nonEmptyTrimmed(in []string) []string {
	var out []string
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
