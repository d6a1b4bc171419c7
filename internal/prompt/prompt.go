// Package prompt builds the extraction prompt sent to the language model.
// The template is Spanish and instructs the model to copy exact sentences
// from the context rather than generate prose.
package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/medrag/consulta/internal/models"
)

// MaxChunkChars is the default per-chunk budget when compacting context.
const MaxChunkChars = 1200

var (
	textoSection = regexp.MustCompile(`(?is)\[TEXTO\]\s*\n(.*)`)
	headerLine   = regexp.MustCompile(`(?i)^\[(TIPO|DIA|INGRESO|ALTA|EDAD|SEXO|MOTIVO)\]`)
	lineBreak    = regexp.MustCompile(`\r?\n`)
)

// Compact shrinks a chunk for prompt inclusion. The [TEXTO] body is preferred
// over the full text, up to ten header lines are kept above it, and anything
// past maxChars is cut with a visible truncation marker.
func Compact(chunk *models.Chunk, maxChars int) string {
	if chunk == nil || chunk.Text == "" {
		return ""
	}
	txt := chunk.Text

	body := txt
	if m := textoSection.FindStringSubmatch(txt); m != nil {
		body = m[1]
	}
	body = strings.TrimSpace(body)

	var headers []string
	for _, l := range lineBreak.Split(txt, -1) {
		if headerLine.MatchString(l) {
			headers = append(headers, l)
			if len(headers) == 10 {
				break
			}
		}
	}

	combined := body
	if len(headers) > 0 {
		combined = strings.Join(headers, "\n") + "\n\n" + body
	}
	runes := []rune(combined)
	if len(runes) <= maxChars {
		return combined
	}
	return string(runes[:maxChars]) + "\n[...TRUNCADO...]"
}

// Assemble builds the full prompt from the selected chunks and the question.
// Chunks appear numbered, best first; the trailing "- " primes the model to
// start the first bullet.
func Assemble(chunks []*models.Chunk, question string) string {
	var b strings.Builder
	b.WriteString("TAREA: extrae 4 frases EXACTAS del CONTEXTO.\n")
	b.WriteString("FORMATO: 4 líneas con '- ' y luego una sola línea: 'Fuente: <sourceHint>'.\n")
	b.WriteString("PROHIBIDO: inventar, resumir, interpretar.\n\n")

	b.WriteString("CONTEXTO:\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "%d. %s\n%s\n\n", i+1, chunk.SourceHint, Compact(chunk, MaxChunkChars))
	}

	fmt.Fprintf(&b, "Pregunta: %s\n", question)
	b.WriteString("Respuesta:\n- ")
	return b.String()
}
