// Package queryfilter infers a coarse chunk-type and day restriction from a
// question before similarity scoring. The classification is keyword-based and
// intentionally approximate; the retriever falls back to the whole corpus
// when the restriction matches nothing.
package queryfilter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/medrag/consulta/internal/models"
)

// Parser derives a QueryFilter from a question. Implementations must be pure
// so they can be swapped (e.g. for a learned classifier) without touching the
// retriever.
type Parser interface {
	Parse(question string) *models.QueryFilter
}

// Heuristic is the regex/keyword Parser used by default.
type Heuristic struct{}

// NewHeuristic returns the default keyword-based parser.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

var (
	// "día 5", "dia 12" and the compact "d5" form. First match wins.
	daySpelled = regexp.MustCompile(`\b(d[ií]a)\s*(\d{1,2})\b`)
	dayCompact = regexp.MustCompile(`\bd(\d{1,2})\b`)

	wantsAlta = regexp.MustCompile(
		`\balta\b|\bindicaciones\b|\bmedicamentos\b|\bcontrol(es)?\b|\bcuidados\b|\bsignos de alarma\b`)
	wantsLabs = regexp.MustCompile(
		`\blab(oratorio(s)?)?\b|\bhemoglobina\b|\bhematocrito\b|\bleucocit(os)?\b|\bplaquet(as)?\b|\bcreatinina\b|\burea\b|\bsodio\b|\bpotasio\b|\bph\b`)
	wantsResumen = regexp.MustCompile(
		`\bmotivo\b|\bantecedentes\b|\bdiagn[oó]stic(o|os)\b|\bprocedimiento(s)?\b|\btratamiento(s)?\b|\bingreso\b|\begreso\b`)
	wantsEvolucion = regexp.MustCompile(
		`\bevoluci[oó]n\b|\bpost\s*op\b|\bpostoperatori(o|a)\b|\bd[ií]a\b|\bplan\b|\bse sugiere\b|\btorax\b|\bpleurostom[ií]a\b`)
)

// Parse classifies the question. A question may match zero, one, or several
// chunk types; all matches are kept. The presence of a day number alone
// implies evolucion_dia.
func (h *Heuristic) Parse(question string) *models.QueryFilter {
	q := strings.ToLower(question)
	filter := &models.QueryFilter{Types: make(map[models.ChunkType]bool)}

	if m := daySpelled.FindStringSubmatch(q); m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil {
			filter.Day = &n
		}
	} else if m := dayCompact.FindStringSubmatch(q); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			filter.Day = &n
		}
	}

	if wantsAlta.MatchString(q) {
		filter.Types[models.ChunkAlta] = true
	}
	if wantsLabs.MatchString(q) {
		filter.Types[models.ChunkLaboratorios] = true
	}
	if wantsResumen.MatchString(q) {
		filter.Types[models.ChunkResumen] = true
	}
	if wantsEvolucion.MatchString(q) || filter.Day != nil {
		filter.Types[models.ChunkEvolucionDia] = true
	}

	return filter
}
