// Package chunker splits a clinical record into typed, embeddable text
// chunks. Chunking is deterministic: the same record always produces
// byte-identical chunks, and chunk keys are unique within one record.
package chunker

import (
	"fmt"
	"strings"

	"github.com/medrag/consulta/internal/models"
)

// Build extracts the four chunk families from a record: one resumen chunk,
// one evolucion_dia chunk per non-empty daily note, one laboratorios chunk,
// and one alta chunk. Sections whose composed text is empty after trimming
// are omitted entirely.
func Build(rec *models.ClinicalRecord) []*models.Chunk {
	docID := rec.DocID()
	var chunks []*models.Chunk

	var ingreso, altaFecha string
	if rec.Atencion != nil {
		if f := strings.TrimSpace(rec.Atencion.FechaIngreso); f != "" {
			ingreso = "[INGRESO] " + f + "\n"
		}
		if f := strings.TrimSpace(rec.Atencion.FechaAlta); f != "" {
			altaFecha = "[ALTA] " + f + "\n"
		}
	}

	if text := resumenText(rec, ingreso, altaFecha); text != "" {
		chunks = append(chunks, &models.Chunk{
			ChunkKey:   docID + "::resumen",
			Text:       text,
			SourceHint: fmt.Sprintf("[DOC %s | resumen]", docID),
			ChunkType:  models.ChunkResumen,
		})
	}

	for i, ev := range rec.EvolucionResumen {
		day, ok := ev.Dia.Int()
		if !ok {
			day = i + 1
		}
		body := strings.TrimSpace(ev.Texto)
		if body == "" {
			continue
		}
		d := day
		text := strings.TrimSpace(
			"[TIPO] Evolución diaria\n" +
				fmt.Sprintf("[DIA] %d\n", day) +
				ingreso + altaFecha +
				"\n[TEXTO]\n" + body + "\n")
		chunks = append(chunks, &models.Chunk{
			ChunkKey:   fmt.Sprintf("%s::evo:%d", docID, day),
			Text:       text,
			SourceHint: fmt.Sprintf("[DOC %s | evolucion_dia | dia=%d]", docID, day),
			ChunkType:  models.ChunkEvolucionDia,
			Day:        &d,
		})
	}

	if labs := labsLines(rec.LaboratoriosResumen); labs != "" {
		text := strings.TrimSpace("[TIPO] Laboratorios\n" + ingreso + altaFecha + "\n" + labs)
		chunks = append(chunks, &models.Chunk{
			ChunkKey:   docID + "::labs",
			Text:       text,
			SourceHint: fmt.Sprintf("[DOC %s | laboratorios]", docID),
			ChunkType:  models.ChunkLaboratorios,
		})
	}

	if alta := altaLines(rec.IndicacionesAlta); alta != "" {
		text := strings.TrimSpace("[TIPO] Indicaciones de alta\n" + altaFecha + "\n\n" + alta)
		chunks = append(chunks, &models.Chunk{
			ChunkKey:   docID + "::alta",
			Text:       text,
			SourceHint: fmt.Sprintf("[DOC %s | alta]", docID),
			ChunkType:  models.ChunkAlta,
		})
	}

	return chunks
}

func resumenText(rec *models.ClinicalRecord, ingreso, altaFecha string) string {
	var edad, sexo, motivo string
	if rec.Paciente != nil {
		if !rec.Paciente.Edad.Empty() {
			edad = "[EDAD] " + rec.Paciente.Edad.Text + "\n"
		}
		if s := strings.TrimSpace(rec.Paciente.Sexo); s != "" {
			sexo = "[SEXO] " + s + "\n"
		}
	}
	if m := strings.TrimSpace(rec.MotivoIngreso); m != "" {
		motivo = "[MOTIVO] " + m + "\n"
	}

	var ant string
	if a := rec.Antecedentes; a != nil {
		ant = listLines("Antecedentes médicos", a.Medicos) +
			listLines("Antecedentes quirúrgicos", a.Quirurgicos)
		if al := strings.TrimSpace(a.Alergias); al != "" {
			ant += "Alergias: " + al + "\n"
		}
	}

	return strings.TrimSpace(
		"[TIPO] Epicrisis\n" +
			ingreso + altaFecha + edad + sexo + motivo +
			"\n" + ant +
			"\n" + codeNameLines("Diagnóstico de ingreso", rec.DiagnosticoIngreso) +
			"\n" + codeNameLines("Diagnóstico de egreso", rec.DiagnosticoEgreso) +
			"\n" + codeNameLines("Procedimientos", rec.Procedimientos) +
			"\n" + tratamientosLines(rec.TratamientosIntrahosp))
}

// listLines renders a titled bullet list, skipping empty entries. Returns ""
// when nothing remains.
func listLines(title string, items []models.Scalar) string {
	var lines []string
	for _, it := range items {
		if s := strings.TrimSpace(it.Text); s != "" {
			lines = append(lines, s)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return title + ":\n- " + strings.Join(lines, "\n- ") + "\n"
}

func codeNameLines(title string, items []models.CodedConcept) string {
	var lines []string
	for _, it := range items {
		codigo := strings.TrimSpace(it.Codigo.Text)
		nombre := strings.TrimSpace(it.Nombre.Text)
		switch {
		case codigo != "" && nombre != "":
			lines = append(lines, "- "+codigo+": "+nombre)
		case codigo != "":
			lines = append(lines, "- "+codigo)
		case nombre != "":
			lines = append(lines, "- "+nombre)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return title + ":\n" + strings.Join(lines, "\n") + "\n"
}

func tratamientosLines(items []models.Tratamiento) string {
	var lines []string
	for _, t := range items {
		var parts []string
		if c := strings.TrimSpace(t.Codigo.Text); c != "" {
			parts = append(parts, "["+c+"]")
		}
		if n := strings.TrimSpace(t.Nombre.Text); n != "" {
			parts = append(parts, n)
		}
		if v := strings.TrimSpace(t.Via.Text); v != "" {
			parts = append(parts, "vía "+v)
		}
		if d := strings.TrimSpace(t.Dosis.Text); d != "" {
			parts = append(parts, "dosis "+d)
		}
		if f := strings.TrimSpace(t.Frecuencia.Text); f != "" {
			parts = append(parts, "freq "+f)
		}
		ini := strings.TrimSpace(t.Inicio.Text)
		fin := strings.TrimSpace(t.Fin.Text)
		if ini != "" || fin != "" {
			parts = append(parts, "("+orQuestion(ini)+" → "+orQuestion(fin)+")")
		}
		if len(parts) > 0 {
			lines = append(lines, "- "+strings.Join(parts, " "))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "Tratamientos intrahospitalarios:\n" + strings.Join(lines, "\n") + "\n"
}

func labsLines(items []models.LabResult) string {
	var lines []string
	for _, l := range items {
		var parts []string
		if p := strings.TrimSpace(l.Prueba.Text); p != "" {
			parts = append(parts, p)
		}
		if ing := l.Ingreso; ing != nil {
			if ing.Valor.Set {
				v := "ingreso=" + ing.Valor.Text
				if u := strings.TrimSpace(l.Unidad.Text); u != "" {
					v += " " + u
				}
				parts = append(parts, v)
			}
			if e := strings.TrimSpace(ing.Estado.Text); e != "" {
				parts = append(parts, "("+e+")")
			}
			if ing.RangoInferior.Set || ing.RangoSuperior.Set {
				parts = append(parts, "ref=["+scalarOrQuestion(ing.RangoInferior)+".."+scalarOrQuestion(ing.RangoSuperior)+"]")
			}
			if f := strings.TrimSpace(ing.Fecha.Text); f != "" {
				parts = append(parts, "fecha="+f)
			}
		}
		if per := l.Periodo; per != nil && (per.Min.Set || per.Max.Set) {
			parts = append(parts, "periodo[min="+scalarOrQuestion(per.Min)+", max="+scalarOrQuestion(per.Max)+"]")
		}
		if len(parts) > 0 {
			lines = append(lines, "- "+strings.Join(parts, " "))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "Laboratorios resumen:\n" + strings.Join(lines, "\n") + "\n"
}

func altaLines(alta *models.IndicacionesAlta) string {
	if alta == nil {
		return ""
	}
	var medLines []string
	for _, m := range alta.Medicamentos {
		var parts []string
		if c := strings.TrimSpace(m.Codigo.Text); c != "" {
			parts = append(parts, "["+c+"]")
		}
		if n := strings.TrimSpace(m.Nombre.Text); n != "" {
			parts = append(parts, n)
		}
		if d := strings.TrimSpace(m.Dosis.Text); d != "" {
			parts = append(parts, "dosis "+d)
		}
		if v := strings.TrimSpace(m.Via.Text); v != "" {
			parts = append(parts, "vía "+v)
		}
		if f := strings.TrimSpace(m.Frecuencia.Text); f != "" {
			parts = append(parts, "freq "+f)
		}
		if d := strings.TrimSpace(m.Duracion.Text); d != "" {
			parts = append(parts, "duración "+d)
		}
		if len(parts) > 0 {
			medLines = append(medLines, "- "+strings.Join(parts, " "))
		}
	}
	var out string
	if len(medLines) > 0 {
		out += "Medicamentos:\n" + strings.Join(medLines, "\n") + "\n\n"
	}
	out += listLines("Controles", alta.Controles)
	out += listLines("Cuidados", alta.Cuidados)
	out += listLines("Signos de alarma", alta.SignosAlarma)
	return strings.TrimSpace(out)
}

func orQuestion(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

func scalarOrQuestion(s models.Scalar) string {
	if !s.Set {
		return "?"
	}
	return strings.TrimSpace(s.Text)
}
