// Package models defines core data structures for clinical records, chunks,
// queries, and answers.
package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ClinicalRecord is the structured discharge record (epicrisis) accepted for
// ingestion. Every field is optional; exported records vary widely in shape,
// so list fields tolerate non-array values and scalar fields tolerate numbers
// where strings are expected.
type ClinicalRecord struct {
	IDAtencion            Scalar               `json:"id_atencion"`
	Atencion              *Atencion            `json:"atencion"`
	Paciente              *Paciente            `json:"paciente"`
	MotivoIngreso         string               `json:"motivo_ingreso"`
	Antecedentes          *Antecedentes        `json:"antecedentes"`
	DiagnosticoIngreso    List[CodedConcept]   `json:"diagnostico_ingreso"`
	DiagnosticoEgreso     List[CodedConcept]   `json:"diagnostico_egreso"`
	Procedimientos        List[CodedConcept]   `json:"procedimientos"`
	TratamientosIntrahosp List[Tratamiento]    `json:"tratamientos_intrahosp"`
	EvolucionResumen      List[EvolucionEntry] `json:"evolucion_resumen"`
	LaboratoriosResumen   List[LabResult]      `json:"laboratorios_resumen"`
	IndicacionesAlta      *IndicacionesAlta    `json:"indicaciones_alta"`
}

// DocID returns the record identifier: id_atencion, then atencion.id,
// then "unknown".
func (r *ClinicalRecord) DocID() string {
	if id := strings.TrimSpace(r.IDAtencion.Text); id != "" {
		return id
	}
	if r.Atencion != nil {
		if id := strings.TrimSpace(r.Atencion.ID.Text); id != "" {
			return id
		}
	}
	return "unknown"
}

// Atencion holds admission-level fields.
type Atencion struct {
	ID           Scalar `json:"id"`
	FechaIngreso string `json:"fecha_ingreso"`
	FechaAlta    string `json:"fecha_alta"`
}

// Paciente holds patient demographics.
type Paciente struct {
	Edad Scalar `json:"edad"`
	Sexo string `json:"sexo"`
}

// Antecedentes holds medical and surgical history.
type Antecedentes struct {
	Medicos     List[Scalar] `json:"medicos"`
	Quirurgicos List[Scalar] `json:"quirurgicos"`
	Alergias    string       `json:"alergias"`
}

// CodedConcept is a coded diagnosis or procedure (e.g. ICD or local codes).
type CodedConcept struct {
	Codigo Scalar `json:"codigo"`
	Nombre Scalar `json:"nombre"`
}

// Tratamiento is an in-hospital treatment entry (ATC code, route, dose).
type Tratamiento struct {
	Codigo     Scalar `json:"codigo"`
	Nombre     Scalar `json:"nombre"`
	Via        Scalar `json:"via"`
	Dosis      Scalar `json:"dosis"`
	Frecuencia Scalar `json:"frecuencia"`
	Inicio     Scalar `json:"inicio"`
	Fin        Scalar `json:"fin"`
}

// EvolucionEntry is one daily-progress note. Dia is optional and may be
// non-numeric in the wild; chunking falls back to the positional index.
type EvolucionEntry struct {
	Dia   Scalar `json:"dia"`
	Texto string `json:"texto"`
}

// LabResult is one aggregated lab test with its admission value and the
// min/max observed over the stay.
type LabResult struct {
	Prueba  Scalar      `json:"prueba"`
	Unidad  Scalar      `json:"unidad"`
	Ingreso *LabIngreso `json:"ingreso"`
	Periodo *LabPeriodo `json:"periodo"`
}

// LabIngreso is the lab value at admission with its reference range.
type LabIngreso struct {
	Valor         Scalar `json:"valor"`
	Fecha         Scalar `json:"fecha"`
	Estado        Scalar `json:"estado"`
	RangoInferior Scalar `json:"rango_inferior"`
	RangoSuperior Scalar `json:"rango_superior"`
}

// LabPeriodo is the min/max of a lab value over the whole stay.
type LabPeriodo struct {
	Min Scalar `json:"min"`
	Max Scalar `json:"max"`
}

// IndicacionesAlta holds discharge instructions: medications plus free-text
// follow-up, care, and warning-sign lists.
type IndicacionesAlta struct {
	Medicamentos List[MedicamentoAlta] `json:"medicamentos"`
	Controles    List[Scalar]          `json:"controles"`
	Cuidados     List[Scalar]          `json:"cuidados"`
	SignosAlarma List[Scalar]          `json:"signos_alarma"`
}

// MedicamentoAlta is one discharge medication.
type MedicamentoAlta struct {
	Codigo     Scalar `json:"codigo"`
	Nombre     Scalar `json:"nombre"`
	Dosis      Scalar `json:"dosis"`
	Via        Scalar `json:"via"`
	Frecuencia Scalar `json:"frecuencia"`
	Duracion   Scalar `json:"duracion"`
}

// List decodes a JSON array of T. Any non-array value (null, string, object)
// decodes as an empty list instead of failing, so malformed list fields never
// abort record parsing.
type List[T any] []T

// UnmarshalJSON implements lenient array decoding.
func (l *List[T]) UnmarshalJSON(data []byte) error {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		*l = nil
		return nil
	}
	*l = items
	return nil
}

// Scalar holds a JSON string, number, or bool rendered as trimmed text.
// Null, objects, and arrays leave it unset.
type Scalar struct {
	Text string
	Set  bool
}

// UnmarshalJSON accepts strings, numbers, and bools.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	switch x := v.(type) {
	case string:
		s.Text = strings.TrimSpace(x)
		s.Set = true
	case float64:
		s.Text = strconv.FormatFloat(x, 'f', -1, 64)
		s.Set = true
	case bool:
		s.Text = strconv.FormatBool(x)
		s.Set = true
	}
	return nil
}

// MarshalJSON renders the scalar back as a JSON string, or null when unset.
func (s Scalar) MarshalJSON() ([]byte, error) {
	if !s.Set {
		return []byte("null"), nil
	}
	return json.Marshal(s.Text)
}

// Int parses the scalar as a base-10 integer. Returns false for unset or
// non-numeric values.
func (s Scalar) Int() (int, bool) {
	if !s.Set {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s.Text))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Empty reports whether the scalar is unset or trims to the empty string.
func (s Scalar) Empty() bool {
	return !s.Set || strings.TrimSpace(s.Text) == ""
}
