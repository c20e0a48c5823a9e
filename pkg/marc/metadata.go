package marc

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Metadata is the JSON shape the repository stores MARC21 records in:
//
//	{"leader": "...", "fields": {"001": "...", "245": [{"ind1": "1", "ind2": "0", "subfields": {"a": ["..."]}}]}}
type Metadata struct {
	Leader        string
	ControlFields map[string]string
	DataFields    map[string][]FieldValue
}

type FieldValue struct {
	Ind1      string              `json:"ind1"`
	Ind2      string              `json:"ind2"`
	Subfields map[string][]string `json:"subfields"`
}

type metadataJSON struct {
	Leader string                     `json:"leader,omitempty"`
	Fields map[string]json.RawMessage `json:"fields"`
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	out := metadataJSON{
		Leader: m.Leader,
		Fields: make(map[string]json.RawMessage, len(m.ControlFields)+len(m.DataFields)),
	}
	for tag, value := range m.ControlFields {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		out.Fields[tag] = raw
	}
	for tag, values := range m.DataFields {
		raw, err := json.Marshal(values)
		if err != nil {
			return nil, err
		}
		out.Fields[tag] = raw
	}
	return json.Marshal(out)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var in metadataJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	m.Leader = in.Leader
	m.ControlFields = make(map[string]string)
	m.DataFields = make(map[string][]FieldValue)

	for tag, raw := range in.Fields {
		var control string
		if err := json.Unmarshal(raw, &control); err == nil {
			m.ControlFields[tag] = control
			continue
		}
		var values []FieldValue
		if err := json.Unmarshal(raw, &values); err != nil {
			return fmt.Errorf("field %s: %w", tag, err)
		}
		m.DataFields[tag] = values
	}
	return nil
}

// Metadata converts the record to its repository JSON form.
func (r *Record) Metadata() Metadata {
	m := Metadata{
		Leader:        r.Leader,
		ControlFields: make(map[string]string, len(r.ControlFields)),
		DataFields:    make(map[string][]FieldValue),
	}
	for _, cf := range r.ControlFields {
		m.ControlFields[cf.Tag] = cf.Value
	}
	for _, df := range r.DataFields {
		fv := FieldValue{
			Ind1:      normalizeIndicator(df.Ind1),
			Ind2:      normalizeIndicator(df.Ind2),
			Subfields: make(map[string][]string),
		}
		for _, sf := range df.Subfields {
			fv.Subfields[sf.Code] = append(fv.Subfields[sf.Code], sf.Value)
		}
		m.DataFields[df.Tag] = append(m.DataFields[df.Tag], fv)
	}
	return m
}

// FromMetadata builds a record from repository JSON. Tags and subfield
// codes come out sorted since the JSON form does not keep their order.
func FromMetadata(m Metadata) *Record {
	rec := &Record{Leader: m.Leader}

	for _, tag := range sortedKeys(m.ControlFields) {
		rec.ControlFields = append(rec.ControlFields, ControlField{Tag: tag, Value: m.ControlFields[tag]})
	}

	for _, tag := range sortedKeys(m.DataFields) {
		for _, fv := range m.DataFields[tag] {
			df := DataField{Tag: tag, Ind1: xmlIndicator(fv.Ind1), Ind2: xmlIndicator(fv.Ind2)}
			for _, code := range sortedKeys(fv.Subfields) {
				for _, value := range fv.Subfields[code] {
					df.Subfields = append(df.Subfields, Subfield{Code: code, Value: value})
				}
			}
			rec.DataFields = append(rec.DataFields, df)
		}
	}
	return rec
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
