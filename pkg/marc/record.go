// Package marc models MARC21 bibliographic records as exchanged with Alma
// (MARC21-slim XML) and with the repository (JSON metadata).
package marc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

const SlimNamespace = "http://www.loc.gov/MARC21/slim"

var ErrSubfieldNotFound = errors.New("subfield not found")

type Record struct {
	XMLName       xml.Name       `xml:"record"`
	Leader        string         `xml:"leader,omitempty"`
	ControlFields []ControlField `xml:"controlfield"`
	DataFields    []DataField    `xml:"datafield"`
}

type ControlField struct {
	Tag   string `xml:"tag,attr"`
	Value string `xml:",chardata"`
}

type DataField struct {
	Tag       string     `xml:"tag,attr"`
	Ind1      string     `xml:"ind1,attr"`
	Ind2      string     `xml:"ind2,attr"`
	Subfields []Subfield `xml:"subfield"`
}

type Subfield struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

// Parse decodes a single <record> element, with or without the slim
// namespace.
func Parse(r io.Reader) (*Record, error) {
	var rec Record
	if err := xml.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode marc record: %w", err)
	}
	return &rec, nil
}

// Marshal encodes the record without a namespace declaration, the form
// embedded in an Alma <bib> document.
func (r *Record) Marshal() ([]byte, error) {
	return xml.Marshal(r)
}

// MarshalSlim encodes the record in the MARC21-slim namespace.
func (r *Record) MarshalSlim() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	start := xml.StartElement{Name: xml.Name{Space: SlimNamespace, Local: "record"}}
	if err := enc.EncodeElement(r, start); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Record) ControlField(tag string) (string, bool) {
	for _, cf := range r.ControlFields {
		if cf.Tag == tag {
			return cf.Value, true
		}
	}
	return "", false
}

func (r *Record) SetControlField(tag, value string) {
	for i := range r.ControlFields {
		if r.ControlFields[i].Tag == tag {
			r.ControlFields[i].Value = value
			return
		}
	}
	r.ControlFields = append(r.ControlFields, ControlField{Tag: tag, Value: value})
}

// MMSID returns the Alma record id kept in control field 001.
func (r *Record) MMSID() string {
	id, _ := r.ControlField("001")
	return id
}

func (r *Record) AddDataField(field DataField) {
	r.DataFields = append(r.DataFields, field)
}

// Subfield returns the value of the first subfield addressed by path.
func (r *Record) Subfield(path FieldPath) (string, bool) {
	sf := r.lookup(path)
	if sf == nil {
		return "", false
	}
	return sf.Value, true
}

// SetSubfield replaces the value of the first subfield addressed by path.
// A record without that subfield is an error, the field is never created.
func (r *Record) SetSubfield(path FieldPath, value string) error {
	sf := r.lookup(path)
	if sf == nil {
		return fmt.Errorf("%w: %s", ErrSubfieldNotFound, path)
	}
	sf.Value = value
	return nil
}

func (r *Record) lookup(path FieldPath) *Subfield {
	for i := range r.DataFields {
		df := &r.DataFields[i]
		if !path.matches(df) {
			continue
		}
		for j := range df.Subfields {
			if df.Subfields[j].Code == path.Code {
				return &df.Subfields[j]
			}
		}
	}
	return nil
}
