package marc

import (
	"fmt"
	"strings"
)

const blankIndicator = "_"

// FieldPath addresses one subfield as "tag.ind1.ind2.code", for example
// "856.4._.u". A blank indicator is written as "_".
type FieldPath struct {
	Tag  string
	Ind1 string
	Ind2 string
	Code string
}

func ParseFieldPath(s string) (FieldPath, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return FieldPath{}, fmt.Errorf("field path %q: expected tag.ind1.ind2.code", s)
	}

	p := FieldPath{Tag: parts[0], Ind1: parts[1], Ind2: parts[2], Code: parts[3]}

	if len(p.Tag) != 3 || !isAlnum(p.Tag) {
		return FieldPath{}, fmt.Errorf("field path %q: tag must be three characters", s)
	}
	if p.Tag < "010" && isDigits(p.Tag) {
		return FieldPath{}, fmt.Errorf("field path %q: control field %s has no subfields", s, p.Tag)
	}
	if len(p.Ind1) != 1 || len(p.Ind2) != 1 {
		return FieldPath{}, fmt.Errorf("field path %q: indicators must be one character", s)
	}
	if len(p.Code) != 1 || !isAlnum(p.Code) {
		return FieldPath{}, fmt.Errorf("field path %q: subfield code must be one character", s)
	}

	return p, nil
}

func (p FieldPath) String() string {
	return strings.Join([]string{p.Tag, p.Ind1, p.Ind2, p.Code}, ".")
}

func (p FieldPath) matches(df *DataField) bool {
	return df.Tag == p.Tag &&
		normalizeIndicator(df.Ind1) == normalizeIndicator(p.Ind1) &&
		normalizeIndicator(df.Ind2) == normalizeIndicator(p.Ind2)
}

func normalizeIndicator(ind string) string {
	if strings.TrimSpace(ind) == "" || ind == blankIndicator {
		return blankIndicator
	}
	return ind
}

// xmlIndicator is the inverse of normalizeIndicator for XML attributes.
func xmlIndicator(ind string) string {
	if normalizeIndicator(ind) == blankIndicator {
		return " "
	}
	return ind
}

func isAlnum(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
