package alma

import (
	"bytes"
	"context"
	"encoding/xml"
	"net/http"
	"net/url"
	"strings"

	apperrors "almaconnector/pkg/errors"
	"almaconnector/pkg/marc"
)

const bibsPath = "/almaws/v1/bibs"

// RESTService uses the Alma bibs API. With an Institution Zone key Alma only
// accepts changes to local (98X) fields of existing records.
type RESTService struct {
	cfg RESTConfig
	t   *transport
}

func NewRESTService(cfg RESTConfig, t *transport) *RESTService {
	if t == nil {
		t = newTransport(ProtocolREST)
	}
	return &RESTService{cfg: cfg, t: t}
}

func (s *RESTService) Protocol() Protocol {
	return ProtocolREST
}

// bib is the Alma envelope around a MARC record.
type bib struct {
	XMLName xml.Name     `xml:"bib"`
	MMSID   string       `xml:"mms_id,omitempty"`
	Record  *marc.Record `xml:"record"`
}

func (s *RESTService) baseURL() string {
	host := strings.TrimSuffix(s.cfg.APIHost, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return host + bibsPath
}

func (s *RESTService) header(withBody bool) http.Header {
	h := http.Header{}
	h.Set("Authorization", "apikey "+s.cfg.APIKey)
	h.Set("Accept", "application/xml")
	if withBody {
		h.Set("Content-Type", "application/xml")
	}
	return h
}

func (s *RESTService) GetRecord(ctx context.Context, id string) (*marc.Record, error) {
	if id == "" {
		return nil, apperrors.ErrValidation.WithMessage("mms id is required")
	}

	body, err := s.t.do(ctx, request{
		operation: "get_record",
		method:    http.MethodGet,
		url:       s.baseURL() + "/" + url.PathEscape(id),
		header:    s.header(false),
	})
	if err != nil {
		return nil, err
	}
	return decodeBib(body, "get_record")
}

// UpdateField fetches the record, sets the one subfield addressed by
// fieldPath and writes the record back.
func (s *RESTService) UpdateField(ctx context.Context, id, fieldPath, value string) (*marc.Record, error) {
	path, err := marc.ParseFieldPath(fieldPath)
	if err != nil {
		return nil, apperrors.ErrValidation.WithMessage("invalid field path").WithCause(err).WithDetail("field_path", fieldPath)
	}

	record, err := s.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := record.SetSubfield(path, value); err != nil {
		return nil, apperrors.ErrValidation.
			WithMessagef("record %s has no subfield %s", id, path).
			WithCause(err).
			WithDetail("mms_id", id).
			WithDetail("field_path", path.String())
	}

	payload, err := encodeBib(record)
	if err != nil {
		return nil, err
	}

	body, err := s.t.do(ctx, request{
		operation: "update_field",
		method:    http.MethodPut,
		url:       s.baseURL() + "/" + url.PathEscape(id),
		header:    s.header(true),
		body:      payload,
	})
	if err != nil {
		return nil, err
	}
	return decodeBib(body, "update_field")
}

func (s *RESTService) CreateRecord(ctx context.Context, record *marc.Record) (*marc.Record, error) {
	if record == nil {
		return nil, apperrors.ErrValidation.WithMessage("record is required")
	}

	payload, err := encodeBib(record)
	if err != nil {
		return nil, err
	}

	body, err := s.t.do(ctx, request{
		operation: "create_record",
		method:    http.MethodPost,
		url:       s.baseURL(),
		header:    s.header(true),
		body:      payload,
	})
	if err != nil {
		return nil, err
	}
	return decodeBib(body, "create_record")
}

func encodeBib(record *marc.Record) ([]byte, error) {
	data, err := xml.Marshal(bib{Record: record})
	if err != nil {
		return nil, apperrors.ErrInternal.WithMessage("failed to encode bib").WithCause(err)
	}
	return data, nil
}

func decodeBib(body []byte, operation string) (*marc.Record, error) {
	var b bib
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&b); err != nil {
		return nil, apperrors.ErrService.
			WithMessage("malformed alma bib response").
			WithCause(err).
			WithDetail("operation", operation)
	}
	if b.Record == nil {
		return nil, apperrors.ErrService.
			WithMessage("alma bib response without record").
			WithDetail("operation", operation)
	}
	if _, ok := b.Record.ControlField("001"); !ok && b.MMSID != "" {
		b.Record.SetControlField("001", b.MMSID)
	}
	return b.Record, nil
}
