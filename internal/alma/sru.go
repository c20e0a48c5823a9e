package alma

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	apperrors "almaconnector/pkg/errors"
	"almaconnector/pkg/marc"
)

const (
	SRWNamespace = "http://www.loc.gov/zing/srw/"
	sruVersion   = "1.2"
)

// SRUService reads records through the Alma SRU interface. It cannot write.
type SRUService struct {
	cfg SRUConfig
	t   *transport
}

func NewSRUService(cfg SRUConfig, t *transport) *SRUService {
	if t == nil {
		t = newTransport(ProtocolSRU)
	}
	return &SRUService{cfg: cfg, t: t}
}

func (s *SRUService) Protocol() Protocol {
	return ProtocolSRU
}

// SearchURL builds the searchRetrieve URL for alma.{searchKey}={value}.
func (s *SRUService) SearchURL(searchKey, value string) string {
	domain := strings.TrimSuffix(s.cfg.Domain, "/")
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	return domain + "/view/sru/" + url.PathEscape(s.cfg.InstitutionCode) +
		"?version=" + sruVersion +
		"&operation=searchRetrieve" +
		"&query=alma." + searchKey + "=" + url.QueryEscape(value)
}

// GetRecord searches by the configured search key.
func (s *SRUService) GetRecord(ctx context.Context, id string) (*marc.Record, error) {
	return s.Search(ctx, s.cfg.SearchKey, id)
}

// Search returns the first record matching alma.{searchKey}={value}.
func (s *SRUService) Search(ctx context.Context, searchKey, value string) (*marc.Record, error) {
	if value == "" {
		return nil, apperrors.ErrValidation.WithMessage("search value is required")
	}
	if searchKey == "" {
		return nil, apperrors.ErrValidation.WithMessage("search key is required")
	}

	body, err := s.t.do(ctx, request{
		operation: "search",
		method:    http.MethodGet,
		url:       s.SearchURL(searchKey, value),
		header:    http.Header{"Accept": []string{"application/xml"}},
	})
	if err != nil {
		return nil, err
	}

	record, ferr := findRecord(bytes.NewReader(body))
	if ferr != nil {
		return nil, ferr.
			WithDetail("search_key", searchKey).
			WithDetail("search_value", value)
	}
	return record, nil
}

func (s *SRUService) UpdateField(context.Context, string, string, string) (*marc.Record, error) {
	return nil, apperrors.ErrUnsupported.WithMessage("alma sru interface cannot update records")
}

func (s *SRUService) CreateRecord(context.Context, *marc.Record) (*marc.Record, error) {
	return nil, apperrors.ErrUnsupported.WithMessage("alma sru interface cannot create records")
}

// recordXPath locates the MARC21-slim record inside a searchRetrieve
// response.
var recordXPath = mustCompileNS(".//srw:recordData//slim:record", map[string]string{
	"srw":  SRWNamespace,
	"slim": marc.SlimNamespace,
})

func mustCompileNS(expr string, namespaces map[string]string) *xpath.Expr {
	compiled, err := xpath.CompileWithNS(expr, namespaces)
	if err != nil {
		panic(err)
	}
	return compiled
}

// findRecord returns the first slim:record found below an srw:recordData
// element.
func findRecord(r io.Reader) (*marc.Record, *apperrors.Error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, apperrors.ErrService.WithMessage("malformed alma sru response").WithCause(err)
	}

	node := xmlquery.QuerySelector(doc, recordXPath)
	if node == nil {
		return nil, apperrors.ErrService.WithMessage("alma sru response contains no record")
	}

	rec, err := marc.Parse(strings.NewReader(node.OutputXMLWithOptions(
		xmlquery.WithOutputSelf(),
		xmlquery.WithPreserveSpace(),
	)))
	if err != nil {
		return nil, apperrors.ErrService.WithMessage("malformed marc record in sru response").WithCause(err)
	}
	return rec, nil
}
