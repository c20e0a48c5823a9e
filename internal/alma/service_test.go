package alma

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"almaconnector/pkg/circuitbreaker"
	apperrors "almaconnector/pkg/errors"
	"almaconnector/pkg/marc"
)

const bibResponse = `<?xml version="1.0" encoding="UTF-8"?>
<bib>
  <mms_id>990001234</mms_id>
  <record>
    <leader>00000nam a2200000 c 4500</leader>
    <controlfield tag="001">990001234</controlfield>
    <controlfield tag="009">AC12345678</controlfield>
    <datafield tag="856" ind1="4" ind2=" ">
      <subfield code="u">https://old.example.org/record</subfield>
    </datafield>
    <datafield tag="245" ind1="0" ind2="0">
      <subfield code="a">A title</subfield>
    </datafield>
  </record>
</bib>`

const sruResponse = `<?xml version="1.0" encoding="UTF-8"?>
<searchRetrieveResponse xmlns="http://www.loc.gov/zing/srw/">
  <version>1.2</version>
  <numberOfRecords>1</numberOfRecords>
  <records>
    <record>
      <recordSchema>marcxml</recordSchema>
      <recordData>
        <record xmlns="http://www.loc.gov/MARC21/slim">
          <leader>00000nam a2200000 c 4500</leader>
          <controlfield tag="001">990001234</controlfield>
          <controlfield tag="009">AC12345678</controlfield>
          <datafield tag="245" ind1="0" ind2="0">
            <subfield code="a">A title</subfield>
          </datafield>
        </record>
      </recordData>
    </record>
  </records>
</searchRetrieveResponse>`

const sruPrefixedResponse = `<?xml version="1.0" encoding="UTF-8"?>
<srw:searchRetrieveResponse xmlns:srw="http://www.loc.gov/zing/srw/" xmlns:marc="http://www.loc.gov/MARC21/slim">
  <srw:numberOfRecords>1</srw:numberOfRecords>
  <srw:records>
    <srw:record>
      <srw:recordData>
        <marc:record>
          <marc:controlfield tag="001">990005678</marc:controlfield>
          <marc:controlfield tag="008">230101s2023    au            000 0 ger  </marc:controlfield>
        </marc:record>
      </srw:recordData>
    </srw:record>
  </srw:records>
</srw:searchRetrieveResponse>`

const sruEmptyResponse = `<?xml version="1.0" encoding="UTF-8"?>
<searchRetrieveResponse xmlns="http://www.loc.gov/zing/srw/">
  <version>1.2</version>
  <numberOfRecords>0</numberOfRecords>
</searchRetrieveResponse>`

const almaErrorResponse = `<?xml version="1.0" encoding="UTF-8"?>
<web_service_result xmlns="http://com/exlibris/urm/general/xmlbeans">
  <errorsExist>true</errorsExist>
  <errorList>
    <error>
      <errorCode>402203</errorCode>
      <errorMessage>Input parameters mmsId 42 is not valid.</errorMessage>
    </error>
  </errorList>
</web_service_result>`

func newRESTService(t *testing.T, handler http.HandlerFunc, opts ...Option) *RESTService {
	t.Helper()
	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithHTTPClient(srv.Client())}, opts...)
	cfg := RESTConfig{APIKey: "secret", APIHost: strings.TrimPrefix(srv.URL, "https://")}
	return NewRESTService(cfg, newTransport(ProtocolREST, opts...))
}

func newSRUService(t *testing.T, handler http.HandlerFunc) *SRUService {
	t.Helper()
	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)

	cfg := SRUConfig{
		SearchKey:       "local_control_field_009",
		Domain:          strings.TrimPrefix(srv.URL, "https://"),
		InstitutionCode: "43ACC_TUG",
	}
	return NewSRUService(cfg, newTransport(ProtocolSRU, WithHTTPClient(srv.Client())))
}

func TestRESTService_GetRecord(t *testing.T) {
	svc := newRESTService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/almaws/v1/bibs/990001234", r.URL.Path)
		assert.Equal(t, "apikey secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/xml", r.Header.Get("Accept"))
		_, _ = io.WriteString(w, bibResponse)
	})

	record, err := svc.GetRecord(context.Background(), "990001234")
	require.NoError(t, err)
	assert.Equal(t, "990001234", record.MMSID())

	ac, ok := record.ControlField("009")
	assert.True(t, ok)
	assert.Equal(t, "AC12345678", ac)
}

func TestRESTService_GetRecord_AlmaError(t *testing.T) {
	svc := newRESTService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, almaErrorResponse)
	})

	_, err := svc.GetRecord(context.Background(), "42")
	require.Error(t, err)
	assert.True(t, apperrors.IsService(err))
	assert.Contains(t, err.Error(), "mmsId 42 is not valid")
}

func TestRESTService_GetRecord_MalformedBody(t *testing.T) {
	svc := newRESTService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<bib><record>")
	})

	_, err := svc.GetRecord(context.Background(), "990001234")
	require.Error(t, err)
	assert.True(t, apperrors.IsService(err))
}

func TestRESTService_UpdateField(t *testing.T) {
	var putBody string
	svc := newRESTService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, bibResponse)
		case http.MethodPut:
			assert.Equal(t, "application/xml", r.Header.Get("Content-Type"))
			data, _ := io.ReadAll(r.Body)
			putBody = string(data)
			_, _ = w.Write(data)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})

	record, err := svc.UpdateField(context.Background(), "990001234", "856.4._.u", "https://new.example.org/record")
	require.NoError(t, err)

	path, err := marc.ParseFieldPath("856.4._.u")
	require.NoError(t, err)
	value, ok := record.Subfield(path)
	assert.True(t, ok)
	assert.Equal(t, "https://new.example.org/record", value)
	assert.Contains(t, putBody, "<bib>")
	assert.Contains(t, putBody, "https://new.example.org/record")
}

func TestRESTService_UpdateField_MissingSubfield(t *testing.T) {
	var puts int32
	svc := newRESTService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			atomic.AddInt32(&puts, 1)
		}
		_, _ = io.WriteString(w, bibResponse)
	})

	_, err := svc.UpdateField(context.Background(), "990001234", "500._._.a", "note")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.True(t, errors.Is(err, marc.ErrSubfieldNotFound))
	assert.Zero(t, atomic.LoadInt32(&puts))
}

func TestRESTService_UpdateField_InvalidPath(t *testing.T) {
	svc := newRESTService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := svc.UpdateField(context.Background(), "990001234", "856-u", "x")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestRESTService_CreateRecord(t *testing.T) {
	svc := newRESTService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/almaws/v1/bibs", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(data), "(CMS)abc-123")
		_, _ = io.WriteString(w, bibResponse)
	})

	record := &marc.Record{}
	record.AddDataField(marc.DataField{
		Tag: "035", Ind1: " ", Ind2: " ",
		Subfields: []marc.Subfield{{Code: "a", Value: "(CMS)abc-123"}},
	})

	created, err := svc.CreateRecord(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, "990001234", created.MMSID())
}

func TestRESTService_CircuitBreaker(t *testing.T) {
	var calls int32
	cfg := circuitbreaker.DefaultConfig("alma-rest-test")
	cfg.Timeout = time.Hour
	cfg.IsSuccessful = func(err error) bool { return err == nil || !apperrors.IsService(err) }

	svc := newRESTService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}, WithCircuitBreaker(circuitbreaker.NewWrapper(cfg)))

	for i := 0; i < 5; i++ {
		_, err := svc.GetRecord(context.Background(), "990001234")
		require.Error(t, err)
		assert.True(t, apperrors.IsService(err))
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSRUService_Search(t *testing.T) {
	svc := newSRUService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/view/sru/43ACC_TUG", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1.2", q.Get("version"))
		assert.Equal(t, "searchRetrieve", q.Get("operation"))
		assert.Equal(t, "alma.local_control_field_009=AC12345678", q.Get("query"))
		_, _ = io.WriteString(w, sruResponse)
	})

	record, err := svc.GetRecord(context.Background(), "AC12345678")
	require.NoError(t, err)
	assert.Equal(t, "990001234", record.MMSID())
	assert.Len(t, record.DataFields, 1)
}

func TestSRUService_SearchOtherKey(t *testing.T) {
	svc := newSRUService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "alma.mms_id=990001234", r.URL.Query().Get("query"))
		_, _ = io.WriteString(w, sruResponse)
	})

	_, err := svc.Search(context.Background(), "mms_id", "990001234")
	require.NoError(t, err)
}

func TestSRUService_SearchPrefixedNamespaces(t *testing.T) {
	svc := newSRUService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, sruPrefixedResponse)
	})

	record, err := svc.GetRecord(context.Background(), "AC12345678")
	require.NoError(t, err)
	assert.Equal(t, "990005678", record.MMSID())

	fixed, ok := record.ControlField("008")
	require.True(t, ok)
	assert.Equal(t, "230101s2023    au            000 0 ger  ", fixed)
}

func TestFindRecord_IgnoresRecordOutsideRecordData(t *testing.T) {
	body := `<searchRetrieveResponse xmlns="http://www.loc.gov/zing/srw/">
  <record xmlns="http://www.loc.gov/MARC21/slim"><controlfield tag="001">1</controlfield></record>
</searchRetrieveResponse>`

	_, err := findRecord(strings.NewReader(body))
	require.NotNil(t, err)
	assert.Equal(t, apperrors.ErrService.Code, err.Code)
}

func TestFindRecord_Malformed(t *testing.T) {
	_, err := findRecord(strings.NewReader("<searchRetrieveResponse><recordData>"))
	require.NotNil(t, err)
	assert.True(t, apperrors.IsService(err))
}

func TestSRUService_NoRecord(t *testing.T) {
	svc := newSRUService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, sruEmptyResponse)
	})

	_, err := svc.GetRecord(context.Background(), "AC00000000")
	require.Error(t, err)
	assert.True(t, apperrors.IsService(err))
}

func TestSRUService_ServerError(t *testing.T) {
	svc := newSRUService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := svc.GetRecord(context.Background(), "AC12345678")
	require.Error(t, err)
	assert.True(t, apperrors.IsService(err))
	assert.Equal(t, http.StatusBadGateway, apperrors.ToHTTPStatus(err))
}

func TestSRUService_ReadOnly(t *testing.T) {
	svc := NewSRUService(SRUConfig{SearchKey: "mms_id", Domain: "d", InstitutionCode: "i"}, nil)

	_, err := svc.UpdateField(context.Background(), "1", "856.4._.u", "x")
	assert.True(t, apperrors.IsUnsupported(err))

	_, err = svc.CreateRecord(context.Background(), &marc.Record{})
	assert.True(t, apperrors.IsUnsupported(err))
}

func TestSRUService_SearchURL(t *testing.T) {
	svc := NewSRUService(SRUConfig{Domain: "obv-at-ubtug.alma.exlibrisgroup.com", InstitutionCode: "43ACC_TUG"}, nil)

	assert.Equal(t,
		"https://obv-at-ubtug.alma.exlibrisgroup.com/view/sru/43ACC_TUG?version=1.2&operation=searchRetrieve&query=alma.mms_id=990001234",
		svc.SearchURL("mms_id", "990001234"))
}
