package alma

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"almaconnector/internal/constants"
	"almaconnector/pkg/circuitbreaker"
	apperrors "almaconnector/pkg/errors"
	"almaconnector/pkg/metrics"
	"almaconnector/pkg/tracing"
)

const tracerName = "alma"

// transport performs exactly one round trip per call. It never retries.
type transport struct {
	protocol Protocol
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *circuitbreaker.Wrapper
}

func newTransport(protocol Protocol, opts ...Option) *transport {
	t := &transport{
		protocol: protocol,
		client:   &http.Client{Timeout: constants.DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = http.DefaultClient
	}
	return t
}

type request struct {
	operation string
	method    string
	url       string
	header    http.Header
	body      []byte
}

func (t *transport) do(ctx context.Context, req request) ([]byte, error) {
	ctx, span := tracing.StartClientSpan(ctx, tracerName, "alma."+req.operation)
	defer span.End()
	span.SetAttributes(
		attribute.String("alma.protocol", string(t.protocol)),
		attribute.String("http.method", req.method),
	)

	start := time.Now()
	body, err := t.roundTrip(ctx, req)

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.ObserveAlmaRequest(string(t.protocol), req.operation, status, time.Since(start))

	return body, err
}

func (t *transport) roundTrip(ctx context.Context, req request) ([]byte, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var body []byte
	call := func() error {
		var err error
		body, err = t.send(ctx, req)
		return err
	}

	if t.breaker == nil {
		return body, call()
	}

	err := t.breaker.Do(ctx, call)
	if breakerOpen(err) {
		return nil, apperrors.ErrService.
			WithMessage("alma circuit breaker is open").
			WithCause(err).
			WithDetail("operation", req.operation)
	}
	return body, err
}

func (t *transport) send(ctx context.Context, req request) ([]byte, error) {
	var reader io.Reader
	if req.body != nil {
		reader = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, reader)
	if err != nil {
		return nil, apperrors.ErrValidation.WithMessage("invalid alma request").WithCause(err)
	}
	for k, v := range req.header {
		httpReq.Header[k] = v
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.ErrService.
			WithMessage("alma request failed").
			WithCause(err).
			WithDetail("operation", req.operation)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.ErrService.
			WithMessage("failed to read alma response").
			WithCause(err).
			WithDetail("operation", req.operation)
	}

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode > constants.HTTPStatusOKMax {
		return nil, statusError(req.operation, resp.StatusCode, data)
	}

	return data, nil
}

type webServiceResult struct {
	XMLName xml.Name `xml:"web_service_result"`
	Errors  []struct {
		Code    string `xml:"errorCode"`
		Message string `xml:"errorMessage"`
	} `xml:"errorList>error"`
}

// statusError builds the service error for a non-2xx answer, carrying the
// messages of an Alma web_service_result body when there is one.
func statusError(operation string, status int, body []byte) error {
	msg := fmt.Sprintf("alma responded with status %d", status)

	var result webServiceResult
	if xml.Unmarshal(body, &result) == nil && len(result.Errors) > 0 {
		parts := make([]string, 0, len(result.Errors))
		errCodes := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			parts = append(parts, strings.TrimSpace(e.Message))
			errCodes = append(errCodes, e.Code)
		}
		return apperrors.ErrService.
			WithMessage(msg + ": " + strings.Join(parts, "; ")).
			WithDetail("operation", operation).
			WithDetail("status", status).
			WithDetail("alma_error_codes", errCodes)
	}

	return apperrors.ErrService.
		WithMessage(msg).
		WithDetail("operation", operation).
		WithDetail("status", status)
}
