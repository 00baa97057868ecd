package es

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/mocktracer"
)

type alwaysFailedTransport struct{}

func (t *alwaysFailedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return nil, errors.New("mock error")
}

func TestTracingTransport(t *testing.T) {
	RegisterTestingT(t)

	tracer := mocktracer.New()

	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer bad.Close()

	traced := func(transport http.RoundTripper, target string) (*http.Response, error, *mocktracer.MockSpan) {
		client := &http.Client{Transport: &TracingTransport{Transport: transport}}
		req, err := http.NewRequest(http.MethodGet, target+"/docflow-audit/_search", nil)
		Expect(err).To(BeNil())
		parent := tracer.StartSpan("client")
		req = req.WithContext(opentracing.ContextWithSpan(context.Background(), parent))
		res, err := client.Do(req)
		parent.Finish()
		return res, err, parent.(*mocktracer.MockSpan)
	}

	t.Run("should pass through requests without a span", func(t *testing.T) {
		tracer.Reset()
		client := &http.Client{Transport: &TracingTransport{Transport: http.DefaultTransport}}
		req, err := http.NewRequest(http.MethodGet, ok.URL, nil)
		Expect(err).To(BeNil())

		res, err := client.Do(req)
		Expect(err).To(BeNil())
		Expect(res.StatusCode).To(Equal(http.StatusOK))
		Expect(tracer.FinishedSpans()).To(BeEmpty())
	})

	t.Run("should open a child span for traced requests", func(t *testing.T) {
		tracer.Reset()
		res, err, parent := traced(http.DefaultTransport, ok.URL)
		Expect(err).To(BeNil())
		Expect(res.StatusCode).To(Equal(http.StatusOK))

		spans := tracer.FinishedSpans()
		Expect(len(spans)).To(Equal(2))
		child := spans[0]
		Expect(child.OperationName).To(Equal("GET /docflow-audit/_search"))
		Expect(child.ParentID).To(Equal(parent.SpanContext.SpanID))
		Expect(child.SpanContext.TraceID).To(Equal(parent.SpanContext.TraceID))
		Expect(child.Tags()).To(Equal(map[string]interface{}{
			"span.kind":        ext.SpanKindEnum("client"),
			"http.url":         ok.URL + "/docflow-audit/_search",
			"http.method":      "GET",
			"http.status_code": uint16(200),
			"error":            false,
		}))
	})

	t.Run("should flag error responses", func(t *testing.T) {
		tracer.Reset()
		res, err, _ := traced(http.DefaultTransport, bad.URL)
		Expect(err).To(BeNil())
		Expect(res.StatusCode).To(Equal(http.StatusBadRequest))

		child := tracer.FinishedSpans()[0]
		Expect(child.Tags()["http.status_code"]).To(Equal(uint16(400)))
		Expect(child.Tags()["error"]).To(Equal(true))
	})

	t.Run("should record transport failures without a response", func(t *testing.T) {
		tracer.Reset()
		res, err, _ := traced(&alwaysFailedTransport{}, "http://127.0.0.1:12345")
		Expect(res).To(BeNil())
		var urlErr *url.Error
		Expect(errors.As(err, &urlErr)).To(BeTrue())
		Expect(urlErr.Err.Error()).To(Equal("mock error"))

		child := tracer.FinishedSpans()[0]
		Expect(child.Tags()).To(Equal(map[string]interface{}{
			"span.kind":    ext.SpanKindEnum("client"),
			"http.url":     "http://127.0.0.1:12345/docflow-audit/_search",
			"http.method":  "GET",
			"error":        true,
			"error.detail": "mock error",
		}))
	})
}
