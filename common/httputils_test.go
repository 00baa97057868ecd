package common_test

import (
	"context"
	"docflow/common"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("HttpInvokeJson", func() {
	var server *httptest.Server

	AfterEach(func() {
		if server != nil {
			server.Close()
		}
	})

	It("should send json body with custom headers and return response body", func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.Header.Get("Content-Type")).To(Equal("application/json;charset=UTF-8"))
			Expect(r.Header.Get("X-Token")).To(Equal("abc"))
			body, _ := ioutil.ReadAll(r.Body)
			Expect(string(body)).To(Equal(`{"a":1}`))
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))

		resp, err := common.HttpInvokeJson(context.Background(), http.MethodPost, server.URL,
			http.Header{"X-Token": []string{"abc"}}, `{"a":1}`)
		Expect(err).To(BeNil())
		Expect(resp).To(Equal(`{"ok":true}`))
	})

	It("should return ErrHttpInvoke when status is not success", func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`upstream down`))
		}))

		resp, err := common.HttpInvokeJson(context.Background(), http.MethodGet, server.URL, nil, "")
		Expect(resp).To(BeEmpty())
		var invokeErr *common.ErrHttpInvoke
		Expect(errors.As(err, &invokeErr)).To(BeTrue())
		Expect(invokeErr.StatusCode).To(Equal(http.StatusBadGateway))
		Expect(invokeErr.RespBody).To(Equal("upstream down"))
		Expect(invokeErr.Error()).To(ContainSubstring("GET " + server.URL))
	})
})

var _ = Describe("HttpStatusIsSuccess", func() {
	It("should accept 2xx only", func() {
		Expect(common.HttpStatusIsSuccess(200)).To(BeTrue())
		Expect(common.HttpStatusIsSuccess(204)).To(BeTrue())
		Expect(common.HttpStatusIsSuccess(199)).To(BeFalse())
		Expect(common.HttpStatusIsSuccess(302)).To(BeFalse())
		Expect(common.HttpStatusIsSuccess(500)).To(BeFalse())
	})
})
