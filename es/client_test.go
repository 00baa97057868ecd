package es

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/gomega"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

func fakeElasticsearch(status int, response string) (*httptest.Server, *[]recordedRequest) {
	requests := &[]recordedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := ioutil.ReadAll(r.Body)
		*requests = append(*requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	return server, requests
}

func TestIndex(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should put the document under its id and refresh", func(t *testing.T) {
		server, requests := fakeElasticsearch(http.StatusCreated, `{"result":"created","_version":1}`)
		defer server.Close()
		client, err := NewClient(false, server.URL)
		Expect(err).To(BeNil())

		Expect(client.Index(context.Background(), "docflow-audit", "42", H{"actor": "alice"})).To(Succeed())
		Expect(*requests).To(HaveLen(1))
		r := (*requests)[0]
		Expect(r.Method).To(Equal(http.MethodPut))
		Expect(r.Path).To(Equal("/docflow-audit/_doc/42"))
		Expect(r.Query).To(ContainSubstring("refresh=true"))
		Expect(r.Body).To(MatchJSON(`{"actor":"alice"}`))
	})

	t.Run("should report error responses", func(t *testing.T) {
		server, _ := fakeElasticsearch(http.StatusBadRequest, `{"error":"bad"}`)
		defer server.Close()
		client, err := NewClient(false, server.URL)
		Expect(err).To(BeNil())

		err = client.Index(context.Background(), "docflow-audit", "42", H{})
		Expect(err).ToNot(BeNil())
		Expect(err.Error()).To(ContainSubstring("400"))
	})
}

func TestSearch(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should decode hits and keep sources raw", func(t *testing.T) {
		server, requests := fakeElasticsearch(http.StatusOK, `{
			"took": 3, "timed_out": false,
			"hits": {"total": {"value": 1, "relation": "eq"}, "hits": [
				{"_index": "docflow-audit", "_id": "7", "_score": 1.5, "_source": {"actor": "bob"}}
			]}
		}`)
		defer server.Close()
		client, err := NewClient(false, server.URL)
		Expect(err).To(BeNil())

		result, err := client.Search(context.Background(), "docflow-audit", H{"query": H{"match_all": H{}}})
		Expect(err).To(BeNil())
		Expect(result.Took).To(Equal(3))
		Expect(result.Hits.Total.Value).To(Equal(1))
		Expect(result.Hits.Hits).To(HaveLen(1))
		Expect(result.Hits.Hits[0].Id).To(Equal("7"))

		source := map[string]string{}
		Expect(json.Unmarshal([]byte(result.Hits.Hits[0].Source), &source)).To(Succeed())
		Expect(source["actor"]).To(Equal("bob"))

		r := (*requests)[0]
		Expect(r.Path).To(Equal("/docflow-audit/_search"))
		Expect(r.Query).To(ContainSubstring("track_total_hits=true"))
		Expect(r.Body).To(MatchJSON(`{"query":{"match_all":{}}}`))
	})

	t.Run("should report error responses", func(t *testing.T) {
		server, _ := fakeElasticsearch(http.StatusNotFound, `{"error":{"type":"index_not_found_exception"}}`)
		defer server.Close()
		client, err := NewClient(false, server.URL)
		Expect(err).To(BeNil())

		result, err := client.Search(context.Background(), "docflow-audit", H{})
		Expect(result).To(BeNil())
		Expect(err.Error()).To(ContainSubstring("404"))
	})
}
