package testinfra

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
)

func ExecuteRequest(req *http.Request, handler http.Handler) (int, string, *http.Response) {
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	resp := w.Result()
	body, _ := ioutil.ReadAll(resp.Body)
	return resp.StatusCode, string(body), resp
}
