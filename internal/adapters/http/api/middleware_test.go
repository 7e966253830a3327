package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestClassify(t *testing.T) {
	Convey("Given failed responses", t, func() {
		cases := map[int]statusClass{
			http.StatusServiceUnavailable:  {"remote_unavailable", "medium"},
			http.StatusInsufficientStorage: {"local_storage", "high"},
			http.StatusInternalServerError: {"server_error", "high"},
			http.StatusUnauthorized:        {"no_identity", "low"},
			http.StatusNotFound:            {"not_found", "low"},
			http.StatusBadRequest:          {"client_error", "medium"},
		}
		for status, want := range cases {
			So(classify(status), ShouldResemble, want)
		}
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a handler that writes a status", t, func() {
		h := MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}, "test")

		Convey("Then the status passes through", func() {
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusTeapot)
		})
	})

	Convey("Given a handler that only writes a body", t, func() {
		h := MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}, "test")

		Convey("Then the response is a 200", func() {
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldEqual, "ok")
		})
	})
}
