package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRecorderRequests(t *testing.T) {
	Convey("Given a recorder on a private registry", t, func() {
		registry := prometheus.NewRegistry()
		rec := NewRecorder(WithRegistry(registry), WithNamespace("test"))

		Convey("When requests are observed", func() {
			rec.ObserveRequest("list_courses", 200, 20*time.Millisecond)
			rec.ObserveRequest("list_courses", 200, 30*time.Millisecond)
			rec.ObserveRequest("grade_lab", 404, time.Millisecond)
			rec.ObserveRequest("grade_lab", 0, time.Millisecond)

			Convey("Then counters are labelled by operation and status", func() {
				So(testutil.ToFloat64(rec.requests.WithLabelValues("list_courses", "200")), ShouldEqual, 2)
				So(testutil.ToFloat64(rec.requests.WithLabelValues("grade_lab", "404")), ShouldEqual, 1)
				So(testutil.ToFloat64(rec.requests.WithLabelValues("grade_lab", "error")), ShouldEqual, 1)
			})

			Convey("Then the histogram has one series per operation", func() {
				So(testutil.CollectAndCount(rec.requestDuration, "test_request_duration_seconds"), ShouldEqual, 2)
			})
		})
	})
}

func TestRecorderGrades(t *testing.T) {
	Convey("Given a recorder", t, func() {
		rec := NewRecorder()

		Convey("When grades and publish failures are observed", func() {
			rec.ObserveGrade("updated")
			rec.ObserveGrade("pending")
			rec.ObserveGrade("")
			rec.ObservePublishFailure()

			Convey("Then they are counted", func() {
				So(testutil.ToFloat64(rec.grades.WithLabelValues("updated")), ShouldEqual, 1)
				So(testutil.ToFloat64(rec.grades.WithLabelValues("unknown")), ShouldEqual, 1)
				So(testutil.ToFloat64(rec.publishFailures), ShouldEqual, 1)
			})
		})
	})
}

func TestRecorderHandler(t *testing.T) {
	Convey("Given a recorder with one observation", t, func() {
		rec := NewRecorder()
		rec.ObserveRequest("list_labs", 200, time.Millisecond)

		Convey("When the handler is scraped", func() {
			w := httptest.NewRecorder()
			rec.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
			body, _ := io.ReadAll(w.Result().Body)

			Convey("Then the exposition contains the request counter", func() {
				So(w.Code, ShouldEqual, 200)
				So(strings.Contains(string(body), `course_grader_requests_total{operation="list_labs",status="200"} 1`), ShouldBeTrue)
			})
		})
	})
}

func TestNilRecorderIsSafe(t *testing.T) {
	Convey("Given a nil recorder", t, func() {
		var rec *Recorder

		Convey("Then observing does not panic", func() {
			So(func() {
				rec.ObserveRequest("x", 200, time.Second)
				rec.ObserveGrade("updated")
				rec.ObservePublishFailure()
			}, ShouldNotPanic)
		})
	})
}
