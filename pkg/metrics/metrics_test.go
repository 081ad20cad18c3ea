package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "bookrec")
				So(manager.subsystem, ShouldEqual, "recommender")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.candidatesFetched.Add(3)

			Convey("Then the options should be reflected in exported series", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var found bool
				for _, f := range families {
					if f.GetName() == "test_namespace_test_subsystem_candidates_fetched_total" {
						found = true
						So(f.GetMetric()[0].GetCounter().GetValue(), ShouldEqual, 3)
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording pipeline metrics", func() {
			before := testutil.ToFloat64(globalManager.recommendationsServed.WithLabelValues("history"))
			RecordRecommendationServed("history")
			RecordRecommendationServed("history")

			Convey("Then the served counter should advance", func() {
				after := testutil.ToFloat64(globalManager.recommendationsServed.WithLabelValues("history"))
				So(after-before, ShouldEqual, 2)
			})

			Convey("And the remaining recorders should not panic", func() {
				So(func() {
					RecordRecommendationFailed("no_signal")
					RecordCandidatesFetched(20)
					RecordCandidatesExcluded(2)
					RecordCandidateDuplicate()
					RecordPipelineLatency("similar", 42)
					RecordHistoryEvent()
					RecordCatalogRequest("ok")
					RecordCatalogLatency(120)
					UpdateCatalogBreakerState(0)
					RecordEmbeddingLatency(3, 10)
					RecordRepositoryUpsert("ok")
					RecordRepositoryQueryLatency("upsert", 1.5)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording HTTP and error metrics", func() {
			So(func() {
				RecordHTTPRequest("/recommend", "GET", "200")
				RecordHTTPRequestDuration("/recommend", "GET", "200", 15.0)
				RecordErrorByComponent("catalog", "timeout")
				RecordErrorByType("server_error", "high")
				RecordErrorByEndpoint("/recommend", "GET", "not_found")
				RecordErrorLatency("http", "client_error", 10)
			}, ShouldNotPanic)
		})

		Convey("When recording system metrics", func() {
			UpdateSystemGoroutineCount(7)

			Convey("Then gauges should hold the last value", func() {
				So(testutil.ToFloat64(globalManager.systemGoroutineCount), ShouldEqual, 7)
				So(func() {
					UpdateSystemMemoryUsage(1 << 20)
					RecordSystemGCPauseTime(0.4)
				}, ShouldNotPanic)
			})
		})

		Convey("When scraping the custom registry", func() {
			RecordCatalogRequest("error")
			families, err := GetRegistry().Gather()

			Convey("Then only bookrec series should be present", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				for _, f := range families {
					So(strings.HasPrefix(f.GetName(), "bookrec_"), ShouldBeTrue)
				}
			})
		})
	})
}
