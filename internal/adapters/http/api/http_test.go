package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/okian/stratowatch/internal/adapters/http/api"
	service "github.com/okian/stratowatch/internal/app"
	repository "github.com/okian/stratowatch/internal/adapters/repository"
	"github.com/okian/stratowatch/internal/domain/atmosphere"
	"github.com/okian/stratowatch/internal/domain/model"
	"github.com/okian/stratowatch/internal/domain/scoring"
	"github.com/okian/stratowatch/internal/domain/types"
	"github.com/okian/stratowatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// mockDependencies scores with the real domain packages and serves board
// reads from canned data.
type mockDependencies struct {
	scorer   *scoring.Scorer
	profiler *atmosphere.Profiler

	scoreErr  error
	topN      []types.Entry
	topNErr   error
	rank      types.Entry
	rankErr   error
	health    model.FleetHealth
	healthErr error

	scoredBatches int
}

func newMockDependencies() *mockDependencies {
	return &mockDependencies{scorer: scoring.New(), profiler: atmosphere.NewProfiler()}
}

func (m *mockDependencies) ScoreFleet(_ context.Context, objects []model.TrackedObject) (types.FleetReport, error) {
	if m.scoreErr != nil {
		return types.FleetReport{}, m.scoreErr
	}
	m.scoredBatches++
	outcomes := m.scorer.ScoreFleet(objects)
	return types.NewFleetReport(outcomes, scoring.Summarize(outcomes)), nil
}

func (m *mockDependencies) BuildProfile(_ context.Context, levels []model.SoundingLevel) types.ProfileReport {
	return types.NewProfileReport(m.profiler.BuildProfile(levels))
}

func (m *mockDependencies) TopN(_ context.Context, n int) ([]types.Entry, error) {
	if m.topNErr != nil {
		return nil, m.topNErr
	}
	if n > len(m.topN) {
		return m.topN, nil
	}
	return m.topN[:n], nil
}

func (m *mockDependencies) Rank(_ context.Context, _ string) (types.Entry, error) {
	if m.rankErr != nil {
		return types.Entry{}, m.rankErr
	}
	return m.rank, nil
}

func (m *mockDependencies) FleetHealth(context.Context) (model.FleetHealth, error) {
	return m.health, m.healthErr
}

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats() map[string]any { return m.stats }

func newRouter(deps api.Dependencies, opts ...api.Option) http.Handler {
	r := mux.NewRouter()
	api.NewServer(deps, &mockStatsProvider{stats: map[string]any{"started": true}}, opts...).Register(context.Background(), r)
	return api.Handler(r)
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var resp struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp.Code
}

const fixtureFleetJSON = `{"objects":[
 {"id":"WB-7284","observed":{"lat":37.2841,"lon":-115.8245},"predicted":{"lat":37.1523,"lon":-115.7123},"uncertainty_km":45.2,
  "telemetry":{"altitude_m":18200,"vertical_rate_mps":-12.5,"battery_percent":22}},
 {"id":"WB-3391","observed":{"lat":40.7128,"lon":-74.006},"predicted":{"lat":40.7128,"lon":-74.006},"uncertainty_km":0},
 {"id":"WB-5103","observed":{"lat":35.6892,"lon":-102.3341},"predicted":{"lat":35.6901,"lon":-102.335},"uncertainty_km":25}
]}`

func TestServer_Routes(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newMockDependencies()
		h := newRouter(deps)

		Convey("Then healthz serves the metrics exposition", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/plain")
		})

		Convey("Then stats returns JSON", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then unknown paths are 404", func() {
			w := do(h, http.MethodGet, "/leaderboard", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then wrong methods are 405", func() {
			w := do(h, http.MethodGet, "/score", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("Then every response carries a request ID", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Header().Get("X-Request-ID"), ShouldNotBeEmpty)

			req := httptest.NewRequest(http.MethodGet, "/stats", http.NoBody)
			req.Header.Set("X-Request-ID", "req-42")
			w = httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Header().Get("X-Request-ID"), ShouldEqual, "req-42")
		})
	})
}

func TestScoreHandler(t *testing.T) {
	Convey("Given a score endpoint", t, func() {
		deps := newMockDependencies()
		h := newRouter(deps, api.WithMaxBatchSize(3))

		Convey("When scoring the fixture fleet", func() {
			w := do(h, http.MethodPost, "/score", fixtureFleetJSON)

			var report types.FleetReport
			err := json.Unmarshal(w.Body.Bytes(), &report)

			Convey("Then per-object errors are reported with a 200", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(err, ShouldBeNil)
				So(report.Results, ShouldHaveLength, 2)
				So(report.Results[0].ID, ShouldEqual, "WB-7284")
				So(report.Results[0].Classification, ShouldEqual, model.Anomalous)
				So(report.Results[0].DeviationPct, ShouldAlmostEqual, 42.507, 0.001)
				So(report.Results[0].Flags, ShouldResemble, []model.Flag{model.FlagRapidDescent, model.FlagLowBattery})
				So(report.Errors, ShouldHaveLength, 1)
				So(report.Errors[0].Index, ShouldEqual, 1)
				So(report.Errors[0].Message, ShouldStartWith, "object 1:")
				So(report.Health.Invalid, ShouldEqual, 1)
			})
		})

		Convey("When one element has a subnormal uncertainty", func() {
			body := `{"objects":[
			 {"id":"a","observed":{"lat":37.2841,"lon":-115.8245},"predicted":{"lat":37.1523,"lon":-115.7123},"uncertainty_km":1e-310},
			 {"id":"b","observed":{"lat":37.2841,"lon":-115.8245},"predicted":{"lat":37.1523,"lon":-115.7123},"uncertainty_km":45.2}
			]}`
			w := do(h, http.MethodPost, "/score", body)

			var report types.FleetReport
			err := json.Unmarshal(w.Body.Bytes(), &report)

			Convey("Then the other element still comes back", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(err, ShouldBeNil)
				So(report.Results, ShouldHaveLength, 1)
				So(report.Results[0].ID, ShouldEqual, "b")
				So(report.Errors, ShouldHaveLength, 1)
				So(report.Errors[0].ID, ShouldEqual, "a")
				So(report.Errors[0].Message, ShouldContainSubstring, "invalid input")
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(h, http.MethodPost, "/score", "{not json")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorCode(w), ShouldEqual, "bad_request")
			})
		})

		Convey("When the batch is empty", func() {
			w := do(h, http.MethodPost, "/score", `{"objects":[]}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, "empty batch")
				So(deps.scoredBatches, ShouldEqual, 0)
			})
		})

		Convey("When the batch exceeds the limit", func() {
			objs := make([]string, 4)
			for i := range objs {
				objs[i] = fmt.Sprintf(`{"id":"WB-%d","observed":{"lat":0,"lon":0},"predicted":{"lat":0,"lon":0},"uncertainty_km":1}`, i)
			}
			w := do(h, http.MethodPost, "/score", `{"objects":[`+strings.Join(objs, ",")+`]}`)

			Convey("Then it is rejected as too large", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
				So(errorCode(w), ShouldEqual, "batch_too_large")
			})
		})

		Convey("When the service is not running", func() {
			deps.scoreErr = fmt.Errorf("score: %w", service.ErrNotStarted)
			w := do(h, http.MethodPost, "/score", fixtureFleetJSON)

			Convey("Then it is unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})
}

func TestProfileHandler(t *testing.T) {
	Convey("Given a profile endpoint", t, func() {
		h := newRouter(newMockDependencies())

		Convey("When posting a sounding with one bad level", func() {
			body := `{"levels":[
			 {"pressure_hpa":500,"observed_temp_c":-19.2},
			 {"pressure_hpa":850,"observed_temp_c":7.5,"humidity_pct":64},
			 {"pressure_hpa":5000,"observed_temp_c":0}
			]}`
			w := do(h, http.MethodPost, "/profile", body)

			var report types.ProfileReport
			err := json.Unmarshal(w.Body.Bytes(), &report)

			Convey("Then levels come back ground first with the error indexed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(err, ShouldBeNil)
				So(report.Levels, ShouldHaveLength, 2)
				So(report.Levels[0].PressureHPa, ShouldEqual, 850)
				So(report.Levels[0].ReferenceTempC, ShouldAlmostEqual, 5.5276, 0.001)
				So(report.Levels[1].Layer, ShouldEqual, model.Troposphere)
				So(report.Errors, ShouldHaveLength, 1)
				So(report.Errors[0].Index, ShouldEqual, 2)
			})
		})

		Convey("When no levels are posted", func() {
			w := do(h, http.MethodPost, "/profile", `{"levels":[]}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestAnomaliesHandler(t *testing.T) {
	Convey("Given an anomalies endpoint", t, func() {
		deps := newMockDependencies()
		deps.topN = []types.Entry{
			{Rank: 1, ID: "WB-7284", DeviationPct: 42.5, Classification: model.Anomalous},
			{Rank: 2, ID: "WB-5103", DeviationPct: 0.4, Classification: model.Nominal},
		}
		h := newRouter(deps, api.WithMaxAnomalyLimit(10))

		Convey("When requesting the top entry", func() {
			w := do(h, http.MethodGet, "/anomalies?limit=1", "")

			var entries []types.Entry
			err := json.Unmarshal(w.Body.Bytes(), &entries)

			Convey("Then it returns the ranked rows", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 1)
				So(entries[0].ID, ShouldEqual, "WB-7284")
			})
		})

		Convey("When the limit is missing, zero or too large", func() {
			Convey("Then it is a bad request", func() {
				So(do(h, http.MethodGet, "/anomalies", "").Code, ShouldEqual, http.StatusBadRequest)
				So(do(h, http.MethodGet, "/anomalies?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
				w := do(h, http.MethodGet, "/anomalies?limit=11", "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorCode(w), ShouldEqual, "limit_exceeded")
			})
		})

		Convey("When the board fails", func() {
			deps.topNErr = errors.New("boom")

			Convey("Then it is an internal error", func() {
				So(do(h, http.MethodGet, "/anomalies?limit=1", "").Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}

func TestRankAndFleetHandlers(t *testing.T) {
	Convey("Given rank and fleet endpoints", t, func() {
		deps := newMockDependencies()
		h := newRouter(deps)

		Convey("When the object is on the board", func() {
			deps.rank = types.Entry{Rank: 3, ID: "WB-7284", DeviationPct: 42.5}
			w := do(h, http.MethodGet, "/rank/WB-7284", "")

			Convey("Then its row is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"rank":3`)
			})
		})

		Convey("When the object is unknown", func() {
			deps.rankErr = repository.ErrNotFound
			w := do(h, http.MethodGet, "/rank/WB-0000", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(errorCode(w), ShouldEqual, "not_found")
			})
		})

		Convey("When fleet health is requested", func() {
			deps.health = model.FleetHealth{Total: 2, Scored: 2, Anomalous: 1, Nominal: 1, AnomalousPct: 50, NominalPct: 50}
			w := do(h, http.MethodGet, "/fleet/health", "")

			Convey("Then the board summary is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"anomalous_pct":50`)
			})
		})
	})
}

func TestRateLimit(t *testing.T) {
	Convey("Given a server limited to a burst of two", t, func() {
		h := newRouter(newMockDependencies(), api.WithRateLimit(0.001, 2))

		Convey("When one client sends three requests", func() {
			codes := make([]int, 3)
			for i := range codes {
				codes[i] = do(h, http.MethodGet, "/stats", "").Code
			}

			Convey("Then the third is refused", func() {
				So(codes[0], ShouldEqual, http.StatusOK)
				So(codes[1], ShouldEqual, http.StatusOK)
				So(codes[2], ShouldEqual, http.StatusTooManyRequests)
			})

			Convey("Then healthz is never limited", func() {
				So(do(h, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)
			})

			Convey("Then another peer has its own bucket", func() {
				req := httptest.NewRequest(http.MethodGet, "/stats", http.NoBody)
				req.RemoteAddr = "198.51.100.20:4242"
				w := httptest.NewRecorder()
				h.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When the client rotates X-Forwarded-For", func() {
			codes := make([]int, 3)
			for i := range codes {
				req := httptest.NewRequest(http.MethodGet, "/stats", http.NoBody)
				req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
				w := httptest.NewRecorder()
				h.ServeHTTP(w, req)
				codes[i] = w.Code
			}

			Convey("Then the header is ignored and the third is refused", func() {
				So(codes[2], ShouldEqual, http.StatusTooManyRequests)
			})
		})
	})

	Convey("Given a limited server behind a trusted proxy", t, func() {
		h := newRouter(newMockDependencies(),
			api.WithRateLimit(0.001, 1),
			api.WithTrustedProxies(netip.MustParsePrefix("192.0.2.0/24")),
		)
		send := func(xff string) int {
			req := httptest.NewRequest(http.MethodGet, "/stats", http.NoBody)
			req.RemoteAddr = "192.0.2.1:5000"
			req.Header.Set("X-Forwarded-For", xff)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			return w.Code
		}

		Convey("When two clients come through the proxy", func() {
			first := send("203.0.113.1")
			second := send("203.0.113.2")
			again := send("203.0.113.1")

			Convey("Then each forwarded client has its own bucket", func() {
				So(first, ShouldEqual, http.StatusOK)
				So(second, ShouldEqual, http.StatusOK)
				So(again, ShouldEqual, http.StatusTooManyRequests)
			})
		})

		Convey("When a client prepends a fake hop", func() {
			So(send("203.0.113.5"), ShouldEqual, http.StatusOK)
			code := send("10.9.9.9, 203.0.113.5")

			Convey("Then the hop the proxy appended is used", func() {
				So(code, ShouldEqual, http.StatusTooManyRequests)
			})
		})
	})
}
