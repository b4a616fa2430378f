package testfleet_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/okian/stratowatch/internal/adapters/http/api"
	service "github.com/okian/stratowatch/internal/app"
	"github.com/okian/stratowatch/internal/domain/model"
	"github.com/okian/stratowatch/internal/domain/scoring"
	"github.com/okian/stratowatch/internal/domain/types"
	"github.com/okian/stratowatch/internal/testfleet"
	"github.com/okian/stratowatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func startServer(ctx context.Context, opts ...service.Option) (*httptest.Server, func()) {
	svc := service.New(append([]service.Option{service.WithWorkerCount(2), service.WithParallelThreshold(16)}, opts...)...)
	if err := svc.Start(ctx); err != nil {
		panic(err)
	}
	r := mux.NewRouter()
	api.NewServer(svc, svc).Register(ctx, r)
	srv := httptest.NewServer(api.Handler(r))
	return srv, func() {
		srv.Close()
		svc.Stop()
	}
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		cfg := &testfleet.Config{
			Objects:   300,
			Levels:    30,
			Seed:      11,
			BatchSize: 50,
			Workers:   3,
			Timeout:   5 * time.Second,
			OutputDir: t.TempDir(),
			Submit:    true,
			Tolerance: 1e-9,
		}

		Convey("When fixtures are submitted with matching settings", func() {
			srv, stop := startServer(ctx)
			defer stop()
			cfg.BaseURL = srv.URL

			stats, err := testfleet.Run(ctx, cfg)

			Convey("Then every batch verifies", func() {
				So(err, ShouldBeNil)
				So(stats.BatchesSubmitted, ShouldEqual, 6)
				So(stats.BatchesFailed, ShouldEqual, 0)
				So(stats.ResultsVerified+stats.ErrorsVerified, ShouldEqual, 300)
				So(stats.Mismatches, ShouldEqual, 0)
			})

			Convey("Then the fixture files are written", func() {
				data, err := os.ReadFile(filepath.Join(cfg.OutputDir, testfleet.FleetFile))
				So(err, ShouldBeNil)
				var fleet struct {
					Objects []model.TrackedObject `json:"objects"`
				}
				So(json.Unmarshal(data, &fleet), ShouldBeNil)
				So(fleet.Objects, ShouldResemble, testfleet.GenerateFleet(11, 300))

				_, err = os.Stat(filepath.Join(cfg.OutputDir, testfleet.SoundingFile))
				So(err, ShouldBeNil)
			})
		})

		Convey("When the service uses a different threshold", func() {
			srv, stop := startServer(ctx, service.WithScoringOptions(scoring.WithThreshold(1000)))
			defer stop()
			cfg.BaseURL = srv.URL

			stats, err := testfleet.Run(ctx, cfg)

			Convey("Then the run reports mismatches", func() {
				So(errors.Is(err, testfleet.ErrVerification), ShouldBeTrue)
				So(stats.Mismatches, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the service is unreachable", func() {
			cfg.BaseURL = "http://127.0.0.1:1"
			cfg.OutputDir = ""

			_, err := testfleet.Run(ctx, cfg)

			Convey("Then the health check fails", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "health check")
			})
		})
	})

	Convey("Given a config with nothing to do", t, func() {
		_, err := testfleet.Run(context.Background(), &testfleet.Config{Objects: 10, Levels: 5})

		Convey("Then it is rejected", func() {
			So(errors.Is(err, testfleet.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestVerifyBoardOrder(t *testing.T) {
	Convey("Given board rows", t, func() {
		Convey("When they are correctly ranked with a tie", func() {
			rows := []types.Entry{
				{Rank: 1, ID: "a", DeviationPct: 50},
				{Rank: 2, ID: "b", DeviationPct: 20},
				{Rank: 2, ID: "c", DeviationPct: 20},
				{Rank: 4, ID: "d", DeviationPct: 5},
			}

			Convey("Then nothing is reported", func() {
				So(testfleet.VerifyBoardOrder(rows), ShouldBeEmpty)
			})
		})

		Convey("When they are out of order", func() {
			rows := []types.Entry{
				{Rank: 1, ID: "a", DeviationPct: 5},
				{Rank: 2, ID: "b", DeviationPct: 20},
			}

			Convey("Then the order is reported", func() {
				So(testfleet.VerifyBoardOrder(rows), ShouldNotBeEmpty)
			})
		})
	})
}
