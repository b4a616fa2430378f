package service_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	service "github.com/okian/stratowatch/internal/app"
	"github.com/okian/stratowatch/internal/domain/model"
	"github.com/okian/stratowatch/internal/domain/scoring"
	"github.com/okian/stratowatch/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// syntheticFleet builds n objects with a few invalid and repeated members.
func syntheticFleet(n int, seed uint64) []model.TrackedObject {
	r := rand.New(rand.NewPCG(seed, seed+1))
	fleet := make([]model.TrackedObject, n)
	for i := range fleet {
		lat := -60 + r.Float64()*120
		lon := -170 + r.Float64()*340
		fleet[i] = model.TrackedObject{
			ID:            fmt.Sprintf("WB-%04d", i),
			Observed:      pt(lat+r.NormFloat64()*0.2, lon+r.NormFloat64()*0.2),
			Predicted:     pt(lat, lon),
			UncertaintyKm: 5 + r.Float64()*60,
		}
		switch i % 50 {
		case 7:
			fleet[i].UncertaintyKm = 0
		case 19:
			fleet[i].Observed.Lat = 95
		case 33:
			fleet[i].ID = fleet[i-1].ID
		}
	}
	return fleet
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service that fans out from eight objects", t, func() {
		svc := service.New(
			service.WithWorkerCount(4),
			service.WithQueueSize(64),
			service.WithParallelThreshold(8),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		fleet := syntheticFleet(1000, 2026)

		Convey("When a fleet larger than the queue is scored", func() {
			got, err := svc.ScoreFleet(ctx, fleet)

			Convey("Then the report equals sequential scoring", func() {
				So(err, ShouldBeNil)
				seq := scoring.New().ScoreFleet(fleet)
				want := types.NewFleetReport(seq, scoring.Summarize(seq))
				So(got.Health, ShouldResemble, want.Health)
				So(got.Results, ShouldResemble, want.Results)
				So(got.Errors, ShouldResemble, want.Errors)
			})

			Convey("Then the board holds one row per distinct valid object", func() {
				h, err := svc.FleetHealth(ctx)
				So(err, ShouldBeNil)
				So(h.Scored, ShouldEqual, got.Health.Scored)
				So(svc.GetStats()["boardEntries"], ShouldEqual, got.Health.Scored)

				top, err := svc.TopN(ctx, 5)
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 5)
				for i := 1; i < len(top); i++ {
					So(top[i-1].DeviationPct, ShouldBeGreaterThanOrEqualTo, top[i].DeviationPct)
				}
			})
		})

		Convey("When fleets are scored concurrently", func() {
			errs := make(chan error, 4)
			for i := 0; i < 4; i++ {
				go func(seed uint64) {
					_, err := svc.ScoreFleet(ctx, syntheticFleet(200, seed))
					errs <- err
				}(uint64(i))
			}

			Convey("Then each call completes", func() {
				for i := 0; i < 4; i++ {
					So(<-errs, ShouldBeNil)
				}
			})
		})
	})
}
