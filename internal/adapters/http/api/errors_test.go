package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/stratowatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestErrorKinds(t *testing.T) {
	Convey("Given the error helpers", t, func() {
		cause := errors.New("unexpected EOF")

		Convey("Then WrapKind keeps both kind and cause", func() {
			err := WrapKind("api.score", ErrBadRequest, cause)
			So(errors.Is(err, ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.score: bad request: unexpected EOF")
		})

		Convey("Then NewKind and Wrap tag the operation", func() {
			So(NewKind("api.rank", ErrMissingObjectID).Error(), ShouldEqual, "api.rank: missing object id")
			So(Wrap("api.rank", cause).Error(), ShouldEqual, "api.rank: unexpected EOF")
			So(Wrap("api.rank", nil), ShouldBeNil)
			So(errors.Is(WrapKind("op", ErrInternal, nil), ErrInternal), ShouldBeTrue)
		})

		Convey("Then status codes map to metric error types", func() {
			So(getErrorType(500), ShouldEqual, "server_error")
			So(getErrorType(429), ShouldEqual, "rate_limit")
			So(getErrorType(413), ShouldEqual, "too_large")
			So(getErrorType(404), ShouldEqual, "not_found")
			So(getErrorType(400), ShouldEqual, "client_error")
			So(getErrorSeverity(503), ShouldEqual, "high")
		})
	})
}

func TestWriteJSON(t *testing.T) {
	Convey("Given a response recorder", t, func() {
		So(logger.Init(), ShouldBeNil)
		w := httptest.NewRecorder()

		Convey("When the value encodes", func() {
			writeJSON(w, http.StatusCreated, map[string]float64{"deviation_pct": 42.5})

			Convey("Then the status and body are written", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Body.String(), ShouldEqual, `{"deviation_pct":42.5}`+"\n")
			})
		})

		Convey("When the value holds a non-finite float", func() {
			writeJSON(w, http.StatusOK, map[string]float64{"deviation_pct": math.Inf(1)})

			Convey("Then it is an internal error with a JSON body", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				var resp errorResponse
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Code, ShouldEqual, "internal_error")
			})
		})
	})
}
