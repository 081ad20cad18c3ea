package postgres_test

import (
	"context"
	"errors"
	"testing"

	repository "github.com/okian/bookrec/internal/adapters/repository"
	postgres "github.com/okian/bookrec/internal/adapters/repository/postgres"
	. "github.com/smartystreets/goconvey/convey"
)

func TestOpen(t *testing.T) {
	Convey("Given an empty DSN", t, func() {
		s, err := postgres.Open(context.Background(), "")

		Convey("Then it should fail before connecting", func() {
			So(s, ShouldBeNil)
			So(errors.Is(err, repository.ErrMissingDSN), ShouldBeTrue)
		})
	})
}
