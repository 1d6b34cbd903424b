package types_test

import (
	"testing"

	types "github.com/okian/arena/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSortField(t *testing.T) {
	Convey("Given sort field names", t, func() {
		Convey("Then only leaderboard columns are valid", func() {
			So(types.SortAverageScore.Valid(), ShouldBeTrue)
			So(types.SortTotalScore.Valid(), ShouldBeTrue)
			So(types.SortSubmissionCount.Valid(), ShouldBeTrue)
			So(types.SortDisplayName.Valid(), ShouldBeTrue)
			So(types.SortField("position").Valid(), ShouldBeFalse)
			So(types.SortField("").Valid(), ShouldBeFalse)
		})
	})
}
