package matching_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/rollcall/internal/domain/matching"
	"github.com/okian/rollcall/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func sample(id, externalID, name string, v ...float32) model.EnrollmentSample {
	return model.EnrollmentSample{SampleID: id, ExternalID: externalID, DisplayName: name, Embedding: v}
}

func TestDistance(t *testing.T) {
	Convey("Given two embeddings", t, func() {
		Convey("Then distance is the Euclidean norm of the difference", func() {
			So(matching.Distance(model.Embedding{0, 0, 0}, model.Embedding{0, 0, 5}), ShouldEqual, 5)
			So(matching.Distance(model.Embedding{1, 2}, model.Embedding{4, 6}), ShouldEqual, 5)
		})

		Convey("Then distance is symmetric and non-negative", func() {
			a, b := model.Embedding{0.3, -1.2, 7}, model.Embedding{-2, 0.5, 1}
			So(matching.Distance(a, b), ShouldEqual, matching.Distance(b, a))
			So(matching.Distance(a, a), ShouldEqual, 0)
		})
	})

	Convey("Given normalization", t, func() {
		Convey("Then vectors are scaled to unit length", func() {
			n := matching.Normalize(model.Embedding{3, 4})
			So(matching.Norm(n), ShouldAlmostEqual, 1, 1e-6)
			So(n[0], ShouldAlmostEqual, 0.6, 1e-6)
		})

		Convey("Then the zero vector is left unchanged", func() {
			So(matching.Normalize(model.Embedding{0, 0}), ShouldResemble, model.Embedding{0, 0})
		})
	})
}

func TestMatcher_Match(t *testing.T) {
	Convey("Given a raw-unit matcher with threshold 20 and D=3", t, func() {
		m := matching.NewMatcher(matching.WithThreshold(20), matching.WithNormalize(false))
		catalog := []model.EnrollmentSample{sample("a", "S1", "Student One", 0, 0, 0)}

		Convey("When the query is 5 units away", func() {
			res, err := m.Match(model.Embedding{0, 0, 5}, catalog)

			Convey("Then S1 is matched", func() {
				So(err, ShouldBeNil)
				So(res.Matched, ShouldBeTrue)
				So(res.ExternalID, ShouldEqual, "S1")
				So(res.DisplayName, ShouldEqual, "Student One")
				So(res.Distance, ShouldEqual, 5)
			})
		})

		Convey("When the query is exactly at the threshold", func() {
			res, err := m.Match(model.Embedding{0, 0, 20}, catalog)

			Convey("Then it is rejected because the bound is exclusive", func() {
				So(err, ShouldBeNil)
				So(res.Matched, ShouldBeFalse)
				So(res.ExternalID, ShouldBeEmpty)
				So(res.Distance, ShouldEqual, 20)
			})
		})

		Convey("When no sample is within threshold", func() {
			res, _ := m.Match(model.Embedding{100, 0, 0}, catalog)

			Convey("Then there is no match", func() {
				So(res.Matched, ShouldBeFalse)
			})
		})

		Convey("When the catalog is empty", func() {
			res, err := m.Match(model.Embedding{0, 0, 0}, nil)

			Convey("Then there is no match and no error", func() {
				So(err, ShouldBeNil)
				So(res.Matched, ShouldBeFalse)
				So(math.IsInf(res.Distance, 1), ShouldBeTrue)
			})
		})

		Convey("When the query dimension differs from the catalog", func() {
			_, err := m.Match(model.Embedding{0, 0}, catalog)

			Convey("Then a dimension mismatch is reported", func() {
				So(errors.Is(err, model.ErrDimensionMismatch), ShouldBeTrue)
			})
		})
	})

	Convey("Given identities with several samples", t, func() {
		m := matching.NewMatcher(matching.WithThreshold(3), matching.WithNormalize(false))
		catalog := []model.EnrollmentSample{
			sample("a1", "A", "Alice", 10, 0, 0),
			sample("b1", "B", "Bob", 2, 0, 0),
			sample("a2", "A", "Alice", 0.5, 0, 0),
			sample("b2", "B", "Bob", 30, 0, 0),
		}

		Convey("When the query is closest to Alice's second sample", func() {
			res, err := m.Match(model.Embedding{0, 0, 0}, catalog)

			Convey("Then the per-identity minimum decides, not the first sample", func() {
				So(err, ShouldBeNil)
				So(res.Matched, ShouldBeTrue)
				So(res.ExternalID, ShouldEqual, "A")
				So(res.Distance, ShouldEqual, 0.5)
				So(res.Identities, ShouldEqual, 2)
			})
		})

		Convey("When only one identity falls within threshold", func() {
			res, _ := m.Match(model.Embedding{2, 0, 0}, []model.EnrollmentSample{
				sample("a1", "A", "Alice", 10, 0, 0),
				sample("b1", "B", "Bob", 2.5, 0, 0),
			})

			Convey("Then that identity is returned", func() {
				So(res.ExternalID, ShouldEqual, "B")
			})
		})
	})

	Convey("Given two identities at exactly equal distance", t, func() {
		m := matching.NewMatcher(matching.WithThreshold(5), matching.WithNormalize(false))
		catalog := []model.EnrollmentSample{
			sample("a", "A", "Alice", 1, 0),
			sample("b", "B", "Bob", -1, 0),
		}

		Convey("Then matching does not fail and is deterministic", func() {
			first, err := m.Match(model.Embedding{0, 0}, catalog)
			So(err, ShouldBeNil)
			So(first.Matched, ShouldBeTrue)
			So([]string{"A", "B"}, ShouldContain, first.ExternalID)
			for i := 0; i < 20; i++ {
				again, _ := m.Match(model.Embedding{0, 0}, catalog)
				So(again.ExternalID, ShouldEqual, first.ExternalID)
			}
		})
	})

	Convey("Given a catalog where the first identity has a NaN component", t, func() {
		m := matching.NewMatcher(matching.WithThreshold(20), matching.WithNormalize(false))
		nan := float32(math.NaN())
		catalog := []model.EnrollmentSample{
			sample("bad", "BAD", "Broken", nan, 0, 0),
			sample("s2", "S2", "Student Two", 0, 0, 0),
		}

		Convey("Then the finite identity still matches", func() {
			res, err := m.Match(model.Embedding{0, 0, 0}, catalog)
			So(err, ShouldBeNil)
			So(res.Matched, ShouldBeTrue)
			So(res.ExternalID, ShouldEqual, "S2")
			So(res.Distance, ShouldEqual, 0.0)
		})

		Convey("Then a normalizing matcher skips it too", func() {
			norm := matching.NewMatcher(matching.WithThreshold(0.5))
			res, err := norm.Match(model.Embedding{1, 0, 0}, []model.EnrollmentSample{
				sample("bad", "BAD", "Broken", nan, 0, 0),
				sample("s2", "S2", "Student Two", 2, 0, 0),
			})
			So(err, ShouldBeNil)
			So(res.ExternalID, ShouldEqual, "S2")
		})

		Convey("Then a catalog of only broken samples matches nothing", func() {
			res, err := m.Match(model.Embedding{0, 0, 0}, catalog[:1])
			So(err, ShouldBeNil)
			So(res.Matched, ShouldBeFalse)
			So(math.IsInf(res.Distance, 1), ShouldBeTrue)
		})
	})

	Convey("Given a normalizing matcher", t, func() {
		m := matching.NewMatcher(matching.WithThreshold(0.5))
		catalog := []model.EnrollmentSample{
			sample("a", "A", "Alice", 10, 0),
			sample("b", "B", "Bob", 0, 10),
		}

		Convey("When the query points the same way as Alice at a different scale", func() {
			res, err := m.Match(model.Embedding{0.1, 0.01}, catalog)

			Convey("Then scale is ignored and Alice matches", func() {
				So(err, ShouldBeNil)
				So(m.Normalizes(), ShouldBeTrue)
				So(res.ExternalID, ShouldEqual, "A")
				So(res.Distance, ShouldBeLessThan, 0.5)
			})
		})

		Convey("When the query is orthogonal to both", func() {
			res, _ := m.Match(model.Embedding{1, -1}, []model.EnrollmentSample{sample("a", "A", "Alice", 1, 1)})

			Convey("Then the unit distance is sqrt(2) and nothing matches", func() {
				So(res.Distance, ShouldAlmostEqual, math.Sqrt2, 1e-6)
				So(res.Matched, ShouldBeFalse)
			})
		})
	})

	Convey("Given matcher options", t, func() {
		Convey("Then defaults apply", func() {
			m := matching.NewMatcher()
			So(m.Threshold(), ShouldEqual, 1.0)
			So(m.Normalizes(), ShouldBeTrue)
		})

		Convey("Then invalid thresholds are ignored", func() {
			So(matching.NewMatcher(matching.WithThreshold(-1)).Threshold(), ShouldEqual, 1.0)
			So(matching.NewMatcher(matching.WithThreshold(math.NaN())).Threshold(), ShouldEqual, 1.0)
		})
	})
}
