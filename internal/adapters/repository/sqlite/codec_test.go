package sqlite

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEmbeddingCodec(t *testing.T) {
	Convey("Given an embedding with edge values", t, func() {
		in := model.Embedding{0, -1, 1.5, math.MaxFloat32, math.SmallestNonzeroFloat32}
		buf := encodeEmbedding(in)

		Convey("Then it packs four bytes per component and decodes exactly", func() {
			So(len(buf), ShouldEqual, 4*len(in))
			out, err := decodeEmbedding(buf, len(in))
			So(err, ShouldBeNil)
			So([]float32(out), ShouldResemble, []float32(in))
		})

		Convey("Then a length mismatch is rejected", func() {
			_, err := decodeEmbedding(buf[:7], len(in))
			So(errors.Is(err, repository.ErrInvalidEmbedding), ShouldBeTrue)
		})
	})
}
