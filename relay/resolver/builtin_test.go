package resolver

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBuiltinTableIsWellFormed(t *testing.T) {
	Convey("builtin model table", t, func() {
		ids := BuiltinModels()
		So(ids, ShouldNotBeEmpty)

		for _, id := range ids {
			upstream, ok := BuiltinUpstream(id)
			So(ok, ShouldBeTrue)
			// Baked-in targets are plain foundation-model ids: no region
			// prefix, no tag, so callers can decorate them freely.
			So(upstream, ShouldStartWith, "anthropic.")
			So(stripDecorations(upstream), ShouldEqual, upstream)
			So(strings.Contains(upstream, "#"), ShouldBeFalse)
		}
	})
}
