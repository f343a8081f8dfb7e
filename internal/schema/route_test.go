package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteOf(t *testing.T) {
	testCases := []struct {
		desc   string
		kind   Kind
		action Action
	}{
		{desc: "add", kind: KindOBA, action: ActionWrite},
		{desc: "fill", kind: KindOBF, action: ActionWrite},
		{desc: "cancel", kind: KindOBC, action: ActionWrite},
		{desc: "delete", kind: KindOBD, action: ActionWrite},
		{desc: "obb", kind: KindOBB, action: ActionWrite},
		{desc: "replace", kind: KindOBR, action: ActionReplace},
		{desc: "unknown", kind: Kind("xyz"), action: ActionUnhandled},
		{desc: "empty", kind: Kind(""), action: ActionUnhandled},
		{desc: "case sensitive", kind: Kind("OBA"), action: ActionUnhandled},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			r := RouteOf(tc.kind)
			assert.Equal(t, tc.action, r.Action)
			if tc.action == ActionUnhandled {
				assert.Empty(t, r.Measurement)
			} else {
				assert.Equal(t, MeasurementOrderBook, r.Measurement)
			}
		})
	}
}

func TestEffectiveOrderID(t *testing.T) {
	assert.Equal(t, "ID1", Event{Kind: KindOBA, OrderID: "ID1"}.EffectiveOrderID())
	assert.Equal(t, "N1", Event{Kind: KindOBR, OrderID: "ID1", NewID: "N1", HasNewID: true}.EffectiveOrderID())
	assert.Equal(t, "", Event{Kind: KindOBR, OrderID: "ID1"}.EffectiveOrderID())
}

func TestKnownKindsAreRouted(t *testing.T) {
	for _, k := range KnownKinds() {
		assert.NotEqual(t, ActionUnhandled, RouteOf(k).Action, k)
	}
}
