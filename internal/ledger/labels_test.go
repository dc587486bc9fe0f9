package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

func TestLabelerResolvesKnownAddress(t *testing.T) {
	l := NewLabeler(DefaultKnownAddresses)

	label, pos := l.Resolve("rEb8TK3gBgk5auZkwc6sHnwrGVJH8DuaLh")
	assert.Equal(t, "Binance", label)
	assert.InDelta(t, 35.68, pos.Lat, 1e-9)
	assert.InDelta(t, 139.69, pos.Lng, 1e-9)
}

func TestLabelerUnknownAddressTruncatesAndIsDeterministic(t *testing.T) {
	l := NewLabeler(nil)

	addr := "r9cZA1mLK5R5Am25ArfXFmqgNwjZgnfk59"
	label, pos := l.Resolve(addr)
	assert.Equal(t, "r9cZA1…fk59", label)

	_, again := l.Resolve(addr)
	assert.Equal(t, pos, again, "hash coordinates must be stable per address")

	assert.GreaterOrEqual(t, pos.Lat, -60.0)
	assert.LessOrEqual(t, pos.Lat, 70.0)
	assert.GreaterOrEqual(t, pos.Lng, -180.0)
	assert.LessOrEqual(t, pos.Lng, 180.0)
}

func TestLabelerReplaceSwapsTable(t *testing.T) {
	l := NewLabeler(nil)
	addr := "rTESTaddressAAAAAAAAAAAAAAAAAAAAAA"

	label, _ := l.Resolve(addr)
	assert.Equal(t, TruncateAddress(addr), label)

	l.Replace([]domain.KnownAddress{{Address: addr, Label: "Test Exchange", Lat: 1, Lng: 2}})
	label, pos := l.Resolve(addr)
	assert.Equal(t, "Test Exchange", label)
	assert.Equal(t, domain.LatLng{Lat: 1, Lng: 2}, pos)
}

func TestTruncateAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"rEb8TK3gBgk5auZkwc6sHnwrGVJH8DuaLh", "rEb8TK…uaLh"},
		{"shortaddr", "shortaddr"},
		{"", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, TruncateAddress(tc.in))
	}
}
