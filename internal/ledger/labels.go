package ledger

import (
	"hash/fnv"
	"sync"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

// DefaultKnownAddresses seeds the label table with well-known exchange and
// issuer accounts. The postgres migration carries the same rows; this copy
// keeps the globe labeled when no store is configured.
var DefaultKnownAddresses = []domain.KnownAddress{
	{Address: "rEb8TK3gBgk5auZkwc6sHnwrGVJH8DuaLh", Label: "Binance", Lat: 35.68, Lng: 139.69},
	{Address: "rLNaPoKeeBjZe2qs6x52yVPZpZ8td4dc6w", Label: "Bitstamp", Lat: 46.05, Lng: 14.51},
	{Address: "rDsbeomae4FXwgQTJp9Rs64Qg9vDiTCdBv", Label: "Bitfinex", Lat: 22.28, Lng: 114.16},
	{Address: "rLHzPsX6oXkzU2qL12kHCH8G8cnZv1rBJh", Label: "Kraken", Lat: 37.77, Lng: -122.42},
	{Address: "rhWtqyjMbuRPmBDDOM3RTVKKprCyMSMMjt", Label: "Coinbase", Lat: 37.77, Lng: -122.42},
	{Address: "rUobSiUpHCupFqpvsyAKv3jZzMVOk6iFpK", Label: "Upbit", Lat: 37.57, Lng: 126.98},
	{Address: "rLzxZKQbXhcGaFbSLM3ivKtZGZN1TvDEUX", Label: "Bithumb", Lat: 37.57, Lng: 126.98},
	{Address: "rPVMhWBsfF9iMXYj3aAzJVkPDTFNSyWdKy", Label: "Gate.io", Lat: 1.35, Lng: 103.82},
	{Address: "rhub8VRN55s94qWKDv6jmDy1pUykJzF3wq", Label: "GateHub", Lat: 46.05, Lng: 14.51},
	{Address: "rHcFoo6a9qT5NHiVn1THQRhsEGcxtYCV4d", Label: "Ripple", Lat: 37.77, Lng: -122.42},
}

// Labeler resolves account addresses to display labels and globe
// coordinates. Known addresses come from the table; everything else gets a
// truncated label and a deterministic hash-derived coordinate so the same
// account always lands on the same spot.
type Labeler struct {
	mu    sync.RWMutex
	known map[string]domain.KnownAddress
}

// NewLabeler creates a Labeler over the given table. Pass
// DefaultKnownAddresses when no store-backed table is available.
func NewLabeler(known []domain.KnownAddress) *Labeler {
	l := &Labeler{known: make(map[string]domain.KnownAddress, len(known))}
	l.Replace(known)
	return l
}

// Replace swaps the known-address table. Used on periodic store refresh.
func (l *Labeler) Replace(known []domain.KnownAddress) {
	m := make(map[string]domain.KnownAddress, len(known))
	for _, k := range known {
		m[k.Address] = k
	}
	l.mu.Lock()
	l.known = m
	l.mu.Unlock()
}

// Resolve returns the label and coordinate for an address.
func (l *Labeler) Resolve(addr string) (string, domain.LatLng) {
	l.mu.RLock()
	k, ok := l.known[addr]
	l.mu.RUnlock()
	if ok {
		return k.Label, domain.LatLng{Lat: k.Lat, Lng: k.Lng}
	}
	return TruncateAddress(addr), hashCoord(addr)
}

// TruncateAddress shortens an address for display: first six characters, an
// ellipsis, last four.
func TruncateAddress(addr string) string {
	if len(addr) <= 11 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

// hashCoord derives a stable pseudo-location from an address. Latitude is
// kept between 60S and 70N so arcs stay off the poles.
func hashCoord(addr string) domain.LatLng {
	h := fnv.New64a()
	h.Write([]byte(addr))
	v := h.Sum64()
	lat := -60 + float64(v%131)
	lng := -180 + float64((v/131)%360)
	return domain.LatLng{Lat: lat, Lng: lng}
}
