package domain

// TransactionType classifies a raw ledger transaction. Only payments flow
// through the event processor; everything else is dropped at the boundary.
type TransactionType string

const (
	TxPayment TransactionType = "Payment"
	TxOther   TransactionType = "Other"
)

// LedgerTransaction is a single recorded transfer event from the XRP Ledger
// transaction stream. Produced by the upstream feed; the processor only
// derives from it, never mutates it.
type LedgerTransaction struct {
	ID          string          `json:"id"`
	Account     string          `json:"account"`
	Destination string          `json:"destination"`
	Amount      float64         `json:"amount"`
	TimestampMs int64           `json:"timestamp_ms"`
	Type        TransactionType `json:"type"`
	LedgerIndex uint64          `json:"ledger_index"`
}

// ColorWeight classifies an event's visual weight by value magnitude.
type ColorWeight string

const (
	WeightNormal ColorWeight = "normal"
	WeightLarge  ColorWeight = "large"
)

// LatLng is a geographic coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Vec3 is a point in 3-D cartesian space on or above the unit sphere.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// GeoArc is a quadratic Bezier curve between two geographic points, elevated
// above the sphere proportionally to the great-circle distance and sampled
// into a fixed number of segments for rendering.
type GeoArc struct {
	Src      LatLng  `json:"src"`
	Dst      LatLng  `json:"dst"`
	Altitude float64 `json:"altitude"`
	Points   []Vec3  `json:"points"`
}

// ProcessedEvent is the derived, read-only output of the ledger event
// processor: a payment enriched with labels, a render-ready arc, and a
// visual weight. Consumers keep the most recent N in a ring buffer.
type ProcessedEvent struct {
	Transaction LedgerTransaction `json:"transaction"`
	Arc         GeoArc            `json:"arc"`
	SenderLabel string            `json:"sender_label"`
	DestLabel   string            `json:"dest_label"`
	Weight      ColorWeight       `json:"weight"`
}

// KnownAddress maps a ledger address to a human label and a geographic
// location used for arc endpoints.
type KnownAddress struct {
	Address string  `json:"address"`
	Label   string  `json:"label"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}
