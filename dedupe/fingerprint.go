package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"
)

// Payload defines a public type used by sessionguard APIs.
//
// Payload carries the fields of a toilet submission that identify it
// semantically. FloorLevel is optional; nil means ground-truth unknown and
// fingerprints as the empty string.
type Payload struct {
	Name         string
	Lat          float64
	Lng          float64
	Address      string
	BuildingName string
	FloorLevel   *int
}

// Check defines a public type used by sessionguard APIs.
//
// Check is the outcome of a duplicate probe. ExistingID and Age are only
// meaningful when Duplicate is true.
type Check struct {
	Duplicate  bool
	ExistingID string
	Age        time.Duration
}

// Store defines a public type used by sessionguard APIs.
//
// Store tracks recent submissions by fingerprint. Implementations must treat
// Record as an upsert and are free to evict entries older than their
// retention window.
type Store interface {
	IsDuplicate(ctx context.Context, p Payload, window time.Duration) (Check, error)
	Record(ctx context.Context, p Payload, submissionID string) error
}

// coordinatePrecision is decimal places kept when rounding coordinates.
// Six places is roughly 11 cm, well below GPS jitter.
const coordinatePrecision = 6

type canonicalPayload struct {
	Name     string `json:"name"`
	Coords   string `json:"coords"`
	Address  string `json:"address"`
	Building string `json:"building"`
	Floor    string `json:"floor"`
}

// Fingerprint derives the deterministic duplicate-detection key for p.
func Fingerprint(p Payload) string {
	floor := ""
	if p.FloorLevel != nil {
		floor = strconv.Itoa(*p.FloorLevel)
	}
	canonical := canonicalPayload{
		Name:     p.Name,
		Coords:   formatCoord(p.Lat) + "," + formatCoord(p.Lng),
		Address:  p.Address,
		Building: p.BuildingName,
		Floor:    floor,
	}
	// Struct field order fixes the key order; json.Marshal cannot fail here.
	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', coordinatePrecision, 64)
}
