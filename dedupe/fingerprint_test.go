package dedupe

import (
	"testing"
)

func intPtr(v int) *int { return &v }

func basePayload() Payload {
	return Payload{
		Name:         "Shibuya Station North Toilet",
		Lat:          35.658034,
		Lng:          139.701636,
		Address:      "2-1 Dogenzaka, Shibuya",
		BuildingName: "Shibuya Station",
		FloorLevel:   intPtr(2),
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint(basePayload())
	b := Fingerprint(basePayload())
	if a != b {
		t.Fatalf("identical payloads produced different fingerprints: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestFingerprintIgnoresSubMeterCoordinateJitter(t *testing.T) {
	a := basePayload()
	b := basePayload()
	// Differences past the sixth decimal are GPS noise.
	b.Lat += 0.0000004
	b.Lng -= 0.0000004

	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("sub-precision coordinate jitter must not change the fingerprint")
	}
}

func TestFingerprintSensitiveToMeaningfulChanges(t *testing.T) {
	base := Fingerprint(basePayload())

	moved := basePayload()
	moved.Lat += 0.001
	if Fingerprint(moved) == base {
		t.Fatal("a 100m move must change the fingerprint")
	}

	renamed := basePayload()
	renamed.Name = "Shibuya Station South Toilet"
	if Fingerprint(renamed) == base {
		t.Fatal("a different name must change the fingerprint")
	}

	refloored := basePayload()
	refloored.FloorLevel = intPtr(3)
	if Fingerprint(refloored) == base {
		t.Fatal("a different floor must change the fingerprint")
	}
}

func TestFingerprintNilFloorDiffersFromZero(t *testing.T) {
	unknown := basePayload()
	unknown.FloorLevel = nil

	ground := basePayload()
	ground.FloorLevel = intPtr(0)

	if Fingerprint(unknown) == Fingerprint(ground) {
		t.Fatal("unknown floor and ground floor must fingerprint differently")
	}
}
