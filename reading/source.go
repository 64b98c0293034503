package reading

import "github.com/google/uuid"

// Source identifies the radio emitter a reading was taken against.
// FrequencyHz is the carrier frequency used by the isotropic path-loss
// model; it must be positive for RSSI readings to be usable.
type Source struct {
	ID          string
	FrequencyHz float64
}

// NewSource creates a source with a globally unique identity. IDs are
// UUIDs so readings recorded across runs and databases never collide.
func NewSource(frequencyHz float64) Source {
	return Source{
		ID:          "src_" + uuid.NewString(),
		FrequencyHz: frequencyHz,
	}
}
