package lighttime

import "maps"

// AncillaryKey names a value in AncillarySettings.
type AncillaryKey string

// Well-known ancillary keys. Only RetransmissionDelays is read by the solver.
const (
	RetransmissionDelays   AncillaryKey = "retransmission_delays"
	DopplerIntegrationTime AncillaryKey = "doppler_integration_time"
	FrequencyBands         AncillaryKey = "frequency_bands"
)

// AncillarySettings is a named store of scalar and vector settings that
// accompany an observation. The zero value is ready to use; not safe for
// concurrent writes.
type AncillarySettings struct {
	doubles map[AncillaryKey]float64
	vectors map[AncillaryKey][]float64
}

// NewAncillarySettings returns an empty store.
func NewAncillarySettings() *AncillarySettings {
	return &AncillarySettings{}
}

// SetDouble stores a scalar.
func (a *AncillarySettings) SetDouble(key AncillaryKey, v float64) {
	if a.doubles == nil {
		a.doubles = make(map[AncillaryKey]float64)
	}
	a.doubles[key] = v
}

// Double returns a scalar and whether it was present.
func (a *AncillarySettings) Double(key AncillaryKey) (float64, bool) {
	if a == nil {
		return 0, false
	}
	v, ok := a.doubles[key]
	return v, ok
}

// SetDoubleVector stores a copy of v.
func (a *AncillarySettings) SetDoubleVector(key AncillaryKey, v []float64) {
	if a.vectors == nil {
		a.vectors = make(map[AncillaryKey][]float64)
	}
	a.vectors[key] = append([]float64(nil), v...)
}

// DoubleVector returns a copy of a stored vector and whether it was present.
func (a *AncillarySettings) DoubleVector(key AncillaryKey) ([]float64, bool) {
	if a == nil {
		return nil, false
	}
	v, ok := a.vectors[key]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), v...), true
}

// Clone returns an independent copy.
func (a *AncillarySettings) Clone() *AncillarySettings {
	if a == nil {
		return nil
	}
	out := &AncillarySettings{doubles: maps.Clone(a.doubles)}
	for k, v := range a.vectors {
		out.SetDoubleVector(k, v)
	}
	return out
}
