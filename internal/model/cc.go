package model

// CC numbers recognized by the real-time automation mapping table (§4.7).
const (
	CCModWheel        uint8 = 1
	CCVolume          uint8 = 7
	CCPan             uint8 = 10
	CCExpression      uint8 = 11
	CCFilterResonance uint8 = 71
	CCFilterCutoff    uint8 = 74
)

// CCParameterNames maps a CC number to the instrument parameter name it
// drives, per the §4.7 table.
var CCParameterNames = map[uint8]string{
	CCModWheel:        "mod_wheel",
	CCVolume:          "volume",
	CCPan:             "pan",
	CCExpression:      "expression",
	CCFilterResonance: "filter_resonance",
	CCFilterCutoff:    "filter_cutoff",
}

// DefaultCCValues is the per-CC fallback used once a lane's playhead is past
// its last point (§4.7).
var DefaultCCValues = map[uint8]float64{
	CCVolume:          127,
	CCPan:              64,
	CCExpression:      127,
	CCFilterCutoff:     64,
	CCFilterResonance:   0,
	CCModWheel:          0,
}

// MapCCValue converts a raw 0-127 CC value into the unit the named
// parameter expects, per the §4.7 mapping column.
func MapCCValue(cc uint8, raw float64) float64 {
	switch cc {
	case CCVolume:
		return raw / 127.0
	case CCPan:
		return (raw - 64.0) / 64.0
	case CCExpression:
		return raw / 127.0
	default: // mod_wheel, filter_resonance, filter_cutoff: raw passthrough
		return raw
	}
}
