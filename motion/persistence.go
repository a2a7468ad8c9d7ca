package motion

// PersistenceStore is the platform's key/value interface for filesystem-
// backed persistence. The schema is forward-compatible (consumers ignore
// unknown fields), and the motion package only ever exchanges opaque JSON
// bytes through it — daily statistics files, the preset playlist, and the
// sequence program all live behind the same three method pairs.
type PersistenceStore interface {
	SaveStats(data []byte) error
	LoadStats() ([]byte, error)

	SaveSequenceProgram(data []byte) error
	LoadSequenceProgram() ([]byte, error)

	SavePresets(data []byte) error
	LoadPresets() ([]byte, error)
}

// StatsRecord is the daily statistics file's JSON shape.
type StatsRecord struct {
	TotalDistanceSteps int64 `json:"total_distance_steps"`
}

// Preset is one named, reusable motion configuration a user can apply by
// name, stored in the preset playlist file.
type Preset struct {
	Name  string              `json:"name"`
	VAET  *MotionConfig       `json:"vaet,omitempty"`
	Osc   *OscillationConfig  `json:"oscillation,omitempty"`
	Chaos *ChaosRuntimeConfig `json:"chaos,omitempty"`
}
