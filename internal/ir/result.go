package ir

// ResultRow is one shaped output record.
//
// For merged duplicate locations LocationID is the id of the merged option
// and ObservationID is the id of the first contributing observation.
type ResultRow struct {
	ObservationID   string            `json:"observation_id"`
	LocationID      string            `json:"location_id"`
	GeographicLevel GeographicLevel   `json:"geographic_level"`
	TimePeriod      TimePeriod        `json:"time_period"`
	FilterItemIDs   []string          `json:"filter_item_ids"`
	Measures        map[string]string `json:"measures"`
}
