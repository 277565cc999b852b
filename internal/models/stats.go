package models

// SessionStatistics counts deduplication work over a run
type SessionStatistics struct {
	TotalProcessed  int `json:"total_processed"`
	TotalDuplicates int `json:"total_duplicates"`
}

// DuplicateRate returns duplicates as a percentage of processed items
func (s SessionStatistics) DuplicateRate() float64 {
	if s.TotalProcessed == 0 {
		return 0
	}
	return float64(s.TotalDuplicates) / float64(s.TotalProcessed) * 100
}

// DatasetStats describes the persisted dataset
type DatasetStats struct {
	TotalRows             int            `json:"total_rows"`
	PrincipleDistribution map[string]int `json:"principle_distribution"`
	CategoryDistribution  map[string]int `json:"category_distribution"`
	SeverityDistribution  map[string]int `json:"severity_distribution"`
}
