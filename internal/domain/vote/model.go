package vote

type Result struct {
	OptionID   string  `json:"option_id"`
	Title      string  `json:"title"`
	Votes      int64   `json:"votes"`
	Percentage float64 `json:"percentage"`
	Winner     bool    `json:"winner"`
}
