package chart

// Data is the chart-type specific payload of a Result: Categorical, Scatter
// or Space.
type Data interface {
	isChartData()
}

// Categorical is one label and one aggregated value per group (bar, line, pie).
type Categorical struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Point is one scatter point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Scatter holds one point per surviving row.
type Scatter []Point

// Space holds three parallel coordinate arrays, one entry per surviving row.
type Space struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
	Z []float64 `json:"z"`
}

func (Categorical) isChartData() {}
func (Scatter) isChartData()     {}
func (Space) isChartData()       {}

// Result is the output of a transform. It is recomputed on demand and never
// persisted; the Specification is what gets stored.
type Result struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Data   Data   `json:"data"`
	Config Config `json:"config"`
}
