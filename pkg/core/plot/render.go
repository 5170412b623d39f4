package plot

import (
	"encoding/json"
	"io"
)

// Renderer draws a resolved chart.
type Renderer interface {
	Render(w io.Writer, c *Chart) error
}

// JSONRenderer writes the chart as JSON for a browser-side charting library.
type JSONRenderer struct{}

func (JSONRenderer) Render(w io.Writer, c *Chart) error {
	return json.NewEncoder(w).Encode(c)
}
