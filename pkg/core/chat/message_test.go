package chat

import (
	"errors"
	"testing"

	"balance_sheet_analyzer/pkg/core/plot"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Envelope
		wantErr bool
	}{
		{name: "message only", raw: `{"message":"Revenue rose."}`, want: Envelope{Message: "Revenue rose."}},
		{
			name: "plot only",
			raw:  "```json\n{\"plot_request\":{\"type\":\"line\",\"metric\":\"Net Profit\",\"title\":\"NP\"}}\n```",
			want: Envelope{PlotRequest: &plot.Directive{Type: plot.Line, Metric: "Net Profit", Title: "NP"}},
		},
		{name: "empty object", raw: `{}`, want: Envelope{}},
		{name: "null plot", raw: `{"plot_request":null}`, want: Envelope{}},
		{name: "unknown field", raw: `{"message":"x","chart":1}`, wantErr: true},
		{name: "trailing data", raw: `{"message":"x"} extra`, wantErr: true},
		{name: "array", raw: `[{"message":"x"}]`, wantErr: true},
		{name: "prose", raw: `Sure, here it is`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEnvelope(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedReply) {
					t.Fatalf("err = %v, want ErrMalformedReply", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEnvelope: %v", err)
			}
			if got.Message != tt.want.Message {
				t.Errorf("Message = %q, want %q", got.Message, tt.want.Message)
			}
			if (got.PlotRequest == nil) != (tt.want.PlotRequest == nil) {
				t.Fatalf("PlotRequest = %+v, want %+v", got.PlotRequest, tt.want.PlotRequest)
			}
			if got.PlotRequest != nil && *got.PlotRequest != *tt.want.PlotRequest {
				t.Errorf("PlotRequest = %+v, want %+v", *got.PlotRequest, *tt.want.PlotRequest)
			}
		})
	}
}

func TestAssistantMessageTextProjection(t *testing.T) {
	m := AssistantMessage(Envelope{Message: "See chart", PlotRequest: &plot.Directive{Type: plot.Growth, Metric: "Total Assets"}})
	if m.Role != RoleAssistant || m.Text != "See chart" || m.Envelope.PlotRequest == nil {
		t.Errorf("message = %+v", m)
	}
}
