package instrumentation

import "testing"

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/deals", "/deals"},
		{"/deals/123", "/deals/:id"},
		{"/v1/deals/123", "/v1/deals/:id"},
		{"/pipelines/7/stages", "/pipelines/:id/stages"},
		{"/stages?pipeline_id=3&page=2", "/stages"},
		{"/deals/abc", "/deals/abc"},
		{"", StatusUnknown},
		{"?show=1", StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := NormalizeEndpoint(tt.path); got != tt.want {
				t.Errorf("NormalizeEndpoint(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestStatusCodeLabel(t *testing.T) {
	if got := StatusCodeLabel(200); got != "200" {
		t.Errorf("StatusCodeLabel(200) = %q", got)
	}
	if got := StatusCodeLabel(0); got != StatusError {
		t.Errorf("StatusCodeLabel(0) = %q, want %q", got, StatusError)
	}
}
