package metrics

import "testing"

func TestStatusClass(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{201, "2xx"},
		{204, "2xx"},
		{302, "3xx"},
		{400, "4xx"},
		{404, "4xx"},
		{429, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
		{0, "other"},
		{100, "other"},
	}

	for _, tt := range tests {
		if got := StatusClass(tt.code); got != tt.want {
			t.Errorf("StatusClass(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
