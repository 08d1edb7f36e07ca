package usage

import (
	"fmt"
	"reflect"
	"testing"
)

func TestTopEndpoints_RanksByCountThenName(t *testing.T) {
	counts := map[string]string{
		"GET /students":       "40",
		"POST /attendance":    "55",
		"GET /stats/today":    "40",
		"DELETE /students/S1": "3",
	}

	got := topEndpoints(counts, 10)

	want := []EndpointCount{
		{Endpoint: "POST /attendance", Count: 55},
		{Endpoint: "GET /stats/today", Count: 40},
		{Endpoint: "GET /students", Count: 40},
		{Endpoint: "DELETE /students/S1", Count: 3},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("topEndpoints = %v, want %v", got, want)
	}
}

func TestTopEndpoints_CapsAtLimit(t *testing.T) {
	counts := make(map[string]string)
	for i := 0; i < 15; i++ {
		counts[fmt.Sprintf("GET /students/S%02d", i)] = fmt.Sprintf("%d", i+1)
	}

	got := topEndpoints(counts, 10)

	if len(got) != 10 {
		t.Fatalf("len = %d, want 10", len(got))
	}
	if got[0].Count != 15 {
		t.Errorf("busiest count = %d, want 15", got[0].Count)
	}
	if got[9].Count != 6 {
		t.Errorf("tenth count = %d, want 6", got[9].Count)
	}
}

func TestTopEndpoints_UnparsableCountIsZero(t *testing.T) {
	counts := map[string]string{
		"GET /students": "oops",
		"GET /health":   "2",
	}

	got := topEndpoints(counts, 10)

	want := []EndpointCount{
		{Endpoint: "GET /health", Count: 2},
		{Endpoint: "GET /students", Count: 0},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("topEndpoints = %v, want %v", got, want)
	}
}
