package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextFor(target string) echo.Context {
	e := echo.New()
	return e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "/", DefaultLimit, 0},
		{"custom values", "/?limit=50&offset=10", 50, 10},
		{"max limit", "/?limit=500", MaxLimit, 0},
		{"negative offset", "/?offset=-5", DefaultLimit, 0},
		{"garbage", "/?limit=abc&offset=xyz", DefaultLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := FromContext(contextFor(tt.target))
			if p.Limit != tt.wantLimit {
				t.Errorf("expected limit %d, got %d", tt.wantLimit, p.Limit)
			}
			if p.Offset != tt.wantOffset {
				t.Errorf("expected offset %d, got %d", tt.wantOffset, p.Offset)
			}
		})
	}
}

func TestNewResponse(t *testing.T) {
	data := []string{"a", "b"}
	r := NewResponse(data, 10, Params{Limit: 2, Offset: 4}, "/api/v1/runs")

	if r.Total != 10 || r.Limit != 2 || r.Offset != 4 {
		t.Errorf("unexpected response %+v", r)
	}
	if !r.HasMore {
		t.Error("expected HasMore to be true")
	}
	if r.Next != "/api/v1/runs?offset=6&limit=2" {
		t.Errorf("unexpected next link %q", r.Next)
	}
	if r.Previous != "/api/v1/runs?offset=2&limit=2" {
		t.Errorf("unexpected previous link %q", r.Previous)
	}
}

func TestNewResponse_SinglePage(t *testing.T) {
	r := NewResponse(nil, 3, Params{Limit: 20}, "/api/v1/runs")
	if r.HasMore || r.Next != "" || r.Previous != "" {
		t.Errorf("expected no links for a single page, got %+v", r)
	}
}

func TestParams_Offsets(t *testing.T) {
	p := Params{Limit: 10, Offset: 5}
	if p.NextOffset() != 15 {
		t.Errorf("expected next offset 15, got %d", p.NextOffset())
	}
	if p.PreviousOffset() != 0 {
		t.Errorf("expected previous offset clamped to 0, got %d", p.PreviousOffset())
	}
	if !p.HasPrevious() {
		t.Error("expected HasPrevious to be true")
	}
	if p.HasNext(15) {
		t.Error("expected HasNext to be false at the end")
	}
}
