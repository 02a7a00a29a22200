package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(target string) Params {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
	return FromContext(c)
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		target string
		want   Params
	}{
		{"/", Params{Limit: DefaultLimit}},
		{"/?limit=50&offset=10", Params{Limit: 50, Offset: 10}},
		{"/?limit=500", Params{Limit: MaxLimit}},
		{"/?limit=0", Params{Limit: DefaultLimit}},
		{"/?limit=-3&offset=-5", Params{Limit: DefaultLimit}},
		{"/?limit=ten&offset=x", Params{Limit: DefaultLimit}},
		{"/?offset=100000", Params{Limit: DefaultLimit, Offset: 100000}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if got := paramsFor(tt.target); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewPage(t *testing.T) {
	p := Params{Limit: 2, Offset: 0}
	page := NewPage([]string{"a", "b"}, 5, p)
	if !page.HasMore || page.Total != 5 || len(page.Data) != 2 {
		t.Errorf("unexpected page %+v", page)
	}

	last := NewPage([]string{"e"}, 5, Params{Limit: 2, Offset: 4})
	if last.HasMore {
		t.Error("last page should not have more")
	}
}

func TestNewPage_EmptyDataIsArray(t *testing.T) {
	var items []int
	data, err := json.Marshal(NewPage(items, 0, Params{Limit: DefaultLimit}))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"data":[],"total":0,"limit":20,"offset":0,"has_more":false}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}
