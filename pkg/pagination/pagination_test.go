package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(t *testing.T, target string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(newContext(t, "/"))

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := FromContext(newContext(t, "/?limit=50&offset=10"))

	if p.Limit != 50 {
		t.Errorf("expected limit 50, got %d", p.Limit)
	}
	if p.Offset != 10 {
		t.Errorf("expected offset 10, got %d", p.Offset)
	}
}

func TestFromContext_SizeAndPage(t *testing.T) {
	p := FromContext(newContext(t, "/?size=25&page=2"))

	if p.Limit != 25 {
		t.Errorf("expected limit 25, got %d", p.Limit)
	}
	if p.Offset != 50 {
		t.Errorf("expected offset 50, got %d", p.Offset)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	p := FromContext(newContext(t, "/?limit=5000"))

	if p.Limit != MaxLimit {
		t.Errorf("expected limit clamped to %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContextWithLimits(t *testing.T) {
	c := newContext(t, "/?size=80")

	p := FromContextWithLimits(c, 10, 30)
	if p.Limit != 30 {
		t.Errorf("expected limit clamped to configured max 30, got %d", p.Limit)
	}

	p = FromContextWithLimits(newContext(t, "/"), 10, 30)
	if p.Limit != 10 {
		t.Errorf("expected configured default 10, got %d", p.Limit)
	}
}

func TestFromContextWithLimits_ZeroFallsBackToPackageDefaults(t *testing.T) {
	p := FromContextWithLimits(newContext(t, "/"), 0, 0)
	if p.Limit != DefaultLimit {
		t.Errorf("expected package default %d, got %d", DefaultLimit, p.Limit)
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]int{1, 2, 3}, 10, 3, 0)
	if r.Total != 10 || r.Limit != 3 || r.Offset != 0 {
		t.Errorf("unexpected response meta: %+v", r)
	}
	if !r.HasMore {
		t.Error("expected has_more to be true")
	}

	r = NewResponse(nil, 3, 3, 0)
	if r.HasMore {
		t.Error("expected has_more to be false on last page")
	}
}

func TestParams_Navigation(t *testing.T) {
	p := Params{Limit: 20, Offset: 20}

	if !p.HasNext(100) {
		t.Error("expected next page")
	}
	if !p.HasPrevious() {
		t.Error("expected previous page")
	}
	if p.NextOffset() != 40 {
		t.Errorf("expected next offset 40, got %d", p.NextOffset())
	}
	if p.PreviousOffset() != 0 {
		t.Errorf("expected previous offset 0, got %d", p.PreviousOffset())
	}

	first := Params{Limit: 20, Offset: 5}
	if first.PreviousOffset() != 0 {
		t.Errorf("expected clamped previous offset 0, got %d", first.PreviousOffset())
	}
}
