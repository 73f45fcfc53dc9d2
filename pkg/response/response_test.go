package response

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ctxWithQuery(query string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+query, nil)
	return c
}

func TestParsePageParamsDefaults(t *testing.T) {
	p, err := ParsePageParams(ctxWithQuery(""))
	if err != nil {
		t.Fatalf("ParsePageParams() error = %v", err)
	}
	if p.Page != 1 || p.PageSize != 20 || p.SortOrder != "desc" {
		t.Errorf("defaults = %+v", p)
	}
	if p.Offset() != 0 {
		t.Errorf("Offset() = %d, expected 0", p.Offset())
	}
}

func TestParsePageParamsValid(t *testing.T) {
	p, err := ParsePageParams(ctxWithQuery("page=3&page_size=50&sort_by=timestamp&sort_order=asc"))
	if err != nil {
		t.Fatalf("ParsePageParams() error = %v", err)
	}
	if p.Page != 3 || p.PageSize != 50 || p.SortBy != "timestamp" || p.SortOrder != "asc" {
		t.Errorf("params = %+v", p)
	}
	if p.Offset() != 100 {
		t.Errorf("Offset() = %d, expected 100", p.Offset())
	}
}

func TestParsePageParamsRejectsBadInput(t *testing.T) {
	bad := []string{
		"page=0",
		"page=abc",
		"page=-1",
		"page_size=0",
		"page_size=101",
		"sort_order=sideways",
	}
	for _, q := range bad {
		if _, err := ParsePageParams(ctxWithQuery(q)); err == nil {
			t.Errorf("ParsePageParams(%q) should fail", q)
		}
	}
}

func TestNewPage(t *testing.T) {
	params := PageParams{Page: 2, PageSize: 10}
	page := NewPage([]string{"a", "b"}, params, 25)

	if page.Pagination.Page != 2 || page.Pagination.PageSize != 10 {
		t.Errorf("pagination = %+v", page.Pagination)
	}
	if page.Pagination.TotalItems != 25 {
		t.Errorf("TotalItems = %d, expected 25", page.Pagination.TotalItems)
	}
	if page.Pagination.TotalPages != 3 {
		t.Errorf("TotalPages = %d, expected 3", page.Pagination.TotalPages)
	}
}

func TestNewPageExactMultiple(t *testing.T) {
	page := NewPage(nil, PageParams{Page: 1, PageSize: 10}, 20)
	if page.Pagination.TotalPages != 2 {
		t.Errorf("TotalPages = %d, expected 2", page.Pagination.TotalPages)
	}
}
