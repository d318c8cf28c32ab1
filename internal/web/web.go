// Package web renders the server-side pages and list partials.
package web

import (
	"embed"
	"html/template"
	"net/http"
	"reflect"
	"strings"

	"github.com/bikestra/paper-tracker/internal/category"
	"github.com/bikestra/paper-tracker/internal/domain"
	"github.com/bikestra/paper-tracker/internal/paper"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"deref":       deref,
	"join":        strings.Join,
	"statusLabel": statusLabel,
	"authorNames": authorNames,
}

// Templates parses the embedded templates. Pass the result to
// gin.Engine.SetHTMLTemplate.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}

type Handler struct {
	papers           paper.Service
	categories       category.Service
	passwordRequired bool
}

func NewHandler(papers paper.Service, categories category.Service, passwordRequired bool) *Handler {
	return &Handler{papers: papers, categories: categories, passwordRequired: passwordRequired}
}

type pageData struct {
	Title            string
	Filter           paper.ListFilter
	Query            string
	Statuses         []domain.PaperStatus
	Counts           map[domain.PaperStatus]int64
	Categories       []category.CategoryWithCount
	Papers           []domain.Paper
	PasswordRequired bool
	Error            string
}

func (h *Handler) Index(c *gin.Context) {
	data, err := h.load(c)
	if err != nil {
		c.Error(err)
		return
	}

	ctx := c.Request.Context()
	userID, _ := c.Get("user_id")
	data.Counts, err = h.papers.StatusCounts(ctx, userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}
	data.Categories, err = h.categories.List(ctx, userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.HTML(http.StatusOK, "index.html", data)
}

// Papers renders only the paper list, for partial page updates.
func (h *Handler) Papers(c *gin.Context) {
	data, err := h.load(c)
	if err != nil {
		c.Error(err)
		return
	}
	c.HTML(http.StatusOK, "papers", data)
}

func (h *Handler) LoginPage(c *gin.Context) {
	if !h.passwordRequired {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	c.HTML(http.StatusOK, "login.html", pageData{Title: "Log in", Error: c.Query("error")})
}

func (h *Handler) load(c *gin.Context) (pageData, error) {
	filter, err := paper.ParseListFilter(c)
	if err != nil {
		return pageData{}, err
	}
	userID, _ := c.Get("user_id")

	papers, err := h.papers.ListPapers(c.Request.Context(), userID.(uint64), filter)
	if err != nil {
		return pageData{}, err
	}

	query := ""
	if raw := c.Request.URL.RawQuery; raw != "" {
		query = "?" + raw
	}
	return pageData{
		Title:            "Papers",
		Filter:           filter,
		Query:            query,
		Statuses:         domain.PaperStatuses,
		Papers:           papers,
		PasswordRequired: h.passwordRequired,
	}, nil
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return ""
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		return rv.Elem().Interface()
	}
	return v
}

func statusLabel(s domain.PaperStatus) string {
	switch s {
	case domain.StatusPlanned:
		return "Planned"
	case domain.StatusReading:
		return "Reading"
	case domain.StatusRead:
		return "Read"
	}
	return string(s)
}

func authorNames(authors []domain.Author) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}
