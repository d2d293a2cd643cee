// Package view renders the server-side HTML pages from templates embedded
// into the binary. Each page template is parsed together with the shared
// layout at startup, so a broken template fails fast instead of at
// request time.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/tinyapp/internal/logger"
	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

//go:embed templates/*.gohtml
var templatesFS embed.FS

// PageData carries everything a page template may need.
type PageData struct {
	// User is the authenticated user, or nil for anonymous pages.
	User *user.User

	// Urls is the listing shown on the index page.
	Urls []models.URLRecord

	// URL is the single record shown on the details page.
	URL *models.URLRecord

	// ShortURLBase is the public base address short links are built from.
	ShortURLBase string
}

var pageNames = []string{
	"login",
	"register",
	"urls_index",
	"urls_new",
	"urls_show",
}

// Renderer holds the parsed template set of every page.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses the embedded templates and returns a ready Renderer.
func New() (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		parsed, err := template.ParseFS(
			templatesFS,
			"templates/layout.gohtml",
			"templates/"+name+".gohtml",
		)
		if err != nil {
			return nil, fmt.Errorf(
				"in internal/view/view.go/New(): error while `template.ParseFS()` calling: %w",
				err,
			)
		}
		pages[name] = parsed
	}

	return &Renderer{pages: pages}, nil
}

// Render writes the named page with the given status code.
func (renderer *Renderer) Render(
	response http.ResponseWriter,
	status int,
	page string,
	data PageData,
) {
	parsed, found := renderer.pages[page]
	if !found {
		logger.Log.Debugln("Unknown page requested from the renderer: ", page)
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	response.Header().Set("Content-Type", "text/html; charset=utf-8")
	response.WriteHeader(status)
	if err := parsed.ExecuteTemplate(response, "layout", data); err != nil {
		logger.Log.Debugln("Error calling the `parsed.ExecuteTemplate()`: ", zap.Error(err))
	}
}
