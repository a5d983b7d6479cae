package ui

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates *template.Template

func init() {
	funcMap := template.FuncMap{
		"formatMs": func(ms int64) string {
			return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
		},
	}

	var err error
	templates, err = template.New("").Funcs(funcMap).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse templates")
		panic(err)
	}
}

// RenderTemplate renders a template with the given data
func RenderTemplate(w http.ResponseWriter, templateName string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := templates.ExecuteTemplate(w, templateName, data)
	if err != nil {
		log.Error().Err(err).Str("template", templateName).Msg("failed to render template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}
