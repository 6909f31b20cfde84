package swagger

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"

	"gopkg.in/yaml.v3"
)

// ErrNilMux is the panic value of Register when mux is nil.
var ErrNilMux = errors.New("swagger: nil mux")

// redocURL is the ReDoc bundle the docs page loads.
const redocURL = "https://cdn.redoc.ly/redoc/v2.1.5/bundles/redoc.standalone.js"

// DocInfo is the info block of the embedded document.
type DocInfo struct {
	Title   string `yaml:"title"`
	Version string `yaml:"version"`
}

// Info reads the title and version out of the embedded OpenAPI document.
func Info() (DocInfo, error) {
	var doc struct {
		Info DocInfo `yaml:"info"`
	}
	if err := yaml.Unmarshal(OpenAPI, &doc); err != nil {
		return DocInfo{}, err
	}
	return doc.Info, nil
}

var indexTmpl = template.Must(template.New("index").Parse(`<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>{{.Title}} API {{.Version}}</title>
    <style>body{margin:0;padding:0}</style>
  </head>
  <body>
    <redoc id="redoc-container"></redoc>
    <script src="{{.Script}}"></script>
    <script>Redoc.init('/openapi.yaml', { suppressWarnings: true }, document.getElementById('redoc-container'));</script>
  </body>
</html>`))

// Register attaches the API docs and the OpenAPI document to mux.
//
//	GET /api-docs      -> ReDoc HTML
//	GET /openapi.yaml  -> embedded OpenAPI document
//
// The page is rendered once; a document that does not parse is a build
// defect and panics here.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic(ErrNilMux)
	}
	info, err := Info()
	if err != nil {
		panic(err)
	}
	var page bytes.Buffer
	if err := indexTmpl.Execute(&page, struct {
		DocInfo
		Script string
	}{info, redocURL}); err != nil {
		panic(err)
	}

	mux.HandleFunc("GET /api-docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page.Bytes())
	})

	mux.HandleFunc("GET /openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		w.Header().Set("X-API-Version", info.Version)
		_, _ = w.Write(OpenAPI)
	})
}
