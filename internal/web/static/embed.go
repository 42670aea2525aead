package static

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed templates/*.html assets/*
var contentFS embed.FS

var funcs = template.FuncMap{
	"score": func(similarity float64) string {
		return fmt.Sprintf("%.4f", similarity)
	},
}

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(contentFS, "templates/*.html")
}

// GetFileSystem returns an http.FileSystem for the embedded assets directory.
func GetFileSystem() http.FileSystem {
	fsys, err := fs.Sub(contentFS, "assets")
	if err != nil {
		panic(err)
	}
	return http.FS(fsys)
}
