package handlers

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFS embed.FS

// DocsHandler serves the embedded docs pages under /public/.
func DocsHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// The embed is part of the binary; a bad sub path is a build defect.
		panic(err)
	}
	return http.StripPrefix("/public/", http.FileServer(http.FS(sub)))
}
