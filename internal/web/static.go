package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var embeddedStatic embed.FS

// StaticHandler serves assets from dir, or the embedded assets when dir is empty.
// Mount it behind http.StripPrefix.
func StaticHandler(dir string) http.Handler {
	if dir != "" {
		return http.FileServer(http.Dir(dir))
	}

	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
