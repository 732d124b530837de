package handlers

import (
	"net/http"
	"os"
	"path/filepath"
)

// Page отдаёт <dir>/<name>.html. Пустой dir - страницы обслуживает кто-то
// другой (фронт), шлюз только применяет редиректы.
func Page(dir, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dir == "" {
			http.NotFound(w, r)
			return
		}

		path := filepath.Join(dir, name+".html")
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, path)
	}
}
