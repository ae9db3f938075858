// Пакет static — встроенные статические ресурсы страниц Video Module.
// Файлы встраиваются в бинарник через //go:embed и раздаются по /static/*.
package static

import (
	"embed"
	"net/http"
)

// content — стили и скрипт страниц.
//
//go:embed css/video.css js/video.js
var content embed.FS

// Handler раздаёт встроенные файлы. Монтируется с префиксом /static/.
func Handler() http.Handler {
	return http.StripPrefix("/static/", http.FileServer(http.FS(content)))
}
