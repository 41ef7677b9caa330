package server

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/openracer/raceserver/logger"
	qrcode "github.com/skip2/go-qrcode"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

func (s *GameServer) handleHostPage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.renderPage(w, "host.html", nil)
}

// handlePlayerPage serves the player page; an optional room query parameter
// pre-fills the join form (this is what the QR code link points at).
func (s *GameServer) handlePlayerPage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	data := struct {
		RoomCode string
	}{
		RoomCode: strings.ToUpper(r.URL.Query().Get("room")),
	}
	s.renderPage(w, "player.html", data)
}

func (s *GameServer) handleCarTestPage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.renderPage(w, "car-test.html", nil)
}

func (s *GameServer) renderPage(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		logger.Log.Errorf("Failed to render %s: %v", name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// handleQRCode returns a PNG QR code encoding the join URL for a room, for
// players to scan from the host screen.
func (s *GameServer) handleQRCode(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := strings.ToUpper(ps.ByName("code"))
	if code == "" {
		http.Error(w, "missing room code", http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	joinURL := scheme + "://" + r.Host + "/player?room=" + code

	const qrSize = 320
	png, err := qrcode.Encode(joinURL, qrcode.Medium, qrSize)
	if err != nil {
		logger.Log.Errorf("QR generation failed for %s: %v", code, err)
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
