package transport

import (
	"io"
	"net/http"

	"browser-operator/internal/domain/entity"
)

// maxClipSize bounds uploaded utterance clips (a minute of compressed
// speech is well under this).
const maxClipSize = 10 << 20

// handleTranscribe accepts a recorded audio clip plus a tab identifier and
// returns the transcript. It is a plain request/response path, decoupled
// from the persistent connection so upload and command streaming can use
// different delivery guarantees.
func (g *Gateway) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if g.transcriber == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "transcription not configured"})
		return
	}

	if err := r.ParseMultipartForm(maxClipSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad multipart form"})
		return
	}
	tabID := r.FormValue("tabId")

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing audio part"})
		return
	}
	defer file.Close()

	clip, err := io.ReadAll(io.LimitReader(file, maxClipSize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable audio part"})
		return
	}

	if sess, ok := g.sessions.get(tabID); ok {
		_ = sess.Status(entity.StatusTranscribing, "")
	}

	text, err := g.transcriber.Transcribe(r.Context(), clip, header.Filename)
	if err != nil {
		g.log.Error("transcription failed", "tab", tabID, "error", err)
		if sess, ok := g.sessions.get(tabID); ok {
			_ = sess.Status(entity.StatusIdle, "")
		}
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "transcription failed"})
		return
	}

	g.log.Info("clip transcribed", "tab", tabID, "chars", len(text))
	writeJSON(w, http.StatusOK, map[string]string{"transcript": text})
}
