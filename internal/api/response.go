package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/VoicePipe/internal/models"
	"github.com/BTreeMap/VoicePipe/internal/twiliovoice"
)

// fallbackVoiceDocument is served when TwiML rendering itself fails: the
// telephony layer is never left without an instruction.
const fallbackVoiceDocument = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<Response><Say>We are unable to take your call right now. Please call back later.</Say><Hangup/></Response>`

// Pre-marshaled fallback response to avoid runtime JSON encoding failures.
var fallbackErrorResponse []byte

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// writeVoiceResponse renders directives to TwiML and writes the document.
func writeVoiceResponse(w http.ResponseWriter, directives []models.Directive) {
	doc, err := twiliovoice.Render(directives)
	if err != nil {
		slog.Error("Server.writeVoiceResponse: failed to render TwiML, serving fallback", "error", err)
		doc = fallbackVoiceDocument
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	if _, writeErr := w.Write([]byte(doc)); writeErr != nil {
		slog.Error("Server.writeVoiceResponse: failed to write TwiML response", "error", writeErr)
	}
}
