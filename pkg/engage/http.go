package engage

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// MaxBodyBytes bounds the request body, conversation history included.
const MaxBodyBytes = 1 << 20

// NewHTTPHandler serves POST /engage. Structurally valid requests always get 200 with a voice.
func NewHTTPHandler(svc Engager, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if svc == nil {
			http.Error(w, "engage service not initialized", http.StatusServiceUnavailable)
			return
		}

		requestID := RequestIDFromRequest(req)
		w.Header().Set(RequestIDHeader, requestID)
		log := logger.With().Str("request_id", requestID).Logger()

		var body RequestBody
		dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, MaxBodyBytes))
		if err := dec.Decode(&body); err != nil {
			var tooLarge *http.MaxBytesError
			if stderrors.As(err, &tooLarge) {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			log.Debug().Err(err).Msg("malformed engage body")
			http.Error(w, "malformed JSON body", http.StatusBadRequest)
			return
		}

		in, err := body.ToRequest()
		if err != nil {
			writeInputError(w, log, err)
			return
		}
		in.RequestID = requestID

		resp, err := svc.Engage(req.Context(), in)
		if err != nil {
			writeInputError(w, log, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Warn().Err(err).Msg("engage response write failed")
		}
	}
}

func writeInputError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status := http.StatusInternalServerError
	msg := "engage failed"
	if ie, ok := IsInputError(err); ok {
		if ie.Status > 0 {
			status = ie.Status
		}
		if strings.TrimSpace(ie.ClientMsg) != "" {
			msg = ie.ClientMsg
		}
		log.Debug().Err(err).Int("status", status).Msg("engage request rejected")
	} else {
		log.Error().Err(err).Msg("engage failed")
	}
	http.Error(w, msg, status)
}
