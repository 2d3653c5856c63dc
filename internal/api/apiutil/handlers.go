package apiutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/codr1/themekit/internal/api/authz"
	"github.com/codr1/themekit/internal/models"
	"github.com/codr1/themekit/internal/themes"
)

// maxJSONBody bounds theme update payloads.
const maxJSONBody = 64 << 10

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteAuthzError maps authz failures to 401/403 and anything else to 500.
func WriteAuthzError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	logger := log.Ctx(r.Context())
	user := authz.UserFromContext(r.Context())
	switch {
	case errors.Is(err, authz.ErrUnauthenticated):
		logger.Warn().Msg(msg + ": unauthenticated")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, authz.ErrForbidden):
		logEvent := logger.Warn()
		if user != nil {
			logEvent = logEvent.Str("theme_key", authz.ThemeKey(user))
		}
		logEvent.Msg(msg + ": forbidden")
		http.Error(w, "Forbidden", http.StatusForbidden)
	default:
		logEvent := logger.Error().Err(err)
		if user != nil {
			logEvent = logEvent.Str("theme_key", authz.ThemeKey(user))
		}
		logEvent.Msg(msg + ": error")
		http.Error(w, "Failed to authorize request", http.StatusInternalServerError)
	}
}

// WriteThemeError maps a theme service error to its status code. Storage failures are
// already logged by the service and are reported without detail.
func WriteThemeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var validationErr models.ValidationError
	switch {
	case errors.Is(err, authz.ErrUnauthenticated), errors.Is(err, authz.ErrForbidden):
		WriteAuthzError(w, r, err, msg)
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Error(), http.StatusBadRequest)
	case errors.Is(err, themes.ErrNotFound), errors.Is(err, themes.ErrPresetNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, themes.ErrLogoUnsupported):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case themes.IsStorageError(err):
		http.Error(w, msg, http.StatusInternalServerError)
	default:
		log.Ctx(r.Context()).Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
