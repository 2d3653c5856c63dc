// internal/api/themes/handlers.go
package themes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/themekit/internal/api/apiutil"
	"github.com/codr1/themekit/internal/api/authz"
	"github.com/codr1/themekit/internal/assets"
	"github.com/codr1/themekit/internal/models"
	themetempl "github.com/codr1/themekit/internal/templates/components/themes"
	"github.com/codr1/themekit/internal/templates/layouts"
	themesvc "github.com/codr1/themekit/internal/themes"
)

const (
	themeRequestTimeout = 5 * time.Second
	presetNameParam     = "name"
	logoFormField       = "logo"
	// multipartOverhead covers form boundaries and headers around the logo file.
	multipartOverhead = 64 << 10
)

// Options configures the HTTP binding.
type Options struct {
	Assets        assets.Store
	AssetMaxBytes int64
}

var (
	stateMu     sync.RWMutex
	service     *themesvc.Service
	assetStore  assets.Store
	maxLogoSize int64 = 2 << 20
)

type presetResponse struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Default     bool   `json:"default"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(svc *themesvc.Service, opts Options) {
	stateMu.Lock()
	defer stateMu.Unlock()
	service = svc
	assetStore = opts.Assets
	if opts.AssetMaxBytes > 0 {
		maxLogoSize = opts.AssetMaxBytes
	}
}

// RegisterRoutes wires the theme endpoints. The logo route only exists for the global theme.
func RegisterRoutes(mux *http.ServeMux, privileged func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/v1/theme", HandleThemeGet)
	mux.HandleFunc("PUT /api/v1/theme", HandleThemeUpdate)
	mux.HandleFunc("POST /api/v1/theme/reset", HandleThemeReset)
	mux.HandleFunc("GET /api/v1/theme/presets", HandlePresetsList)
	mux.HandleFunc("POST /api/v1/theme/presets/{name}", HandlePresetApply)
	mux.HandleFunc("GET /theme.css", HandleStylesheet)
	mux.HandleFunc("GET /theme/preview", HandlePreview)

	svc := loadService()
	if svc != nil && svc.Variant() == themesvc.VariantGlobal {
		logo := http.Handler(http.HandlerFunc(HandleLogoUpload))
		if privileged != nil {
			logo = privileged(logo)
		}
		mux.Handle("POST /api/v1/theme/logo", logo)
	}
}

func loadService() *themesvc.Service {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return service
}

func loadAssets() (assets.Store, int64) {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return assetStore, maxLogoSize
}

// readKey resolves the identity key for reads. The global theme is public.
func readKey(ctx context.Context, svc *themesvc.Service) (string, error) {
	if svc.Variant() == themesvc.VariantGlobal {
		return themesvc.GlobalKey, nil
	}
	user, err := authz.RequireUser(ctx)
	if err != nil {
		return "", err
	}
	return authz.ThemeKey(user), nil
}

// writeKey resolves the identity key for writes. The global theme needs a privileged caller.
func writeKey(ctx context.Context, svc *themesvc.Service) (string, error) {
	if svc.Variant() == themesvc.VariantGlobal {
		if _, err := authz.RequirePrivileged(ctx); err != nil {
			return "", err
		}
		return themesvc.GlobalKey, nil
	}
	user, err := authz.RequireUser(ctx)
	if err != nil {
		return "", err
	}
	return authz.ThemeKey(user), nil
}

// resolve loads the service and the identity key, writing the error response on failure.
func resolve(w http.ResponseWriter, r *http.Request, write bool) (*themesvc.Service, string, bool) {
	svc := loadService()
	if svc == nil {
		log.Ctx(r.Context()).Error().Msg("Theme service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, "", false
	}

	var (
		key string
		err error
	)
	if write {
		key, err = writeKey(r.Context(), svc)
	} else {
		key, err = readKey(r.Context(), svc)
	}
	if err != nil {
		apiutil.WriteAuthzError(w, r, err, "Theme access denied")
		return nil, "", false
	}
	return svc, key, true
}

// GET /api/v1/theme
func HandleThemeGet(w http.ResponseWriter, r *http.Request) {
	svc, key, ok := resolve(w, r, false)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), themeRequestTimeout)
	defer cancel()

	theme, err := svc.Get(ctx, key)
	if err != nil {
		apiutil.WriteThemeError(w, r, err, "Failed to load theme")
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, theme); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("theme_key", key).Msg("Failed to write theme response")
	}
}

// PUT /api/v1/theme
func HandleThemeUpdate(w http.ResponseWriter, r *http.Request) {
	svc, key, ok := resolve(w, r, true)
	if !ok {
		return
	}

	var patch models.ThemePatch
	if err := apiutil.DecodeJSON(r, &patch); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), themeRequestTimeout)
	defer cancel()

	theme, err := svc.Upsert(ctx, key, patch)
	if err != nil {
		apiutil.WriteThemeError(w, r, err, "Failed to update theme")
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, theme); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("theme_key", key).Msg("Failed to write theme update response")
	}
}

// POST /api/v1/theme/reset
func HandleThemeReset(w http.ResponseWriter, r *http.Request) {
	svc, key, ok := resolve(w, r, true)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), themeRequestTimeout)
	defer cancel()

	theme, err := svc.Reset(ctx, key)
	if err != nil {
		apiutil.WriteThemeError(w, r, err, "Failed to reset theme")
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, theme); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("theme_key", key).Msg("Failed to write theme reset response")
	}
}

// GET /theme.css
func HandleStylesheet(w http.ResponseWriter, r *http.Request) {
	svc, key, ok := resolve(w, r, false)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), themeRequestTimeout)
	defer cancel()

	css, err := svc.Stylesheet(ctx, key)
	if err != nil {
		apiutil.WriteThemeError(w, r, err, "Failed to render stylesheet")
		return
	}

	etag := stylesheetETag(css)
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", cacheControl(svc))
	w.Header().Set("ETag", etag)
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(css)); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("theme_key", key).Msg("Failed to write stylesheet")
	}
}

// cacheControl advertises the server cache TTL. Per-user stylesheets stay out of shared caches.
func cacheControl(svc *themesvc.Service) string {
	c := svc.Cache()
	if !c.Enabled() {
		return "no-cache"
	}
	scope := "private"
	if svc.Variant() == themesvc.VariantGlobal {
		scope = "public"
	}
	return fmt.Sprintf("%s, max-age=%d", scope, int64(c.TTL()/time.Second))
}

func stylesheetETag(css string) string {
	sum := sha256.Sum256([]byte(css))
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

// POST /api/v1/theme/logo
func HandleLogoUpload(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc, _, ok := resolve(w, r, true)
	if !ok {
		return
	}
	store, maxBytes := loadAssets()
	if store == nil {
		logger.Error().Msg("Asset store not initialized")
		http.Error(w, "Logo uploads are not configured", http.StatusInternalServerError)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	file, _, err := r.FormFile(logoFormField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "Logo exceeds size limit", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Missing logo file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	upload, err := assets.Prepare(file, maxBytes)
	if err != nil {
		switch {
		case errors.Is(err, assets.ErrTooLarge):
			http.Error(w, "Logo exceeds size limit", http.StatusRequestEntityTooLarge)
		case errors.Is(err, assets.ErrUnsupportedType):
			http.Error(w, "Logo must be a PNG, JPEG, GIF or WebP image", http.StatusUnsupportedMediaType)
		case errors.Is(err, assets.ErrEmpty):
			http.Error(w, "Logo file is empty", http.StatusBadRequest)
		default:
			logger.Error().Err(err).Msg("Failed to read logo upload")
			http.Error(w, "Failed to read logo", http.StatusBadRequest)
		}
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), themeRequestTimeout)
	defer cancel()

	path, err := store.Save(ctx, upload)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to store logo")
		http.Error(w, "Failed to store logo", http.StatusInternalServerError)
		return
	}

	theme, err := svc.SetLogo(ctx, path)
	if err != nil {
		if deleteErr := store.Delete(ctx, path); deleteErr != nil {
			logger.Warn().Err(deleteErr).Str("logo", path).Msg("Failed to remove orphaned logo")
		}
		apiutil.WriteThemeError(w, r, err, "Failed to update logo")
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, theme); err != nil {
		logger.Error().Err(err).Msg("Failed to write logo response")
	}
}

// GET /api/v1/theme/presets
func HandlePresetsList(w http.ResponseWriter, r *http.Request) {
	svc := loadService()
	if svc == nil {
		log.Ctx(r.Context()).Error().Msg("Theme service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	presets, err := svc.Presets()
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to load presets")
		http.Error(w, "Failed to load presets", http.StatusInternalServerError)
		return
	}
	resp := make([]presetResponse, len(presets))
	for i, preset := range presets {
		resp[i] = presetResponse{
			Name:        preset.Name,
			Description: preset.Description,
			Default:     preset.Default,
		}
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"presets": resp}); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write presets response")
	}
}

// POST /api/v1/theme/presets/{name}
func HandlePresetApply(w http.ResponseWriter, r *http.Request) {
	svc, key, ok := resolve(w, r, true)
	if !ok {
		return
	}

	name := strings.TrimSpace(r.PathValue(presetNameParam))
	if name == "" {
		http.Error(w, "Preset name is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), themeRequestTimeout)
	defer cancel()

	theme, err := svc.ApplyPreset(ctx, key, name)
	if err != nil {
		apiutil.WriteThemeError(w, r, err, "Failed to apply preset")
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, theme); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("theme_key", key).Str("preset", name).Msg("Failed to write preset response")
	}
}

// GET /theme/preview
func HandlePreview(w http.ResponseWriter, r *http.Request) {
	svc, key, ok := resolve(w, r, false)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), themeRequestTimeout)
	defer cancel()

	theme, err := svc.Get(ctx, key)
	if err != nil {
		apiutil.WriteThemeError(w, r, err, "Failed to load theme")
		return
	}

	css, err := svc.Stylesheet(ctx, key)
	if err != nil {
		apiutil.WriteThemeError(w, r, err, "Failed to render stylesheet")
		return
	}

	global := svc.Variant() == themesvc.VariantGlobal
	page := layouts.Base(theme.Name, css, themetempl.Preview(themetempl.NewPreviewData(*theme, global)))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := page.Render(r.Context(), w); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("theme_key", key).Msg("Failed to render theme preview")
	}
}
