// Package links exposes the link management HTTP surface: CRUD over a
// user's links with plan capacity enforced on every read and write, plus QR
// code rendering for the user's public page.
package links

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/divyansh14-yadav/getqrbackend/pkg/entitlement"
	"github.com/divyansh14-yadav/getqrbackend/pkg/links"
	"github.com/divyansh14-yadav/getqrbackend/pkg/plan"
	"github.com/divyansh14-yadav/getqrbackend/pkg/qrcode"
	"github.com/divyansh14-yadav/getqrbackend/svc/rest"
)

// Config holds the endpoint-level settings.
type Config struct {
	// PublicPageBaseURL is where a user's public link page lives; the QR
	// endpoint encodes <base>/<user_id>.
	PublicPageBaseURL string `env:"PUBLIC_PAGE_BASE_URL,required"`

	// QRMaxSize caps requested QR image dimensions in pixels.
	QRMaxSize int `env:"QR_MAX_SIZE" envDefault:"1024"`
}

// Service wires the links domain to HTTP.
type Service struct {
	cfg   Config
	links *links.Service
	gate  *entitlement.Gate
	log   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService creates the links HTTP service. All dependencies are required.
func NewService(cfg Config, linkSvc *links.Service, gate *entitlement.Gate, opts ...Option) *Service {
	if linkSvc == nil {
		panic("links: link service is required")
	}
	if gate == nil {
		panic("links: entitlement gate is required")
	}
	if cfg.QRMaxSize <= 0 {
		cfg.QRMaxSize = 1024
	}
	s := &Service{
		cfg:   cfg,
		links: linkSvc,
		gate:  gate,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the links routes. Every route expects an authenticated
// user in the request context.
func (s *Service) Handler(authn func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	if authn != nil {
		r.Use(authn)
	}

	r.Get("/", s.handleList)
	r.Post("/", s.handleCreate)
	r.Patch("/{link_id}/enable", s.handleEnable)
	r.Patch("/{link_id}/disable", s.handleDisable)
	r.Get("/qr", s.handleQR)

	return r
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := rest.UserIDFromContext(r.Context())
	if !ok {
		rest.Error(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	list, report, err := s.links.List(r.Context(), userID)
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to list links",
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
		rest.Error(w, http.StatusInternalServerError, "internal_error", "failed to list links")
		return
	}

	var meta map[string]any
	if report.DowngradeApplied {
		meta = map[string]any{"downgrade": report}
	}
	rest.JSONMeta(w, http.StatusOK, list, meta)
}

type createRequest struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := rest.UserIDFromContext(r.Context())
	if !ok {
		rest.Error(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.Error(w, http.StatusBadRequest, "invalid_payload", "invalid request body")
		return
	}

	link, err := s.links.Create(r.Context(), userID, req.Platform, req.URL)
	var limitErr *links.LimitError
	switch {
	case errors.As(err, &limitErr):
		rest.ErrorDetails(w, http.StatusForbidden, "link_limit_reached",
			fmt.Sprintf("plan %s allows %d enabled links", limitErr.Tier, limitErr.MaxLinks),
			limitErr)
		return
	case errors.Is(err, links.ErrInvalidLink):
		rest.Error(w, http.StatusBadRequest, "invalid_link", err.Error())
		return
	case err != nil:
		s.log.ErrorContext(r.Context(), "failed to create link",
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
		rest.Error(w, http.StatusInternalServerError, "internal_error", "failed to create link")
		return
	}

	rest.JSON(w, http.StatusCreated, link)
}

func (s *Service) handleEnable(w http.ResponseWriter, r *http.Request) {
	s.setEnabled(w, r, true)
}

func (s *Service) handleDisable(w http.ResponseWriter, r *http.Request) {
	s.setEnabled(w, r, false)
}

func (s *Service) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	userID, ok := rest.UserIDFromContext(r.Context())
	if !ok {
		rest.Error(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	linkID, err := uuid.Parse(chi.URLParam(r, "link_id"))
	if err != nil {
		rest.Error(w, http.StatusBadRequest, "invalid_link_id", "link_id must be a UUID")
		return
	}

	if enabled {
		err = s.links.Enable(r.Context(), userID, linkID)
	} else {
		err = s.links.Disable(r.Context(), userID, linkID)
	}

	var limitErr *links.LimitError
	switch {
	case errors.As(err, &limitErr):
		rest.ErrorDetails(w, http.StatusForbidden, "link_limit_reached",
			fmt.Sprintf("plan %s allows %d enabled links", limitErr.Tier, limitErr.MaxLinks),
			limitErr)
		return
	case errors.Is(err, links.ErrLinkNotFound):
		rest.Error(w, http.StatusNotFound, "link_not_found", "no such link")
		return
	case err != nil:
		s.log.ErrorContext(r.Context(), "failed to update link",
			slog.String("user_id", userID.String()),
			slog.String("link_id", linkID.String()),
			slog.Any("error", err))
		rest.Error(w, http.StatusInternalServerError, "internal_error", "failed to update link")
		return
	}

	rest.JSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

// handleQR renders the QR code pointing at the user's public page. Custom
// colors are a paid feature; requests carrying them without the
// customize_appearance capability get a structured denial.
func (s *Service) handleQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := rest.UserIDFromContext(r.Context())
	if !ok {
		rest.Error(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	size := 0
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > s.cfg.QRMaxSize {
			rest.Error(w, http.StatusBadRequest, "invalid_size",
				fmt.Sprintf("size must be between 1 and %d", s.cfg.QRMaxSize))
			return
		}
		size = n
	}

	style := qrcode.Style{
		Foreground: r.URL.Query().Get("fg"),
		Background: r.URL.Query().Get("bg"),
	}
	styled := style.Foreground != "" || style.Background != ""
	if styled {
		decision, err := s.gate.Authorize(r.Context(), userID,
			entitlement.RequireCapability(plan.CapabilityCustomizeAppearance))
		if err != nil {
			s.log.ErrorContext(r.Context(), "failed to authorize qr styling",
				slog.String("user_id", userID.String()),
				slog.Any("error", err))
			rest.Error(w, http.StatusInternalServerError, "internal_error", "authorization failed")
			return
		}
		if !decision.Allowed {
			rest.ErrorDetails(w, http.StatusForbidden, "upgrade_required",
				"custom QR styling requires a plan with customize_appearance", decision.Denial)
			return
		}
	}

	content, err := url.JoinPath(s.cfg.PublicPageBaseURL, userID.String())
	if err != nil {
		rest.Error(w, http.StatusInternalServerError, "internal_error", "failed to build page URL")
		return
	}

	var png []byte
	if styled {
		png, err = qrcode.GenerateStyled(content, size, style)
	} else {
		png, err = qrcode.Generate(content, size)
	}
	switch {
	case errors.Is(err, qrcode.ErrInvalidColor):
		rest.Error(w, http.StatusBadRequest, "invalid_color", "fg and bg must be 6-digit hex colors")
		return
	case err != nil:
		s.log.ErrorContext(r.Context(), "failed to generate qr code",
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
		rest.Error(w, http.StatusInternalServerError, "internal_error", "failed to generate QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
