// Package handler exposes the registry over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"profilereg/internal/profile/models"
	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
	"profilereg/pkg/platform/httputil"
	pstrings "profilereg/pkg/platform/strings"
	"profilereg/pkg/requestcontext"
)

// Service is the registry surface the handler needs.
type Service interface {
	Init(ctx context.Context, admin id.Principal) error
	Admin(ctx context.Context) (id.Principal, error)

	Register(ctx context.Context, rawUsername, displayName string, caller id.Principal) (*models.Profile, error)
	IsUsernameAvailable(ctx context.Context, rawUsername string) (bool, error)
	GetByUsername(ctx context.Context, rawUsername string) (*models.Profile, bool, error)
	GetByOwner(ctx context.Context, owner id.Principal) (*models.Profile, bool, error)
	ProfileCount(ctx context.Context) (uint64, error)
	SetDisplayName(ctx context.Context, displayName string, caller id.Principal) error
	DeleteProfile(ctx context.Context, caller id.Principal) error
	Transfer(ctx context.Context, newOwner, caller id.Principal) error

	GetField(ctx context.Context, owner id.Principal, name string) (models.FieldValue, bool, error)
	GetFields(ctx context.Context, owner id.Principal, names []string) (map[models.FieldName]models.FieldValue, error)
	SetField(ctx context.Context, name string, value models.FieldValue, caller id.Principal) error
	RemoveField(ctx context.Context, name string, caller id.Principal) error

	ReserveUsername(ctx context.Context, rawUsername string, caller id.Principal) error
	UnreserveUsername(ctx context.Context, rawUsername string, caller id.Principal) error
	SetRegistrationFee(ctx context.Context, fee models.Int128, caller id.Principal) error
	RegistrationFee(ctx context.Context) (models.Int128, error)
	BanProfile(ctx context.Context, owner, caller id.Principal) error
	Upgrade(ctx context.Context, hash id.CodeHash) error
	CodeHash(ctx context.Context) (id.CodeHash, bool, error)
}

// Handler wires registry endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a registry handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the registry endpoints. requireAuth guards every endpoint
// that acts on behalf of a principal.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/admin", h.HandleAdmin)
		r.Get("/stats", h.HandleStats)
		r.Get("/registration-fee", h.HandleRegistrationFee)
		r.Get("/code-hash", h.HandleCodeHash)
		r.Get("/usernames/{username}/availability", h.HandleAvailability)
		r.Get("/profiles/by-username/{username}", h.HandleGetByUsername)
		r.Get("/profiles/{owner}", h.HandleGetByOwner)
		r.Get("/profiles/{owner}/fields", h.HandleGetFields)
		r.Get("/profiles/{owner}/fields/{name}", h.HandleGetField)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/init", h.HandleInit)
			r.Post("/profiles", h.HandleRegister)

			r.Put("/profile/display-name", h.HandleSetDisplayName)
			r.Put("/profile/fields/{name}", h.HandleSetField)
			r.Delete("/profile/fields/{name}", h.HandleRemoveField)
			r.Delete("/profile", h.HandleDeleteProfile)
			r.Post("/profile/transfer", h.HandleTransfer)

			r.Put("/admin/reservations/{username}", h.HandleReserve)
			r.Delete("/admin/reservations/{username}", h.HandleUnreserve)
			r.Put("/admin/registration-fee", h.HandleSetRegistrationFee)
			r.Post("/admin/bans/{owner}", h.HandleBan)
			r.Post("/admin/upgrade", h.HandleUpgrade)
		})
	})
}

// fail logs at a level matching the error class and renders it.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	code, _ := dErrors.CodeOf(err)
	status := dErrors.HTTPStatus(code)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"caller", requestcontext.Caller(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

func ownerParam(r *http.Request) (id.Principal, error) {
	return id.ParsePrincipal(chi.URLParam(r, "owner"))
}

func notFound(what string) error {
	return dErrors.New(dErrors.CodeNotFound, what+" not found")
}

// HandleAdmin handles GET /v1/admin.
func (h *Handler) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admin, err := h.service.Admin(ctx)
	if err != nil {
		h.fail(ctx, w, "admin lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AdminResponse{Admin: admin})
}

// HandleStats handles GET /v1/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count, err := h.service.ProfileCount(ctx)
	if err != nil {
		h.fail(ctx, w, "profile count failed", err)
		return
	}
	fee, err := h.service.RegistrationFee(ctx)
	if err != nil {
		h.fail(ctx, w, "registration fee lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatsResponse{ProfileCount: count, RegistrationFee: fee})
}

// HandleRegistrationFee handles GET /v1/registration-fee.
func (h *Handler) HandleRegistrationFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fee, err := h.service.RegistrationFee(ctx)
	if err != nil {
		h.fail(ctx, w, "registration fee lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FeeResponse{RegistrationFee: fee})
}

// HandleCodeHash handles GET /v1/code-hash.
func (h *Handler) HandleCodeHash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hash, ok, err := h.service.CodeHash(ctx)
	if err != nil {
		h.fail(ctx, w, "code hash lookup failed", err)
		return
	}
	if !ok {
		httputil.WriteError(w, notFound("code hash"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CodeHashResponse{CodeHash: hash})
}

// HandleAvailability handles GET /v1/usernames/{username}/availability.
func (h *Handler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "username")
	available, err := h.service.IsUsernameAvailable(ctx, name)
	if err != nil {
		h.fail(ctx, w, "availability check failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AvailabilityResponse{Username: name, Available: available})
}

// HandleGetByUsername handles GET /v1/profiles/by-username/{username}.
func (h *Handler) HandleGetByUsername(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok, err := h.service.GetByUsername(ctx, chi.URLParam(r, "username"))
	if err != nil {
		h.fail(ctx, w, "profile lookup failed", err)
		return
	}
	if !ok {
		httputil.WriteError(w, notFound("profile"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromProfile(p))
}

// HandleGetByOwner handles GET /v1/profiles/{owner}.
func (h *Handler) HandleGetByOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := ownerParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, ok, err := h.service.GetByOwner(ctx, owner)
	if err != nil {
		h.fail(ctx, w, "profile lookup failed", err)
		return
	}
	if !ok {
		httputil.WriteError(w, notFound("profile"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromProfile(p))
}

// HandleGetField handles GET /v1/profiles/{owner}/fields/{name}.
func (h *Handler) HandleGetField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := ownerParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	name := chi.URLParam(r, "name")
	v, ok, err := h.service.GetField(ctx, owner, name)
	if err != nil {
		h.fail(ctx, w, "field lookup failed", err)
		return
	}
	if !ok {
		httputil.WriteError(w, notFound("field"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FieldResponse{Name: models.FieldName(name), Value: v})
}

// HandleGetFields handles GET /v1/profiles/{owner}/fields?names=a,b.
func (h *Handler) HandleGetFields(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := ownerParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	names := pstrings.SplitList(r.URL.Query()["names"]...)
	fields, err := h.service.GetFields(ctx, owner, names)
	if err != nil {
		h.fail(ctx, w, "fields lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FieldsResponse{Owner: owner, Fields: fields})
}

// HandleInit handles POST /v1/init.
func (h *Handler) HandleInit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[InitRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.Init(ctx, req.parsedAdmin); err != nil {
		h.fail(ctx, w, "init failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, AdminResponse{Admin: req.parsedAdmin})
}

// HandleRegister handles POST /v1/profiles.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	p, err := h.service.Register(ctx, req.Username, req.DisplayName, requestcontext.Caller(ctx))
	if err != nil {
		h.fail(ctx, w, "registration failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromProfile(p))
}

// HandleSetDisplayName handles PUT /v1/profile/display-name.
func (h *Handler) HandleSetDisplayName(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[DisplayNameRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.SetDisplayName(ctx, req.DisplayName, requestcontext.Caller(ctx)); err != nil {
		h.fail(ctx, w, "display name update failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetField handles PUT /v1/profile/fields/{name}.
func (h *Handler) HandleSetField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[FieldRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	err := h.service.SetField(ctx, chi.URLParam(r, "name"), req.ParsedValue(), requestcontext.Caller(ctx))
	if err != nil {
		h.fail(ctx, w, "field update failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveField handles DELETE /v1/profile/fields/{name}.
func (h *Handler) HandleRemoveField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.RemoveField(ctx, chi.URLParam(r, "name"), requestcontext.Caller(ctx)); err != nil {
		h.fail(ctx, w, "field removal failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteProfile handles DELETE /v1/profile.
func (h *Handler) HandleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.DeleteProfile(ctx, requestcontext.Caller(ctx)); err != nil {
		h.fail(ctx, w, "profile deletion failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTransfer handles POST /v1/profile/transfer. The new owner attests
// through a cosign token.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.Transfer(ctx, req.parsedOwner, requestcontext.Caller(ctx)); err != nil {
		h.fail(ctx, w, "transfer failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReserve handles PUT /v1/admin/reservations/{username}.
func (h *Handler) HandleReserve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.ReserveUsername(ctx, chi.URLParam(r, "username"), requestcontext.Caller(ctx)); err != nil {
		h.fail(ctx, w, "reservation failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUnreserve handles DELETE /v1/admin/reservations/{username}.
func (h *Handler) HandleUnreserve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.UnreserveUsername(ctx, chi.URLParam(r, "username"), requestcontext.Caller(ctx)); err != nil {
		h.fail(ctx, w, "unreservation failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetRegistrationFee handles PUT /v1/admin/registration-fee.
func (h *Handler) HandleSetRegistrationFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[FeeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.SetRegistrationFee(ctx, *req.Fee, requestcontext.Caller(ctx)); err != nil {
		h.fail(ctx, w, "fee update failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FeeResponse{RegistrationFee: *req.Fee})
}

// HandleBan handles POST /v1/admin/bans/{owner}.
func (h *Handler) HandleBan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := ownerParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.BanProfile(ctx, owner, requestcontext.Caller(ctx)); err != nil {
		h.fail(ctx, w, "ban failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpgrade handles POST /v1/admin/upgrade.
func (h *Handler) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[UpgradeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.Upgrade(ctx, req.parsedHash); err != nil {
		h.fail(ctx, w, "upgrade failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CodeHashResponse{CodeHash: req.parsedHash})
}
