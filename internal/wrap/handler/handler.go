// Package handler exposes the registry over HTTP.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zintarh/wrap-registry/internal/wrap/authz"
	"github.com/zintarh/wrap-registry/internal/wrap/models"
	"github.com/zintarh/wrap-registry/internal/wrap/service"
	"github.com/zintarh/wrap-registry/pkg/domain"
	dErrors "github.com/zintarh/wrap-registry/pkg/domain-errors"
)

// Service is the surface the transport needs from the registry.
type Service interface {
	Initialize(ctx context.Context, admin domain.Address) error
	Admin(ctx context.Context) (domain.Address, error)
	Mint(ctx context.Context, req service.MintRequest) (*models.WrapRecord, error)
	Query(ctx context.Context, user domain.Address, period domain.Period) (*models.WrapRecord, error)
	UserCount(ctx context.Context, user domain.Address) (int, error)
}

type Handler struct {
	svc    Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the registry routes. The caller decides which middleware
// guards them.
func (h *Handler) Register(r chi.Router) {
	r.Post("/registry/initialize", h.initialize)
	r.Get("/registry/admin", h.admin)
	r.Post("/registry/mint", h.mint)
	r.Get("/registry/wraps/{user}/{period}", h.query)
	r.Get("/registry/wraps/{user}/count", h.userCount)
}

type initializeRequest struct {
	Admin string `json:"admin"`
}

func (h *Handler) initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}
	admin, err := domain.ParseAddress(req.Admin)
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeValidation, "invalid admin address"))
		return
	}
	if err := h.svc.Initialize(r.Context(), admin); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"admin": admin.String()})
}

func (h *Handler) admin(w http.ResponseWriter, r *http.Request) {
	admin, err := h.svc.Admin(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"admin": admin.String()})
}

type proofPayload struct {
	KeyID     string `json:"key_id"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

type mintRequest struct {
	To        string       `json:"to"`
	DataHash  string       `json:"data_hash"`
	Archetype string       `json:"archetype"`
	Period    string       `json:"period"`
	Proof     proofPayload `json:"proof"`
}

type recordResponse struct {
	User      string `json:"user"`
	Period    string `json:"period"`
	MintedAt  int64  `json:"minted_at"`
	DataHash  string `json:"data_hash"`
	Archetype string `json:"archetype"`
}

func (h *Handler) mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}

	to, err := domain.ParseAddress(req.To)
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeValidation, "invalid recipient address"))
		return
	}
	hash, err := domain.ParseDataHash(req.DataHash)
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeValidation, "invalid data hash"))
		return
	}
	archetype, err := domain.ParseArchetype(req.Archetype)
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeValidation, "invalid archetype"))
		return
	}
	period, err := domain.ParsePeriod(req.Period)
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeValidation, "invalid period"))
		return
	}
	signature, err := base64.StdEncoding.DecodeString(req.Proof.Signature)
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeValidation, "invalid proof signature encoding"))
		return
	}

	record, err := h.svc.Mint(r.Context(), service.MintRequest{
		To:        to,
		DataHash:  hash,
		Archetype: archetype,
		Period:    period,
		Proof: authz.Proof{
			KeyID:     req.Proof.KeyID,
			Nonce:     req.Proof.Nonce,
			Signature: signature,
		},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordResponse(to, period, record))
}

func (h *Handler) query(w http.ResponseWriter, r *http.Request) {
	user, err := domain.ParseAddress(chi.URLParam(r, "user"))
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeValidation, "invalid user address"))
		return
	}
	period, err := domain.ParsePeriod(chi.URLParam(r, "period"))
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeValidation, "invalid period"))
		return
	}

	record, err := h.svc.Query(r.Context(), user, period)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if record == nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeNotFound, "no wrap for user and period"))
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(user, period, record))
}

type countResponse struct {
	User  string `json:"user"`
	Count int    `json:"count"`
}

func (h *Handler) userCount(w http.ResponseWriter, r *http.Request) {
	user, err := domain.ParseAddress(chi.URLParam(r, "user"))
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeValidation, "invalid user address"))
		return
	}

	count, err := h.svc.UserCount(r.Context(), user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{User: user.String(), Count: count})
}

func toRecordResponse(user domain.Address, period domain.Period, record *models.WrapRecord) recordResponse {
	return recordResponse{
		User:      user.String(),
		Period:    string(period),
		MintedAt:  record.MintedAt.Unix(),
		DataHash:  record.DataHash.String(),
		Archetype: string(record.Archetype),
	}
}
