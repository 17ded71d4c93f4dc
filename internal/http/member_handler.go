package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/activity-scheduler/internal/application"
)

type memberService interface {
	CreateMember(ctx context.Context, params application.CreateMemberParams) (application.Member, error)
	ListMembers(ctx context.Context, principal application.Principal) ([]application.Member, error)
}

// MemberHandler serves member management endpoints.
type MemberHandler struct {
	service   memberService
	responder responder
	logger    *slog.Logger
}

// NewMemberHandler constructs a MemberHandler.
func NewMemberHandler(service memberService, logger *slog.Logger) *MemberHandler {
	base := defaultLogger(logger)
	return &MemberHandler{service: service, responder: newResponder(base), logger: base}
}

type memberRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
	IsAdmin     bool   `json:"is_admin"`
}

type memberResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toMemberResponse(member application.Member) memberResponse {
	return memberResponse{
		ID:          member.ID,
		Email:       member.Email,
		DisplayName: member.DisplayName,
		IsAdmin:     member.IsAdmin,
		CreatedAt:   member.CreatedAt,
		UpdatedAt:   member.UpdatedAt,
	}
}

// Create registers a new member account.
func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	member, err := h.service.CreateMember(r.Context(), application.CreateMemberParams{
		Principal: principal,
		Input: application.MemberInput{
			Email:       req.Email,
			DisplayName: req.DisplayName,
			Password:    req.Password,
			IsAdmin:     req.IsAdmin,
		},
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "MemberHandler", "Create").InfoContext(r.Context(), "member created", "member_id", member.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toMemberResponse(member))
}

// List enumerates member accounts.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	members, err := h.service.ListMembers(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := make([]memberResponse, 0, len(members))
	for _, member := range members {
		payload = append(payload, toMemberResponse(member))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}
