package access

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/loan-desk/internal"
	"github.com/frahmantamala/loan-desk/internal/transport"
	"github.com/frahmantamala/loan-desk/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	CreatePermissionFlag(ctx context.Context, dto CreateFlagDTO) (*PermissionFlag, error)
	ListFlags(ctx context.Context) ([]*PermissionFlag, error)
	MutateActions(ctx context.Context, flagID string, dto MutateActionsDTO) (*PermissionFlag, error)
	Promote(ctx context.Context, userID, flagID string) error
	Demote(ctx context.Context, userID, flagID string) error
	FlagsOf(ctx context.Context, userID string) ([]*PermissionFlag, error)
	AllowedActions(ctx context.Context, userID string) (ActionSet, error)
	IsAllowed(ctx context.Context, userID string, action Action) bool
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) CreateFlag(w http.ResponseWriter, r *http.Request) {
	var dto CreateFlagDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	flag, err := h.Service.CreatePermissionFlag(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	logger.From(r.Context()).Info("CreateFlag: permission flag created", "flag_id", flag.ID, "name", flag.Name)
	h.WriteJSON(w, http.StatusCreated, flag.ToResponse())
}

func (h *Handler) ListFlags(w http.ResponseWriter, r *http.Request) {
	flags, err := h.Service.ListFlags(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, FlagsResponse{Flags: toResponses(flags)})
}

func (h *Handler) MutateActions(w http.ResponseWriter, r *http.Request) {
	flagID := chi.URLParam(r, "id")

	var dto MutateActionsDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	flag, err := h.Service.MutateActions(r.Context(), flagID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, flag.ToResponse())
}

func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	flagID := chi.URLParam(r, "flagID")

	if err := h.Service.Promote(r.Context(), userID, flagID); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	logger.From(r.Context()).Info("Promote: flag assigned", "target_user_id", userID, "flag_id", flagID)
	h.writeUserActions(w, r, userID)
}

func (h *Handler) Demote(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	flagID := chi.URLParam(r, "flagID")

	if err := h.Service.Demote(r.Context(), userID, flagID); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	logger.From(r.Context()).Info("Demote: flag removed", "target_user_id", userID, "flag_id", flagID)
	h.writeUserActions(w, r, userID)
}

// UserActions shows a user's flags and allowed actions. Users may always see
// their own; anyone else's needs manage_roles.
func (h *Handler) UserActions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	caller := internal.UserIDFromContext(r.Context())

	if caller != userID && !h.Service.IsAllowed(r.Context(), caller, ActionManageRoles) {
		h.HandleServiceError(w, internal.ErrForbiddenAction)
		return
	}
	h.writeUserActions(w, r, userID)
}

func (h *Handler) writeUserActions(w http.ResponseWriter, r *http.Request, userID string) {
	flags, err := h.Service.FlagsOf(r.Context(), userID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	allowed, err := h.Service.AllowedActions(r.Context(), userID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, UserActionsResponse{
		UserID:  userID,
		Flags:   toResponses(flags),
		Actions: allowed.Sorted(),
	})
}

func toResponses(flags []*PermissionFlag) []FlagResponse {
	out := make([]FlagResponse, 0, len(flags))
	for _, f := range flags {
		out = append(out, f.ToResponse())
	}
	return out
}
