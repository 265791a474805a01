package roles

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/weavy/weavy/pkg/audit"
	"github.com/weavy/weavy/pkg/contextkeys"
	"github.com/weavy/weavy/pkg/httputil"
	"github.com/weavy/weavy/pkg/observability"
	"github.com/weavy/weavy/pkg/users"
)

// Handlers provides HTTP handlers for the role API
type Handlers struct {
	service *Service
	users   UserStore
}

// NewHandlers creates role handlers
func NewHandlers(service *Service, userStore UserStore) *Handlers {
	return &Handlers{service: service, users: userStore}
}

// RegisterRoutes registers the role routes. Non-numeric ids do not match.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/roles", h.Insert).Methods(http.MethodPost)
	router.HandleFunc("/api/roles/{id:[0-9]+}", h.Get).Methods(http.MethodGet)
	router.HandleFunc("/api/roles/{id:[0-9]+}", h.Update).Methods(http.MethodPatch)
	router.HandleFunc("/api/roles/{id:[0-9]+}/trash", h.Trash).Methods(http.MethodPost)
	router.HandleFunc("/api/roles/{id:[0-9]+}/restore", h.Restore).Methods(http.MethodPost)
	router.HandleFunc("/api/roles/{id:[0-9]+}/delete", h.Delete).Methods(http.MethodDelete)
	router.HandleFunc("/api/roles/{id:[0-9]+}/members", h.Members).Methods(http.MethodGet)
	router.HandleFunc("/api/roles/{id:[0-9]+}/members/add/{userId:[0-9]+}", h.AddMember).Methods(http.MethodPost)
}

// Insert creates a role
func (h *Handlers) Insert(w http.ResponseWriter, r *http.Request) {
	var req InsertRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	role, err := h.service.Insert(r.Context(), req, contextkeys.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, 0, 0, err)
		return
	}
	h.record(r, audit.EventTypeRoleCreate, role.ID, "role created")

	view, err := h.render(r.Context(), role)
	if err != nil {
		h.writeError(w, r, role.ID, 0, err)
		return
	}
	_ = httputil.WriteCreated(w, fmt.Sprintf("/api/roles/%d", role.ID), view)
}

// Get returns a role. ?trashed=true also finds trashed roles.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	trashed, err := httputil.ParseQueryBool(r, "trashed", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	role, err := h.service.Get(r.Context(), id, trashed)
	h.respond(w, r, id, role, err)
}

// Update applies a partial update to a role
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var patch RolePatch
	if !httputil.ParseJSONOrError(w, r, &patch) {
		return
	}

	role, err := h.service.Update(r.Context(), id, patch, contextkeys.GetUserID(r.Context()))
	if err == nil {
		h.record(r, audit.EventTypeRoleUpdate, id, "role updated")
	}
	h.respond(w, r, id, role, err)
}

// Trash moves a role to the trash
func (h *Handlers) Trash(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	role, err := h.service.Trash(r.Context(), id)
	if err == nil {
		h.record(r, audit.EventTypeRoleTrash, id, "role trashed")
	}
	h.respond(w, r, id, role, err)
}

// Restore takes a role out of the trash
func (h *Handlers) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	role, err := h.service.Restore(r.Context(), id)
	if err == nil {
		h.record(r, audit.EventTypeRoleRestore, id, "role restored")
	}
	h.respond(w, r, id, role, err)
}

// Delete permanently removes a role and returns its last representation
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	// Render first: membership rows go away with the role.
	role, err := h.service.Get(ctx, id, false)
	if err != nil {
		h.writeError(w, r, id, 0, err)
		return
	}
	view, err := h.render(ctx, role)
	if err != nil {
		h.writeError(w, r, id, 0, err)
		return
	}

	if _, err := h.service.Delete(ctx, id); err != nil {
		h.writeError(w, r, id, 0, err)
		return
	}
	h.record(r, audit.EventTypeRoleDelete, id, "role deleted")
	_ = httputil.WriteSuccess(w, view)
}

// Members lists the users in a role
func (h *Handlers) Members(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	members, err := h.service.Members(r.Context(), id)
	if err != nil {
		h.writeError(w, r, id, 0, err)
		return
	}

	refs := make([]users.Ref, 0, len(members))
	for _, u := range members {
		refs = append(refs, u.Ref())
	}
	_ = httputil.WriteSuccess(w, refs)
}

// AddMember adds a user to a role and returns the user
func (h *Handlers) AddMember(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}

	user, err := h.service.AddMember(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, r, id, userID, err)
		return
	}

	event := audit.NewEvent(r.Context(), r, audit.EventTypeRoleMemberAdd, audit.EventStatusSuccess)
	event.ResourceType = audit.ResourceTypeRole
	event.ResourceID = strconv.FormatInt(id, 10)
	event.Message = "member added"
	event.Metadata = map[string]interface{}{"user_id": userID}
	if err := audit.FromContext(r.Context()).Log(r.Context(), event); err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("failed to record audit event")
	}

	_ = httputil.WriteSuccess(w, user.Ref())
}

func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, id int64, role *Role, err error) {
	if err != nil {
		h.writeError(w, r, id, 0, err)
		return
	}
	view, err := h.render(r.Context(), role)
	if err != nil {
		h.writeError(w, r, id, 0, err)
		return
	}
	_ = httputil.WriteSuccess(w, view)
}

// render builds the representation of role for the calling principal
func (h *Handlers) render(ctx context.Context, role *Role) (*View, error) {
	isMember, err := h.service.IsMember(ctx, role.ID, contextkeys.GetUserID(ctx))
	if err != nil {
		return nil, err
	}

	var ids []int64
	if role.CreatedBy != nil {
		ids = append(ids, *role.CreatedBy)
	}
	if role.ModifiedBy != nil {
		ids = append(ids, *role.ModifiedBy)
	}
	people, err := h.users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	view := &View{
		ID:         role.ID,
		Type:       "role",
		Name:       role.Name,
		IsMember:   isMember,
		CreatedAt:  role.CreatedAt,
		ModifiedAt: role.ModifiedAt,
		IsTrashed:  role.IsTrashed,
		Icon:       RoleIcon,
		Kind:       "role",
		URL:        fmt.Sprintf("/manage/roles/%d", role.ID),
	}
	if role.CreatedBy != nil {
		if u, ok := people[*role.CreatedBy]; ok {
			ref := u.Ref()
			view.CreatedBy = &ref
		}
	}
	if role.ModifiedBy != nil {
		if u, ok := people[*role.ModifiedBy]; ok {
			ref := u.Ref()
			view.ModifiedBy = &ref
		}
	}
	return view, nil
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, id, userID int64, err error) {
	switch {
	case errors.Is(err, users.ErrNotFound):
		httputil.WriteNotFoundError(w, fmt.Sprintf("User with id %d not found", userID))
	case errors.Is(err, ErrNotFound):
		httputil.WriteNotFoundError(w, fmt.Sprintf("Role with id %d not found", id))
	case errors.Is(err, ErrInvalid):
		httputil.WriteBadRequest(w, err.Error())
	default:
		observability.FromContext(r.Context()).WithError(err).WithField("role_id", id).Error("role operation failed")
		httputil.WriteInternalError(w)
	}
}

func (h *Handlers) record(r *http.Request, eventType audit.EventType, id int64, message string) {
	err := audit.Record(r.Context(), r, eventType, audit.EventStatusSuccess,
		audit.ResourceTypeRole, strconv.FormatInt(id, 10), message)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("failed to record audit event")
	}
}
