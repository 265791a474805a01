package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/weavy/weavy/pkg/observability"
	"github.com/weavy/weavy/pkg/users"
)

// UserStore is the subset of users.Store the role service needs
type UserStore interface {
	Get(ctx context.Context, id int64) (*users.User, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]*users.User, error)
}

// Options tunes the role row cache. A zero CacheSize disables the cache and
// every lookup reads the store. Instances sharing one database must either
// disable the cache or set an Invalidator so that a mutation on one
// instance evicts the row on all of them.
type Options struct {
	CacheSize   int
	CacheTTL    time.Duration
	Invalidator Invalidator
}

// DefaultOptions returns the cache settings for a single instance
func DefaultOptions() Options {
	return Options{CacheSize: 1024, CacheTTL: 5 * time.Minute}
}

// Service implements the role operations on top of Store. Role rows are
// optionally cached by id and evicted on every mutation.
type Service struct {
	store       *Store
	users       UserStore
	cache       *lru.LRU[int64, *Role]
	invalidator Invalidator
	metrics     *observability.Metrics
}

// NewService creates a role service. metrics may be nil.
func NewService(store *Store, userStore UserStore, metrics *observability.Metrics, opts Options) *Service {
	s := &Service{
		store:   store,
		users:   userStore,
		metrics: metrics,
	}
	if opts.CacheSize > 0 {
		s.cache = lru.NewLRU[int64, *Role](opts.CacheSize, nil, opts.CacheTTL)
		s.invalidator = opts.Invalidator
	}
	return s
}

// Listen evicts rows mutated by other instances until ctx is done. It
// returns at once when there is no cache or no invalidator.
func (s *Service) Listen(ctx context.Context) error {
	if s.cache == nil || s.invalidator == nil {
		return nil
	}
	return s.invalidator.Subscribe(ctx, func(id int64) {
		s.cache.Remove(id)
	})
}

// evict drops the row locally and broadcasts the eviction. A failed
// broadcast is logged; the mutation itself has already succeeded.
func (s *Service) evict(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	s.cache.Remove(id)
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Publish(ctx, id); err != nil {
		observability.FromContext(ctx).WithError(err).WithField("role_id", id).Warn("Failed to broadcast role cache eviction")
	}
}

func (s *Service) start(ctx context.Context, op string, roleID int64) (context.Context, trace.Span) {
	ctx, span := observability.StartSpan(ctx, "roles."+op)
	if roleID != 0 {
		span.SetAttributes(attribute.Int64("role.id", roleID))
	}
	return ctx, span
}

func (s *Service) finish(span trace.Span, op string, err error) {
	outcome := "success"
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, users.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrInvalid):
		outcome = "invalid"
	case err != nil:
		outcome = "error"
		observability.RecordSpanError(span, err)
	}
	s.metrics.RecordRoleOperation(op, outcome)
	span.End()
}

// load returns a copy of the role row, trashed or not
func (s *Service) load(ctx context.Context, id int64) (*Role, error) {
	if s.cache == nil {
		return s.store.Get(ctx, id)
	}
	if role, ok := s.cache.Get(id); ok {
		s.metrics.RecordCache("roles", true)
		return role.clone(), nil
	}
	s.metrics.RecordCache("roles", false)

	role, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, role.clone())
	return role, nil
}

func (s *Service) lookup(ctx context.Context, id int64, trashed bool) (*Role, error) {
	role, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if role.IsTrashed && !trashed {
		return nil, NotFoundError(id)
	}
	return role, nil
}

// Get returns the role. Trashed roles are only found when trashed is true.
func (s *Service) Get(ctx context.Context, id int64, trashed bool) (role *Role, err error) {
	ctx, span := s.start(ctx, "get", id)
	defer func() { s.finish(span, "get", err) }()

	return s.lookup(ctx, id, trashed)
}

// Insert creates a role owned by actor (0 when anonymous) and returns the stored row
func (s *Service) Insert(ctx context.Context, req InsertRequest, actor int64) (role *Role, err error) {
	ctx, span := s.start(ctx, "insert", 0)
	defer func() { s.finish(span, "insert", err) }()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}

	role = &Role{Name: name}
	if actor != 0 {
		role.CreatedBy = &actor
	}
	if err := s.store.Insert(ctx, role); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("role.id", role.ID))

	return s.lookup(ctx, role.ID, false)
}

// Update applies the fields present in patch to a non-trashed role
func (s *Service) Update(ctx context.Context, id int64, patch RolePatch, actor int64) (role *Role, err error) {
	ctx, span := s.start(ctx, "update", id)
	defer func() { s.finish(span, "update", err) }()

	if err := patch.Validate(); err != nil {
		return nil, err
	}

	role, err = s.lookup(ctx, id, false)
	if err != nil {
		return nil, err
	}

	if patch.Apply(role) {
		now := time.Now().UTC()
		role.ModifiedAt = &now
		role.ModifiedBy = nil
		if actor != 0 {
			role.ModifiedBy = &actor
		}
		if err := s.store.Update(ctx, role); err != nil {
			return nil, err
		}
		s.evict(ctx, id)
	}

	return s.lookup(ctx, id, false)
}

// Trash moves the role to the trash. Trashing a trashed role is a no-op.
func (s *Service) Trash(ctx context.Context, id int64) (role *Role, err error) {
	ctx, span := s.start(ctx, "trash", id)
	defer func() { s.finish(span, "trash", err) }()

	return s.setTrashed(ctx, id, true)
}

// Restore takes the role out of the trash. Restoring a live role is a no-op.
func (s *Service) Restore(ctx context.Context, id int64) (role *Role, err error) {
	ctx, span := s.start(ctx, "restore", id)
	defer func() { s.finish(span, "restore", err) }()

	return s.setTrashed(ctx, id, false)
}

func (s *Service) setTrashed(ctx context.Context, id int64, trashed bool) (*Role, error) {
	role, err := s.lookup(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if role.IsTrashed != trashed {
		if err := s.store.SetTrashed(ctx, id, trashed); err != nil {
			return nil, err
		}
		s.evict(ctx, id)
	}
	return s.lookup(ctx, id, true)
}

// Delete permanently removes a non-trashed role and returns its last state
func (s *Service) Delete(ctx context.Context, id int64) (role *Role, err error) {
	ctx, span := s.start(ctx, "delete", id)
	defer func() { s.finish(span, "delete", err) }()

	role, err = s.lookup(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return nil, err
	}
	s.evict(ctx, id)
	return role, nil
}

// Members returns the users in a non-trashed role
func (s *Service) Members(ctx context.Context, id int64) (members []*users.User, err error) {
	ctx, span := s.start(ctx, "members", id)
	defer func() { s.finish(span, "members", err) }()

	if _, err := s.lookup(ctx, id, false); err != nil {
		return nil, err
	}

	ids, err := s.store.MemberIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	found, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	members = make([]*users.User, 0, len(ids))
	for _, uid := range ids {
		if u, ok := found[uid]; ok {
			members = append(members, u)
		}
	}
	return members, nil
}

// AddMember adds the user to a non-trashed role and returns the user
func (s *Service) AddMember(ctx context.Context, id, userID int64) (user *users.User, err error) {
	ctx, span := s.start(ctx, "add_member", id)
	span.SetAttributes(attribute.Int64("user.id", userID))
	defer func() { s.finish(span, "add_member", err) }()

	if _, err := s.lookup(ctx, id, false); err != nil {
		return nil, err
	}
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.store.AddMember(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.users.Get(ctx, userID)
}

// IsMember reports whether the user belongs to the role
func (s *Service) IsMember(ctx context.Context, id, userID int64) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	return s.store.IsMember(ctx, id, userID)
}
