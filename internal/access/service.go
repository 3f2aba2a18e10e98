package access

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/loan-desk/internal"
	accessDatamodel "github.com/frahmantamala/loan-desk/internal/core/datamodel/access"
	"github.com/google/uuid"
)

// RepositoryAPI is the permission-flag store. Lookups return nil, nil for
// missing rows. CreateFlag returns internal.ErrDuplicateFlagName when the
// name is taken.
type RepositoryAPI interface {
	CreateFlag(ctx context.Context, flag *accessDatamodel.PermissionFlag) error
	GetFlag(ctx context.Context, flagID string) (*accessDatamodel.PermissionFlag, error)
	ListFlags(ctx context.Context) ([]*accessDatamodel.PermissionFlag, error)
	// MutateActions applies add then remove in one transaction and returns
	// the resulting flag, or nil when the flag does not exist.
	MutateActions(ctx context.Context, flagID string, add, remove []string) (*accessDatamodel.PermissionFlag, error)

	AssignFlag(ctx context.Context, userID, flagID string) error
	UnassignFlag(ctx context.Context, userID, flagID string) (bool, error)
	FlagsOf(ctx context.Context, userID string) ([]*accessDatamodel.PermissionFlag, error)
	ActionsOf(ctx context.Context, userID string) ([]string, error)

	// PermissionEpoch is bumped in the same transaction as every assignment
	// or action-set change, by any process sharing the store.
	PermissionEpoch(ctx context.Context) (int64, error)
}

type Service struct {
	repo   RepositoryAPI
	cache  *allowedCache
	logger *slog.Logger
}

type Option func(*Service)

// WithoutCache makes every decision read the store.
func WithoutCache() Option {
	return func(s *Service) {
		s.cache = nil
	}
}

func NewService(repo RepositoryAPI, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		cache:  newAllowedCache(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreatePermissionFlag(ctx context.Context, dto CreateFlagDTO) (*PermissionFlag, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	flag := &PermissionFlag{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(dto.Name),
		Description: dto.Description,
		Actions:     NewActionSet(normalise(dto.Actions)...),
	}

	if err := s.repo.CreateFlag(ctx, ToDataModel(flag)); err != nil {
		if _, ok := internal.IsAppError(err); ok {
			return nil, err
		}
		s.logger.Error("failed to create permission flag", "name", flag.Name, "error", err)
		return nil, internal.NewStoreUnavailableError("create permission flag", err)
	}

	s.logger.Info("permission flag created", "flag_id", flag.ID, "name", flag.Name, "actions", flag.Actions.Sorted())
	return flag, nil
}

func (s *Service) GetFlag(ctx context.Context, flagID string) (*PermissionFlag, error) {
	data, err := s.repo.GetFlag(ctx, flagID)
	if err != nil {
		return nil, internal.NewStoreUnavailableError("get permission flag", err)
	}
	if data == nil {
		return nil, internal.ErrFlagNotFound.WithMessage(fmt.Sprintf("permission flag %s not found", flagID))
	}
	return FromDataModel(data), nil
}

func (s *Service) ListFlags(ctx context.Context) ([]*PermissionFlag, error) {
	rows, err := s.repo.ListFlags(ctx)
	if err != nil {
		return nil, internal.NewStoreUnavailableError("list permission flags", err)
	}
	return fromDataModels(rows), nil
}

// MutateActions adds then removes actions on one flag. Removing an action the
// flag does not have is a no-op. Every cached decision is dropped because any
// user holding the flag may be affected.
func (s *Service) MutateActions(ctx context.Context, flagID string, dto MutateActionsDTO) (*PermissionFlag, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	data, err := s.repo.MutateActions(ctx, flagID, toStrings(normalise(dto.Add)), toStrings(normalise(dto.Remove)))
	if err != nil {
		s.logger.Error("failed to mutate flag actions", "flag_id", flagID, "error", err)
		return nil, internal.NewStoreUnavailableError("mutate flag actions", err)
	}
	if data == nil {
		return nil, internal.ErrFlagNotFound.WithMessage(fmt.Sprintf("permission flag %s not found", flagID))
	}

	if s.cache != nil {
		s.cache.invalidateAll()
	}

	flag := FromDataModel(data)
	s.logger.Info("permission flag actions updated",
		"flag_id", flagID,
		"added", dto.Add,
		"removed", dto.Remove,
		"actions", flag.Actions.Sorted())
	return flag, nil
}

// Promote assigns a flag to a user. Assigning a held flag again is a no-op.
func (s *Service) Promote(ctx context.Context, userID, flagID string) error {
	if strings.TrimSpace(userID) == "" {
		return internal.ErrUserNotFound
	}
	if err := s.requireFlag(ctx, flagID); err != nil {
		return err
	}

	if err := s.repo.AssignFlag(ctx, userID, flagID); err != nil {
		s.logger.Error("failed to assign flag", "user_id", userID, "flag_id", flagID, "error", err)
		return internal.NewStoreUnavailableError("promote", err)
	}
	if s.cache != nil {
		s.cache.invalidateUser(userID)
	}

	s.logger.Info("user promoted", "user_id", userID, "flag_id", flagID)
	return nil
}

// Demote removes a flag from a user. Removing the last flag removes the
// user's assignment entirely.
func (s *Service) Demote(ctx context.Context, userID, flagID string) error {
	if err := s.requireFlag(ctx, flagID); err != nil {
		return err
	}

	removed, err := s.repo.UnassignFlag(ctx, userID, flagID)
	if err != nil {
		s.logger.Error("failed to unassign flag", "user_id", userID, "flag_id", flagID, "error", err)
		return internal.NewStoreUnavailableError("demote", err)
	}
	if !removed {
		return internal.ErrNotAssigned.WithMessage(fmt.Sprintf("user %s does not hold flag %s", userID, flagID))
	}
	if s.cache != nil {
		s.cache.invalidateUser(userID)
	}

	s.logger.Info("user demoted", "user_id", userID, "flag_id", flagID)
	return nil
}

func (s *Service) requireFlag(ctx context.Context, flagID string) error {
	flag, err := s.repo.GetFlag(ctx, flagID)
	if err != nil {
		return internal.NewStoreUnavailableError("lookup permission flag", err)
	}
	if flag == nil {
		return internal.ErrInvalidFlag.WithMessage(fmt.Sprintf("permission flag %s does not exist", flagID))
	}
	return nil
}

// AllowedActions is the union of the action sets of every flag the user holds.
// A cached set is only trusted while the store's permission epoch is the one
// it was read under, so changes made by other processes are seen at once.
func (s *Service) AllowedActions(ctx context.Context, userID string) (ActionSet, error) {
	var generation uint64
	if s.cache != nil {
		epoch, err := s.repo.PermissionEpoch(ctx)
		if err != nil {
			return nil, internal.NewStoreUnavailableError("permission epoch", err)
		}
		set, gen, ok := s.cache.get(userID, epoch)
		if ok {
			return set, nil
		}
		generation = gen
	}

	actions, err := s.repo.ActionsOf(ctx, userID)
	if err != nil {
		return nil, internal.NewStoreUnavailableError("allowed actions", err)
	}

	set := make(ActionSet, len(actions))
	for _, a := range actions {
		set[Action(a)] = struct{}{}
	}
	if s.cache != nil {
		s.cache.put(userID, set, generation)
	}
	return set, nil
}

// IsAllowed never fails: unknown users, users without flags and store
// errors all deny.
func (s *Service) IsAllowed(ctx context.Context, userID string, action Action) bool {
	if strings.TrimSpace(userID) == "" || action == "" {
		return false
	}
	set, err := s.AllowedActions(ctx, userID)
	if err != nil {
		s.logger.Warn("permission lookup failed, denying", "user_id", userID, "action", action, "error", err)
		return false
	}
	return set.Has(action)
}

func (s *Service) FlagsOf(ctx context.Context, userID string) ([]*PermissionFlag, error) {
	rows, err := s.repo.FlagsOf(ctx, userID)
	if err != nil {
		return nil, internal.NewStoreUnavailableError("flags of user", err)
	}
	return fromDataModels(rows), nil
}

// HasAnyRole reports whether the user has an assignment record at all.
func (s *Service) HasAnyRole(ctx context.Context, userID string) (bool, error) {
	flags, err := s.FlagsOf(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(flags) > 0, nil
}

func normalise(actions []Action) []Action {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		out = append(out, ParseAction(string(a)))
	}
	return out
}

func fromDataModels(rows []*accessDatamodel.PermissionFlag) []*PermissionFlag {
	out := make([]*PermissionFlag, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out
}
