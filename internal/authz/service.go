package authz

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Service is the process-level snapshot cache sitting in front of the
// Resolver. Concurrent requests for the same user share one resolution via
// singleflight. Role administration and role re-assignment invalidate
// entries so stale grants never outlive a matrix edit.
type Service struct {
	resolver *Resolver
	logger   *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[uuid.UUID]UserPermissions
}

// NewService constructs a Service.
func NewService(resolver *Resolver, logger *slog.Logger) *Service {
	return &Service{
		resolver: resolver,
		logger:   logger,
		cache:    make(map[uuid.UUID]UserPermissions),
	}
}

// Resolve returns the cached snapshot for a user, resolving on miss.
//
// On resolution failure a previously cached snapshot is returned untouched;
// a refresh failing must not clear good permissions. Without a cached entry
// the error propagates and nothing is stored.
func (s *Service) Resolve(ctx context.Context, userID uuid.UUID) (UserPermissions, error) {
	s.mu.RLock()
	cached, ok := s.cache[userID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := s.group.Do(userID.String(), func() (any, error) {
		perms, err := s.resolver.Resolve(ctx, userID)
		if err != nil {
			return UserPermissions{}, err
		}
		s.mu.Lock()
		s.cache[userID] = perms
		s.mu.Unlock()
		return perms, nil
	})
	if err != nil {
		s.mu.RLock()
		cached, ok := s.cache[userID]
		s.mu.RUnlock()
		if ok {
			if s.logger != nil {
				s.logger.Warn("permission refresh failed, serving cached snapshot",
					slog.String("user_id", userID.String()), slog.Any("error", err))
			}
			return cached, nil
		}
		return UserPermissions{}, err
	}
	return v.(UserPermissions), nil
}

// Invalidate drops the cached snapshot for one user.
func (s *Service) Invalidate(userID uuid.UUID) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}

// InvalidateAll drops every cached snapshot. Called after a role's
// permission matrix changes, since any user may hold that role.
func (s *Service) InvalidateAll() {
	s.mu.Lock()
	s.cache = make(map[uuid.UUID]UserPermissions)
	s.mu.Unlock()
}
