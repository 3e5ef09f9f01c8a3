// Package access maps caller identities to roles and visibility scopes.
package access

import (
	"context"
	"fmt"

	"kasbuku/internal/core"
	"kasbuku/internal/ledger"
)

// Controller resolves a caller's role and computes the visibility scope
// every read and aggregation path is composed with. Role resolution order:
// explicit stored assignment, bootstrap admin list from configuration,
// saved profile (user), guest.
type Controller struct {
	store           ledger.Store
	bootstrapAdmins map[core.CallerID]struct{}
}

func NewController(store ledger.Store, bootstrapAdmins []core.CallerID) *Controller {
	admins := make(map[core.CallerID]struct{}, len(bootstrapAdmins))
	for _, id := range bootstrapAdmins {
		admins[id] = struct{}{}
	}
	return &Controller{store: store, bootstrapAdmins: admins}
}

func (c *Controller) RoleOf(ctx context.Context, caller core.CallerID) (core.Role, error) {
	if caller == "" {
		return core.RoleGuest, nil
	}

	role, ok, err := c.store.GetRoleAssignment(ctx, caller)
	if err != nil {
		return "", fmt.Errorf("get role assignment: %w", err)
	}
	if ok {
		return role, nil
	}

	if _, ok := c.bootstrapAdmins[caller]; ok {
		return core.RoleAdmin, nil
	}

	profile, err := c.store.GetProfile(ctx, caller)
	if err != nil {
		return "", fmt.Errorf("get profile: %w", err)
	}
	if profile != nil {
		return core.RoleUser, nil
	}
	return core.RoleGuest, nil
}

// AssignRole stores an explicit role for target. Only admins may call it.
func (c *Controller) AssignRole(ctx context.Context, actor, target core.CallerID, role core.Role) error {
	actorRole, err := c.RoleOf(ctx, actor)
	if err != nil {
		return err
	}
	if !actorRole.IsAdmin() {
		return fmt.Errorf("%w: only admins may assign roles", core.ErrUnauthorized)
	}
	if _, err := core.ParseRole(string(role)); err != nil {
		return err
	}
	return c.store.AssignRole(ctx, target, role)
}

// ScopeFor computes the caller's own visibility scope: admins see all
// records, everyone else sees only records they own.
func (c *Controller) ScopeFor(ctx context.Context, caller core.CallerID) (core.Scope, error) {
	role, err := c.RoleOf(ctx, caller)
	if err != nil {
		return core.Scope{}, err
	}
	if role.IsAdmin() {
		return core.ScopeAll(), nil
	}
	return core.ScopeOwner(caller), nil
}

// ScopeForOwner computes the scope for a report request that may name a
// different owner (admin-on-behalf-of-user). A nil owner means the
// caller's own scope; naming someone else requires the admin role.
func (c *Controller) ScopeForOwner(ctx context.Context, caller core.CallerID, owner *core.CallerID) (core.Scope, error) {
	if owner == nil || *owner == caller {
		if owner != nil {
			return core.ScopeOwner(*owner), nil
		}
		return c.ScopeFor(ctx, caller)
	}

	role, err := c.RoleOf(ctx, caller)
	if err != nil {
		return core.Scope{}, err
	}
	if !role.IsAdmin() {
		return core.Scope{}, fmt.Errorf("%w: cannot view another caller's records", core.ErrUnauthorized)
	}
	return core.ScopeOwner(*owner), nil
}
