package sso

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/appcuatri/backend/pkg/auth"
	"github.com/appcuatri/backend/pkg/storage"
)

// Provisioner reconciles a verified federated identity against the
// local account table: it links existing accounts by UID or email, and
// creates a new account when neither matches.
type Provisioner struct {
	users storage.UserStore
}

// NewProvisioner creates a new provisioner
func NewProvisioner(users storage.UserStore) *Provisioner {
	return &Provisioner{users: users}
}

// Reconcile returns the local account for an assertion, creating or
// linking as needed. The UID match always wins over the email match.
func (p *Provisioner) Reconcile(ctx context.Context, assertion *Assertion) (*auth.User, bool, error) {
	// Stored emails are lowercased; match the provider's casing to ours
	// so the link path finds existing accounts.
	assertion.Email = strings.ToLower(strings.TrimSpace(assertion.Email))

	user, err := p.users.GetUserByFirebaseUID(ctx, assertion.UID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up federated account: %w", err)
	}

	if assertion.Email != "" {
		user, err = p.users.GetUserByEmail(ctx, assertion.Email)
		if err == nil {
			return p.link(ctx, user, assertion)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, false, fmt.Errorf("failed to look up account by email: %w", err)
		}
	}

	return p.create(ctx, assertion)
}

// link attaches the federated identity to an existing local account
func (p *Provisioner) link(ctx context.Context, user *auth.User, assertion *Assertion) (*auth.User, bool, error) {
	if user.IsLinked() {
		// Same email, different UID: treat the UID on record as
		// authoritative and reject the assertion.
		return nil, false, fmt.Errorf("%w: account already linked to another identity", ErrInvalidIDToken)
	}

	uid := assertion.UID
	user.FirebaseUID = &uid
	user.AuthProvider = auth.AuthProvider(assertion.SignInProvider)
	user.EmailVerified = assertion.EmailVerified
	if assertion.Picture != "" {
		picture := assertion.Picture
		user.PhotoURL = &picture
	}

	if err := p.users.UpdateUser(ctx, user); err != nil {
		return nil, false, fmt.Errorf("failed to link federated identity: %w", err)
	}
	return user, false, nil
}

// create provisions a fresh account with no local credential
func (p *Provisioner) create(ctx context.Context, assertion *Assertion) (*auth.User, bool, error) {
	nombre, apellido := splitDisplayName(assertion.Name, assertion.Email)

	uid := assertion.UID
	user := &auth.User{
		Email:         assertion.Email,
		Nombre:        nombre,
		Apellido:      apellido,
		Activo:        true,
		EmailVerified: assertion.EmailVerified,
		FirebaseUID:   &uid,
		AuthProvider:  auth.AuthProvider(assertion.SignInProvider),
	}
	if assertion.Picture != "" {
		picture := assertion.Picture
		user.PhotoURL = &picture
	}

	err := p.users.CreateUser(ctx, user)
	if err == nil {
		return user, true, nil
	}

	// A concurrent login may have provisioned the same identity; fall
	// back to re-reading it.
	if errors.Is(err, storage.ErrConflict) {
		if existing, readErr := p.users.GetUserByFirebaseUID(ctx, assertion.UID); readErr == nil {
			return existing, false, nil
		}
		if assertion.Email != "" {
			if existing, readErr := p.users.GetUserByEmail(ctx, assertion.Email); readErr == nil {
				return existing, false, nil
			}
		}
	}

	return nil, false, fmt.Errorf("failed to provision federated account: %w", err)
}

// splitDisplayName derives nombre/apellido from the federated display
// name, falling back to the email local part.
func splitDisplayName(displayName, email string) (string, string) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		if at := strings.Index(email, "@"); at > 0 {
			return email[:at], ""
		}
		return "Usuario", ""
	}

	parts := strings.Fields(name)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
