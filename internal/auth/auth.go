// Package auth implements the AuthEngine component (spec section 4.5):
// password login with 2FA dispatch, refresh-token login, and the
// credential-changing operations that rotate a user's security stamp.
package auth

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/gofrs/uuid/v5"

	"github.com/vaultkeep/server/internal/crypto"
	"github.com/vaultkeep/server/internal/errs"
	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/ratelimit"
	"github.com/vaultkeep/server/internal/store"
	"github.com/vaultkeep/server/internal/token"
	"github.com/vaultkeep/server/internal/twofactor"
)

// Notifier is the narrow dependency Engine needs to push LogOut to a
// user's other devices after a credential-changing operation.
type Notifier interface {
	NotifyLogOut(ctx context.Context, userID uuid.UUID, exceptDeviceID uuid.UUID) error
}

// Engine implements password_login, refresh_login and the credential-
// changing operations of AuthEngine.
type Engine struct {
	Users      store.Users
	Devices    store.Devices
	TwoFactors store.TwoFactors
	Events     store.Events
	Limiter    ratelimit.Limiter
	Codec      *token.Codec
	Registry   *twofactor.Registry
	Notifier   Notifier

	Now func() time.Time
}

// New builds an Engine from its dependencies.
func New(users store.Users, devices store.Devices, tf store.TwoFactors, events store.Events,
	lim ratelimit.Limiter, codec *token.Codec, registry *twofactor.Registry, notifier Notifier) *Engine {
	return &Engine{
		Users: users, Devices: devices, TwoFactors: tf, Events: events,
		Limiter: lim, Codec: codec, Registry: registry, Notifier: notifier,
		Now: time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// timingJitter sleeps for a random 100ms–1s, returning early if ctx is
// done. PasswordLogin calls it on the unknown-user branch.
func timingJitter(ctx context.Context) {
	t := time.NewTimer(100*time.Millisecond + rand.N(900*time.Millisecond))
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// stampChecker adapts store.Users to token.StampChecker, binding a
// context for the duration of one verification.
type stampChecker struct {
	ctx   context.Context
	users store.Users
}

func (s stampChecker) CurrentSecurityStamp(userID string) (string, error) {
	id, err := uuid.FromString(userID)
	if err != nil {
		return "", err
	}
	return s.users.CurrentSecurityStamp(s.ctx, id)
}

// StampChecker returns a token.StampChecker bound to ctx, for callers
// verifying a LoginAccess token outside of Engine (e.g. HTTP middleware).
func (e *Engine) StampChecker(ctx context.Context) token.StampChecker {
	return stampChecker{ctx: ctx, users: e.Users}
}

// DeviceInfo identifies the client device attempting to authenticate.
type DeviceInfo struct {
	ID       uuid.UUID
	Type     model.DeviceType
	Name     string
	PushUUID string
}

// PasswordLoginRequest is the input to PasswordLogin.
type PasswordLoginRequest struct {
	Email               string
	MasterPasswordHash  []byte
	Device              DeviceInfo
	Scope               string
	ClientIP            string
	TwoFactorProvider    *model.TwoFactorKind
	TwoFactorToken       string
	TwoFactorRemember    bool
}

// TwoFactorChallenge describes one outstanding provider's client-facing
// challenge material.
type TwoFactorChallenge struct {
	Kind    model.TwoFactorKind
	Payload []byte
}

// PasswordLoginResult is either a completed login or, when a durable 2FA
// provider is outstanding, the set of challenges the client must answer.
type PasswordLoginResult struct {
	TwoFactorRequired bool
	Challenges        []TwoFactorChallenge

	AccessToken          string
	AccessTokenExpiresAt time.Time
	RefreshToken         string
	TwoFactorRememberTok string
}

// PasswordLogin implements spec 4.5's password_login algorithm.
func (e *Engine) PasswordLogin(ctx context.Context, req PasswordLoginRequest) (*PasswordLoginResult, error) {
	ipHash := ratelimit.HashIP(req.ClientIP)

	allowed, _, err := e.Limiter.Allow(ctx, req.Email, ipHash)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errs.New(errs.KindTooManyRequests, "too many login attempts, try again later")
	}

	user, err := e.Users.GetUserByEmail(ctx, req.Email)
	invalid := errs.New(errs.KindAuthenticationFailed, "username or password is incorrect")
	if err != nil {
		_, _, _ = e.Limiter.Failure(ctx, req.Email, ipHash)
		timingJitter(ctx)
		return nil, invalid
	}
	if !crypto.VerifyPassword(req.MasterPasswordHash, user.Salt, user.PasswordHash, user.PasswordIterations) {
		if blocked, _, ferr := e.Limiter.Failure(ctx, req.Email, ipHash); ferr == nil && blocked {
			return nil, errs.New(errs.KindTooManyRequests, "too many login attempts, try again later")
		}
		return nil, invalid
	}

	device, err := e.resolveDevice(ctx, user.ID, req.Device)
	if err != nil {
		return nil, err
	}

	if req.TwoFactorProvider != nil && *req.TwoFactorProvider == model.TwoFactorRemember {
		if device.TwoFactorRemember == "" || !crypto.CtEq([]byte(device.TwoFactorRemember), []byte(req.TwoFactorToken)) {
			return nil, errs.New(errs.KindAuthenticationFailed, "invalid remember token")
		}
	} else {
		rows, err := e.TwoFactors.ListTwoFactorsByUser(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		durable := make([]model.TwoFactor, 0, len(rows))
		for _, tf := range rows {
			if tf.Enabled && tf.Kind.IsDurable() {
				durable = append(durable, tf)
			}
		}

		if len(durable) > 0 {
			if req.TwoFactorProvider == nil {
				_ = e.Limiter.Success(ctx, req.Email, ipHash)
				return e.buildChallenges(ctx, user, durable)
			}

			provider, ok := e.Registry.Provider(*req.TwoFactorProvider)
			if !ok {
				return nil, errs.New(errs.KindAuthenticationFailed, "unsupported two-factor provider")
			}
			var matching *model.TwoFactor
			for i := range durable {
				if durable[i].Kind == *req.TwoFactorProvider {
					matching = &durable[i]
					break
				}
			}
			if matching == nil {
				return nil, errs.New(errs.KindAuthenticationFailed, "two-factor provider not enabled")
			}
			if err := provider.Verify(ctx, user, matching, req.TwoFactorToken, req.ClientIP); err != nil {
				e.logEvent(ctx, model.EventUserFailedLogIn2FA, &user.ID, req.ClientIP, device.Type)
				return nil, errs.Wrap(errs.KindAuthenticationFailed, "two-factor verification failed", err)
			}
		}
	}

	_ = e.Limiter.Success(ctx, req.Email, ipHash)

	access, exp, err := e.Codec.IssueLoginAccess(user.ID.String(), device.ID.String(), user.SecurityStamp, req.Scope, nil)
	if err != nil {
		return nil, err
	}

	refresh, err := crypto.GenerateAPIKey()
	if err != nil {
		return nil, err
	}
	device.RefreshToken = refresh

	result := &PasswordLoginResult{AccessToken: access, AccessTokenExpiresAt: exp, RefreshToken: refresh}

	if req.TwoFactorRemember {
		rememberTok, err := crypto.GenerateAPIKey()
		if err != nil {
			return nil, err
		}
		device.TwoFactorRemember = rememberTok
		result.TwoFactorRememberTok = rememberTok
	}

	if err := e.Devices.SaveDevice(ctx, device); err != nil {
		return nil, err
	}

	e.logEvent(ctx, model.EventUserLoggedIn, &user.ID, req.ClientIP, device.Type)
	return result, nil
}

// resolveDevice locates or creates a Device for info.ID, recreating it
// if it was previously owned by a different user (spec 4.5 step 7).
func (e *Engine) resolveDevice(ctx context.Context, userID uuid.UUID, info DeviceInfo) (*model.Device, error) {
	existing, err := e.Devices.GetDevice(ctx, info.ID)
	if err == nil {
		if existing.UserID != userID {
			if err := e.Devices.DeleteDevice(ctx, existing.ID); err != nil {
				return nil, err
			}
		} else {
			existing.Name = info.Name
			existing.Type = info.Type
			existing.PushUUID = info.PushUUID
			return existing, nil
		}
	} else if errs.KindOf(err) != errs.KindNotFound {
		return nil, err
	}

	return &model.Device{ID: info.ID, UserID: userID, Type: info.Type, Name: info.Name, PushUUID: info.PushUUID}, nil
}

func (e *Engine) buildChallenges(ctx context.Context, user *model.User, durable []model.TwoFactor) (*PasswordLoginResult, error) {
	challenges := make([]TwoFactorChallenge, 0, len(durable))
	for _, tf := range durable {
		row := tf
		provider, ok := e.Registry.Provider(tf.Kind)
		if !ok {
			continue
		}
		payload, err := provider.Present(ctx, user, &row)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, TwoFactorChallenge{Kind: tf.Kind, Payload: payload})
	}
	e.logEvent(ctx, model.EventUserLoggedInIncomplete2FA, &user.ID, "", model.DeviceUnknown)
	return &PasswordLoginResult{TwoFactorRequired: true, Challenges: challenges}, nil
}

func (e *Engine) logEvent(ctx context.Context, kind model.EventType, userID *uuid.UUID, ip string, deviceType model.DeviceType) {
	if e.Events == nil {
		return
	}
	_ = e.Events.SaveEvent(ctx, &model.Event{
		ID: uuid.Must(uuid.NewV4()), Type: kind, ActorUserID: userID,
		IP: ip, DeviceType: deviceType, Timestamp: e.now(),
	})
}

// RefreshLogin implements spec 4.5's refresh_login: the refresh token is
// not invalidated by use, only by security-stamp rotation.
func (e *Engine) RefreshLogin(ctx context.Context, refreshToken, scope string) (*PasswordLoginResult, error) {
	device, err := e.Devices.GetDeviceByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, errs.New(errs.KindAuthenticationFailed, "invalid refresh token")
	}
	user, err := e.Users.GetUser(ctx, device.UserID)
	if err != nil {
		return nil, errs.New(errs.KindAuthenticationFailed, "invalid refresh token")
	}

	access, exp, err := e.Codec.IssueLoginAccess(user.ID.String(), device.ID.String(), user.SecurityStamp, scope, nil)
	if err != nil {
		return nil, err
	}
	return &PasswordLoginResult{AccessToken: access, AccessTokenExpiresAt: exp, RefreshToken: refreshToken}, nil
}

// rotateStamp generates a fresh opaque security stamp, invalidating
// every token and refresh session issued before this call.
func rotateStamp() (string, error) { return crypto.GenerateAPIKey() }

// SetPassword verifies the current master-password-hash, installs the
// new hash/salt/iterations, rotates the security stamp, and logs out the
// user's other devices (spec 4.5).
func (e *Engine) SetPassword(ctx context.Context, userID uuid.UUID, currentHash, newHash []byte, newSalt []byte, iterations int, currentDeviceID uuid.UUID) error {
	user, err := e.Users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !crypto.VerifyPassword(currentHash, user.Salt, user.PasswordHash, user.PasswordIterations) {
		return errs.New(errs.KindAuthenticationFailed, "invalid current password")
	}
	user.Salt = newSalt
	user.PasswordHash = crypto.HashPassword(newHash, newSalt, iterations)
	user.PasswordIterations = iterations
	return e.rotateAndLogOut(ctx, user, currentDeviceID)
}

// SetKDF updates the advertised client-side KDF parameters and rotates
// the security stamp (spec 4.5).
func (e *Engine) SetKDF(ctx context.Context, userID uuid.UUID, currentHash []byte, kdfType model.KDFType, iterations, memory, parallelism int, currentDeviceID uuid.UUID) error {
	user, err := e.Users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !crypto.VerifyPassword(currentHash, user.Salt, user.PasswordHash, user.PasswordIterations) {
		return errs.New(errs.KindAuthenticationFailed, "invalid current password")
	}
	user.ClientKdfType = kdfType
	user.ClientKdfIterations = iterations
	user.ClientKdfMemory = memory
	user.ClientKdfParallelism = parallelism
	return e.rotateAndLogOut(ctx, user, currentDeviceID)
}

// ChangeEmail verifies the current password, updates the lowercased
// email, and rotates the security stamp (spec 4.5).
func (e *Engine) ChangeEmail(ctx context.Context, userID uuid.UUID, currentHash []byte, newEmail string, currentDeviceID uuid.UUID) error {
	user, err := e.Users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !crypto.VerifyPassword(currentHash, user.Salt, user.PasswordHash, user.PasswordIterations) {
		return errs.New(errs.KindAuthenticationFailed, "invalid current password")
	}
	newEmail = strings.ToLower(newEmail)
	if !govalidator.IsEmail(newEmail) {
		return errs.New(errs.KindValidationFailed, "invalid email address")
	}
	user.Email = newEmail
	return e.rotateAndLogOut(ctx, user, currentDeviceID)
}

// RotateSecurityStamp forces a fresh stamp without any other change,
// e.g. an explicit "log out everywhere" request.
func (e *Engine) RotateSecurityStamp(ctx context.Context, userID uuid.UUID, currentDeviceID uuid.UUID) error {
	user, err := e.Users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	return e.rotateAndLogOut(ctx, user, currentDeviceID)
}

func (e *Engine) rotateAndLogOut(ctx context.Context, user *model.User, currentDeviceID uuid.UUID) error {
	stamp, err := rotateStamp()
	if err != nil {
		return err
	}
	user.SecurityStamp = stamp
	if err := e.Users.SaveUser(ctx, user); err != nil {
		return err
	}
	e.logEvent(ctx, model.EventUserChangedPassword, &user.ID, "", model.DeviceUnknown)
	if e.Notifier != nil {
		return e.Notifier.NotifyLogOut(ctx, user.ID, currentDeviceID)
	}
	return nil
}
