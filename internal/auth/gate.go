// Package auth implements the credential gate and account-lockout state
// machine used at login.
package auth

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pharmadesk/m/domain"
	"pharmadesk/m/internal/store"
)

// MaxFailedAttempts is the strike count at which an account locks.
const MaxFailedAttempts = 5

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
)

// Gate validates username/password pairs against the staff collection and
// maintains each account's failed-attempt counter and locked flag. Every
// attempt, including attempts against locked accounts, lands on the audit
// trail.
type Gate struct {
	staff  store.Collection[domain.StaffAccount]
	events store.Collection[domain.AuthEvent]

	// Now is swappable for tests.
	Now func() time.Time
}

func NewGate(staff store.Collection[domain.StaffAccount], events store.Collection[domain.AuthEvent]) *Gate {
	return &Gate{staff: staff, events: events, Now: time.Now}
}

// Authenticate checks the pair and applies the lockout rules:
//   - unknown username or wrong password -> ErrInvalidCredentials;
//   - the failed attempt that reaches MaxFailedAttempts locks the account
//     and reports ErrAccountLocked;
//   - a locked account rejects every attempt with ErrAccountLocked, even
//     with the correct password;
//   - success resets the counter to zero and returns the account with its
//     password hash blanked.
func (g *Gate) Authenticate(ctx context.Context, username, password string) (domain.StaffAccount, error) {
	account, err := g.findByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.record(ctx, username, domain.AuthOutcomeBadPassword)
			return domain.StaffAccount{}, ErrInvalidCredentials
		}
		return domain.StaffAccount{}, err
	}

	if account.Locked {
		g.record(ctx, username, domain.AuthOutcomeLocked)
		return domain.StaffAccount{}, ErrAccountLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(password)) != nil {
		updated, err := g.staff.Update(ctx, account.ID, func(a *domain.StaffAccount) error {
			a.FailedAttempts++
			if a.FailedAttempts >= MaxFailedAttempts {
				a.Locked = true
			}
			return nil
		})
		if err != nil {
			return domain.StaffAccount{}, err
		}
		if updated.Locked {
			g.record(ctx, username, domain.AuthOutcomeLocked)
			return domain.StaffAccount{}, ErrAccountLocked
		}
		g.record(ctx, username, domain.AuthOutcomeBadPassword)
		return domain.StaffAccount{}, ErrInvalidCredentials
	}

	updated, err := g.staff.Update(ctx, account.ID, func(a *domain.StaffAccount) error {
		a.FailedAttempts = 0
		return nil
	})
	if err != nil {
		return domain.StaffAccount{}, err
	}
	g.record(ctx, username, domain.AuthOutcomeSuccess)
	updated.Password = ""
	return updated, nil
}

// Unlock clears the lock and the failed-attempt counter. No password is
// verified; the caller is responsible for restricting this to managers.
func (g *Gate) Unlock(ctx context.Context, id string) error {
	_, err := g.staff.Update(ctx, id, func(a *domain.StaffAccount) error {
		a.FailedAttempts = 0
		a.Locked = false
		return nil
	})
	return err
}

// ChangePassword overwrites the stored hash after verifying the current
// password, and clears the first-time-login flag.
func (g *Gate) ChangePassword(ctx context.Context, username, current, newPassword string) error {
	if newPassword == "" {
		return ErrInvalidCredentials
	}
	account, err := g.findByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = g.staff.Update(ctx, account.ID, func(a *domain.StaffAccount) error {
		a.Password = string(hashed)
		a.FirstTimeLogin = false
		return nil
	})
	return err
}

func (g *Gate) findByUsername(ctx context.Context, username string) (domain.StaffAccount, error) {
	accounts, err := g.staff.List(ctx)
	if err != nil {
		return domain.StaffAccount{}, err
	}
	for _, account := range accounts {
		if account.Username == username {
			return account, nil
		}
	}
	return domain.StaffAccount{}, store.ErrNotFound
}

// record appends an audit event. Audit failures are logged but never fail
// the attempt itself.
func (g *Gate) record(ctx context.Context, username, outcome string) {
	_, err := g.events.Append(ctx, domain.AuthEvent{
		ID:       uuid.NewString(),
		Time:     g.Now(),
		Username: username,
		Outcome:  outcome,
	})
	if err != nil {
		log.Printf("unable to record auth event for %s: %v", username, err)
	}
}
