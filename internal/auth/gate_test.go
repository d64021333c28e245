package auth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"pharmadesk/m/domain"
	"pharmadesk/m/internal/auth"
	"pharmadesk/m/internal/store/jsonstore"
)

func newGate(t *testing.T) (*auth.Gate, *jsonstore.Store) {
	t.Helper()
	st, err := jsonstore.Open(t.TempDir())
	require.NoError(t, err)
	return auth.NewGate(st.Staff(), st.AuthEvents()), st
}

func seedAccount(t *testing.T, st *jsonstore.Store, username, password string) domain.StaffAccount {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	account, err := st.Staff().Append(context.Background(), domain.StaffAccount{
		ID:       uuid.NewString(),
		Role:     domain.RolePharmacist,
		Name:     "Pat Doe",
		Username: username,
		Password: string(hashed),
	})
	require.NoError(t, err)
	return account
}

func outcomes(t *testing.T, st *jsonstore.Store) []string {
	t.Helper()
	events, err := st.AuthEvents().List(context.Background())
	require.NoError(t, err)
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Outcome
	}
	return out
}

func TestAuthenticateSuccess(t *testing.T) {
	gate, st := newGate(t)
	seeded := seedAccount(t, st, "pdoe", "secret123")

	account, err := gate.Authenticate(context.Background(), "pdoe", "secret123")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, account.ID)
	assert.Empty(t, account.Password, "hash must not leak out of the gate")
	assert.Zero(t, account.FailedAttempts)
	assert.Equal(t, []string{domain.AuthOutcomeSuccess}, outcomes(t, st))
}

func TestAuthenticateUnknownUsername(t *testing.T) {
	gate, st := newGate(t)

	_, err := gate.Authenticate(context.Background(), "ghost", "whatever")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Equal(t, []string{domain.AuthOutcomeBadPassword}, outcomes(t, st))
}

func TestLockoutAfterFiveFailures(t *testing.T) {
	gate, st := newGate(t)
	seeded := seedAccount(t, st, "pdoe", "secret123")
	ctx := context.Background()

	for i := 1; i < auth.MaxFailedAttempts; i++ {
		_, err := gate.Authenticate(ctx, "pdoe", "wrong")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials, "attempt %d", i)

		account, err := st.Staff().Get(ctx, seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, i, account.FailedAttempts)
		assert.False(t, account.Locked)
	}

	// The fifth strike locks the account.
	_, err := gate.Authenticate(ctx, "pdoe", "wrong")
	assert.ErrorIs(t, err, auth.ErrAccountLocked)

	account, err := st.Staff().Get(ctx, seeded.ID)
	require.NoError(t, err)
	assert.True(t, account.Locked)
	assert.Equal(t, auth.MaxFailedAttempts, account.FailedAttempts)

	// A locked account rejects even the correct password.
	_, err = gate.Authenticate(ctx, "pdoe", "secret123")
	assert.ErrorIs(t, err, auth.ErrAccountLocked)

	assert.Equal(t, []string{
		domain.AuthOutcomeBadPassword,
		domain.AuthOutcomeBadPassword,
		domain.AuthOutcomeBadPassword,
		domain.AuthOutcomeBadPassword,
		domain.AuthOutcomeLocked,
		domain.AuthOutcomeLocked,
	}, outcomes(t, st))
}

func TestSuccessResetsFailureCounter(t *testing.T) {
	gate, st := newGate(t)
	seeded := seedAccount(t, st, "pdoe", "secret123")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := gate.Authenticate(ctx, "pdoe", "wrong")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	}
	_, err := gate.Authenticate(ctx, "pdoe", "secret123")
	require.NoError(t, err)

	account, err := st.Staff().Get(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Zero(t, account.FailedAttempts)
	assert.False(t, account.Locked)

	// Failures after a reset count from zero again.
	_, err = gate.Authenticate(ctx, "pdoe", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	account, err = st.Staff().Get(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, account.FailedAttempts)
}

func TestUnlockRestoresAccess(t *testing.T) {
	gate, st := newGate(t)
	seeded := seedAccount(t, st, "pdoe", "secret123")
	ctx := context.Background()

	for i := 0; i < auth.MaxFailedAttempts; i++ {
		gate.Authenticate(ctx, "pdoe", "wrong")
	}
	_, err := gate.Authenticate(ctx, "pdoe", "secret123")
	require.ErrorIs(t, err, auth.ErrAccountLocked)

	require.NoError(t, gate.Unlock(ctx, seeded.ID))

	account, err := st.Staff().Get(ctx, seeded.ID)
	require.NoError(t, err)
	assert.False(t, account.Locked)
	assert.Zero(t, account.FailedAttempts)

	_, err = gate.Authenticate(ctx, "pdoe", "secret123")
	assert.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	gate, st := newGate(t)
	seedAccount(t, st, "pdoe", "secret123")
	ctx := context.Background()

	err := gate.ChangePassword(ctx, "pdoe", "not-the-password", "newpass456")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	err = gate.ChangePassword(ctx, "pdoe", "secret123", "")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	require.NoError(t, gate.ChangePassword(ctx, "pdoe", "secret123", "newpass456"))

	_, err = gate.Authenticate(ctx, "pdoe", "secret123")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	account, err := gate.Authenticate(ctx, "pdoe", "newpass456")
	require.NoError(t, err)
	assert.False(t, account.FirstTimeLogin)
}
