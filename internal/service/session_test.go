package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/mapping"
	"github.com/boddenberg/invoicing-bfa-go/internal/service"
	"github.com/boddenberg/invoicing-bfa-go/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSession_StartWithSessionLoadsData(t *testing.T) {
	loader := &mockLoader{clients: []mapping.ClientRecord{{ID: "c1", Name: "Acme"}}}
	store, _ := newTestStore(loader)
	auth := &mockAuth{session: &domain.Session{AccessToken: "tok", User: *owner}}
	sess := service.NewSession(auth, store, time.Second, zap.NewNop())
	defer sess.Close()

	sess.Start(context.Background())

	st := sess.Status()
	assert.Equal(t, service.PhaseReady, st.Phase)
	assert.True(t, st.Authenticated)
	require.NotNil(t, st.User)
	assert.Equal(t, "user-1", st.User.ID)

	s := store.State()
	assert.False(t, s.Loading)
	assert.Len(t, s.Clients, 1)
	assert.Equal(t, 1, loader.loads())
}

func TestSession_StartWithoutSessionIsAnonymous(t *testing.T) {
	store, _ := newTestStore(&mockLoader{})
	sess := service.NewSession(&mockAuth{}, store, time.Second, zap.NewNop())
	defer sess.Close()

	sess.Start(context.Background())

	st := sess.Status()
	assert.Equal(t, service.PhaseReady, st.Phase)
	assert.False(t, st.Authenticated)
	assert.False(t, store.State().Loading)
	assert.Equal(t, domain.DefaultSettings(), store.State().Settings)
}

func TestSession_TimeoutFallsBackToAnonymous(t *testing.T) {
	store, _ := newTestStore(&mockLoader{})
	auth := &mockAuth{
		session: &domain.Session{User: *owner},
		delay:   500 * time.Millisecond,
	}
	sess := service.NewSession(auth, store, 20*time.Millisecond, zap.NewNop())
	defer sess.Close()

	start := time.Now()
	sess.Start(context.Background())

	assert.Less(t, time.Since(start), 400*time.Millisecond, "start does not wait for the provider")
	assert.Nil(t, store.State().User)
	assert.False(t, store.State().Loading)
	assert.Equal(t, service.PhaseReady, sess.Status().Phase)
}

func TestSession_ProviderErrorFallsBackToAnonymous(t *testing.T) {
	store, _ := newTestStore(&mockLoader{})
	sess := service.NewSession(&mockAuth{err: errors.New("network down")}, store, time.Second, zap.NewNop())
	defer sess.Close()

	sess.Start(context.Background())

	assert.False(t, sess.Status().Authenticated)
	assert.False(t, store.State().Loading)
}

func TestSession_LoadFailureStillReady(t *testing.T) {
	store, _ := newTestStore(&mockLoader{failOn: "invoices"})
	auth := &mockAuth{session: &domain.Session{User: *owner}}
	sess := service.NewSession(auth, store, time.Second, zap.NewNop())
	defer sess.Close()

	sess.Start(context.Background())

	assert.Equal(t, service.PhaseReady, sess.Status().Phase)
	assert.NotNil(t, store.State().User)
	assert.False(t, store.State().Loading)
}

func TestSession_AuthChangeReloads(t *testing.T) {
	loader := &mockLoader{}
	store, _ := newTestStore(loader)
	auth := &mockAuth{}
	sess := service.NewSession(auth, store, time.Second, zap.NewNop())
	defer sess.Close()
	sess.Start(context.Background())
	require.Equal(t, 0, loader.loads())

	_, err := sess.SignIn(context.Background(), domain.Credentials{Email: "new@example.com", Password: "secret1"})
	require.NoError(t, err)

	assert.Equal(t, 1, loader.loads())
	require.NotNil(t, store.State().User)
	assert.Equal(t, "user-2", store.State().User.ID)

	store.Dispatch(context.Background(), state.NewAddClient(domain.Client{ID: "c1"}))
	require.NoError(t, sess.SignOut(context.Background()))

	assert.Nil(t, store.State().User)
	assert.Empty(t, store.State().Clients, "data reset on sign out")
	assert.False(t, sess.Status().Authenticated)
}

func TestSession_CloseStopsReacting(t *testing.T) {
	loader := &mockLoader{}
	store, _ := newTestStore(loader)
	auth := &mockAuth{}
	sess := service.NewSession(auth, store, time.Second, zap.NewNop())
	sess.Start(context.Background())

	sess.Close()
	_, err := sess.SignIn(context.Background(), domain.Credentials{Email: "new@example.com", Password: "secret1"})
	require.NoError(t, err)

	assert.Equal(t, 0, loader.loads())
	assert.Nil(t, store.State().User)
}

func TestSession_ClosedBeforeStartAppliesNothing(t *testing.T) {
	store, _ := newTestStore(&mockLoader{})
	sess := service.NewSession(&mockAuth{session: &domain.Session{User: *owner}}, store, time.Second, zap.NewNop())

	sess.Close()
	sess.Start(context.Background())

	assert.Nil(t, store.State().User)
	assert.True(t, store.State().Loading)
}

func TestSession_CredentialValidation(t *testing.T) {
	store, _ := newTestStore(&mockLoader{})
	sess := service.NewSession(&mockAuth{}, store, time.Second, zap.NewNop())
	defer sess.Close()

	_, err := sess.SignIn(context.Background(), domain.Credentials{Email: "", Password: "secret1"})
	var ve *domain.ErrValidation
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "email", ve.Field)

	_, err = sess.SignUp(context.Background(), domain.Credentials{Email: "a@example.com", Password: "123"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "password", ve.Field)
}
