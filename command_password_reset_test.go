package registry_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	registry "github.com/goliatone/go-registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHooks struct {
	createURL  string
	createData map[string]any
	resetURL   string
}

func (h testHooks) GetCreateHookURL() string          { return h.createURL }
func (h testHooks) GetCreateHookData() map[string]any { return h.createData }
func (h testHooks) GetResetHookURL() string           { return h.resetURL }

// resetHookServer captures the payload delivered to the reset webhook.
func resetHookServer(t *testing.T, status int) (*httptest.Server, *registry.ResetHookPayload) {
	t.Helper()

	captured := &registry.ResetHookPayload{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	return srv, captured
}

func TestPasswordResetRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := registry.NewRepositoryManager(db)
	ctx := context.Background()

	user := mustRegister(t, repo.Users(), ctx, &registry.User{
		Username: "jane",
		Email:    "jane@example.com",
	})
	originalHash := user.PasswordHash

	srv, delivered := resetHookServer(t, http.StatusOK)

	init := registry.NewInitializePasswordResetHandler(repo, testHooks{resetURL: srv.URL})

	var resp *registry.InitializePasswordResetResponse
	err := init.Execute(ctx, registry.InitializePasswordResetMessage{
		Email: "jane@example.com",
		OnResponse: func(r *registry.InitializePasswordResetResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.Delivered)

	// the hook received the token alongside the account fields
	assert.Equal(t, "jane", delivered.Username)
	assert.Equal(t, "jane@example.com", delivered.Email)
	require.NotEmpty(t, delivered.Token)

	// issuing rotated the password: the original credential is dead
	afterIssue, err := repo.Users().GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, originalHash, afterIssue.PasswordHash)
	assert.Error(t, registry.ComparePasswordAndHash("secret123", afterIssue.PasswordHash))

	finalize := registry.NewFinalizePasswordResetHandler(repo)
	err = finalize.Execute(ctx, registry.FinalizePasswordResetMessage{
		Token:    delivered.Token,
		Password: "chosen-password",
	})
	require.NoError(t, err)

	final, err := repo.Users().GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.NoError(t, registry.ComparePasswordAndHash("chosen-password", final.PasswordHash))
	assert.Nil(t, final.ResetToken)
	assert.Nil(t, final.ResetExpiresAt)

	// the token is single use
	err = finalize.Execute(ctx, registry.FinalizePasswordResetMessage{
		Token:    delivered.Token,
		Password: "another-password",
	})
	require.Error(t, err)
	assert.True(t, registry.HasTextCode(err, registry.TextCodeInvalidOrExpiredToken))
}

func TestInitializeUnknownEmail(t *testing.T) {
	db := setupTestDB(t)
	repo := registry.NewRepositoryManager(db)

	srv, _ := resetHookServer(t, http.StatusOK)
	init := registry.NewInitializePasswordResetHandler(repo, testHooks{resetURL: srv.URL})

	err := init.Execute(context.Background(), registry.InitializePasswordResetMessage{
		Email: "nobody@example.com",
	})

	require.Error(t, err)
	assert.True(t, registry.HasTextCode(err, registry.TextCodeInvalidEmail))
}

func TestInitializeHookMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := registry.NewRepositoryManager(db)
	ctx := context.Background()

	user := mustRegister(t, repo.Users(), ctx, &registry.User{
		Username: "jane",
		Email:    "jane@example.com",
	})
	originalHash := user.PasswordHash

	init := registry.NewInitializePasswordResetHandler(repo, testHooks{})

	err := init.Execute(ctx, registry.InitializePasswordResetMessage{Email: "jane@example.com"})
	require.Error(t, err)
	assert.True(t, registry.HasTextCode(err, registry.TextCodeResetHookMissing))

	// the account was never touched
	after, err := repo.Users().GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, originalHash, after.PasswordHash)
	assert.Nil(t, after.ResetToken)
}

func TestInitializeHookServerError(t *testing.T) {
	db := setupTestDB(t)
	repo := registry.NewRepositoryManager(db)
	ctx := context.Background()

	mustRegister(t, repo.Users(), ctx, &registry.User{
		Username: "jane",
		Email:    "jane@example.com",
	})

	srv, _ := resetHookServer(t, http.StatusBadGateway)
	init := registry.NewInitializePasswordResetHandler(repo, testHooks{resetURL: srv.URL})

	err := init.Execute(ctx, registry.InitializePasswordResetMessage{Email: "jane@example.com"})
	require.Error(t, err)
	assert.True(t, registry.HasTextCode(err, registry.TextCodeResetHookServerError))
}

func TestReissueOverwritesOutstandingToken(t *testing.T) {
	db := setupTestDB(t)
	repo := registry.NewRepositoryManager(db)
	ctx := context.Background()

	mustRegister(t, repo.Users(), ctx, &registry.User{
		Username: "jane",
		Email:    "jane@example.com",
	})

	srv, delivered := resetHookServer(t, http.StatusOK)
	init := registry.NewInitializePasswordResetHandler(repo, testHooks{resetURL: srv.URL})

	require.NoError(t, init.Execute(ctx, registry.InitializePasswordResetMessage{Email: "jane@example.com"}))
	firstToken := delivered.Token

	require.NoError(t, init.Execute(ctx, registry.InitializePasswordResetMessage{Email: "jane@example.com"}))
	secondToken := delivered.Token

	require.NotEqual(t, firstToken, secondToken)

	finalize := registry.NewFinalizePasswordResetHandler(repo)

	// the first token was overwritten and no longer redeems
	err := finalize.Execute(ctx, registry.FinalizePasswordResetMessage{
		Token:    firstToken,
		Password: "chosen-password",
	})
	require.Error(t, err)
	assert.True(t, registry.HasTextCode(err, registry.TextCodeInvalidOrExpiredToken))

	require.NoError(t, finalize.Execute(ctx, registry.FinalizePasswordResetMessage{
		Token:    secondToken,
		Password: "chosen-password",
	}))
}

func TestFinalizeExpiredToken(t *testing.T) {
	db := setupTestDB(t)
	repo := registry.NewRepositoryManager(db)
	ctx := context.Background()

	user := mustRegister(t, repo.Users(), ctx, &registry.User{
		Username: "jane",
		Email:    "jane@example.com",
	})

	hash, err := registry.HashPassword("rotated")
	require.NoError(t, err)

	expired := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, repo.Users().SetResetCredentials(ctx, user.ID, "expired-token", hash, expired))

	finalize := registry.NewFinalizePasswordResetHandler(repo)
	err = finalize.Execute(ctx, registry.FinalizePasswordResetMessage{
		Token:    "expired-token",
		Password: "chosen-password",
	})

	require.Error(t, err)
	assert.True(t, registry.HasTextCode(err, registry.TextCodeInvalidOrExpiredToken))

	// expired redemption leaves the stored credential as rotated
	after, err := repo.Users().GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.NoError(t, registry.ComparePasswordAndHash("rotated", after.PasswordHash))
}

func TestFinalizeEmptyAndUnknownToken(t *testing.T) {
	db := setupTestDB(t)
	repo := registry.NewRepositoryManager(db)

	finalize := registry.NewFinalizePasswordResetHandler(repo)

	err := finalize.Execute(context.Background(), registry.FinalizePasswordResetMessage{
		Token:    "",
		Password: "whatever",
	})
	require.Error(t, err)
	assert.True(t, registry.HasTextCode(err, registry.TextCodeInvalidOrExpiredToken))

	err = finalize.Execute(context.Background(), registry.FinalizePasswordResetMessage{
		Token:    "no-such-token",
		Password: "whatever",
	})
	require.Error(t, err)
	assert.True(t, registry.HasTextCode(err, registry.TextCodeInvalidOrExpiredToken))
}
