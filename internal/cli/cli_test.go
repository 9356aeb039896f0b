package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "profilereg/internal/jwt_token"
	"profilereg/internal/notify"
	kafkanotify "profilereg/internal/notify/kafka"
	"profilereg/internal/platform/kafka/consumer"
	id "profilereg/pkg/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateUsernames(t *testing.T) {
	out, err := execute(t, "validate", "alice001", "Alice001", "bob_builder123")
	require.ErrorIs(t, err, errInvalidInput)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "alice001\tOK", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Alice001\tINVALID\t"))
	assert.Equal(t, "bob_builder123\tOK", lines[2])
}

func TestValidateFieldNames(t *testing.T) {
	out, err := execute(t, "validate", "--field", "bio", "Hiring_2")
	require.NoError(t, err)
	assert.Equal(t, "bio\tOK\nHiring_2\tOK\n", out)

	_, err = execute(t, "validate", "--field", "no-dash")
	assert.Error(t, err)
}

func TestTokenMintsVerifiableTokens(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "cli-test-key")
	t.Setenv("JWT_ISSUER", "cli-issuer")
	t.Setenv("JWT_AUDIENCE", "cli-audience")
	svc := jwttoken.NewJWTService("cli-test-key", "cli-issuer", "cli-audience")

	out, err := execute(t, "token", "GALICE")
	require.NoError(t, err)
	p, err := svc.ValidatePrincipal(strings.TrimSpace(out), jwttoken.PurposeBearer)
	require.NoError(t, err)
	assert.Equal(t, id.Principal("GALICE"), p)

	out, err = execute(t, "token", "--cosign", "--ttl", "5m", "GBOB")
	require.NoError(t, err)
	claims, err := svc.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, jwttoken.PurposeCosign, claims.Purpose)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), claims.ExpiresAt.Time, time.Minute)

	_, err = execute(t, "token", "has space")
	assert.Error(t, err)
}

func TestSelectTopics(t *testing.T) {
	all, err := selectTopics(nil)
	require.NoError(t, err)
	assert.Equal(t, notify.Topics, all)

	some, err := selectTopics([]string{"profile_banned"})
	require.NoError(t, err)
	assert.Equal(t, []notify.Topic{notify.TopicProfileBanned}, some)

	_, err = selectTopics([]string{"nope"})
	assert.Error(t, err)
}

func TestTailRouterPrintsEvents(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := newTailRouter(&out, "test", []notify.Topic{notify.TopicProfileRegistered}, logger)

	e := notify.ProfileRegistered("GALICE", "alice001", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	payload, err := json.Marshal(e)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, router.Handle(ctx, &consumer.Message{Topic: kafkanotify.TopicName("test", notify.TopicProfileRegistered), Value: payload}))
	require.NoError(t, router.Handle(ctx, &consumer.Message{Topic: kafkanotify.TopicName("test", notify.TopicProfileRegistered), Value: []byte("{")}))
	require.NoError(t, router.Handle(ctx, &consumer.Message{Topic: kafkanotify.TopicName("test", notify.TopicProfileBanned), Value: payload}))
	require.NoError(t, router.Handle(ctx, &consumer.Message{Topic: kafkanotify.TopicName("other", notify.TopicProfileRegistered), Value: payload}))
	assert.Equal(t, []string{kafkanotify.TopicName("test", notify.TopicProfileRegistered)}, router.Topics())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)
	var got notify.Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, notify.TopicProfileRegistered, got.Topic)
}
