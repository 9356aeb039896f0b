package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilereg/internal/profile/username"
)

func usernameOf(s string) username.Username { return username.Username(s) }

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, Event) error { return f.err }

func TestEventConstructorsSetTopicFields(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))

	e := UsernameTransferred("alice001", "GA", "GB", at)
	assert.Equal(t, TopicUsernameTransferred, e.Topic)
	assert.EqualValues(t, "GA", e.From)
	assert.EqualValues(t, "GB", e.To)
	assert.Equal(t, time.UTC, e.OccurredAt.Location())
	assert.Equal(t, "alice001", e.Key())

	u := ProfileUpdated("GA", "bio", at)
	assert.EqualValues(t, "bio", u.Field)
	assert.Equal(t, "GA", u.Key())
	assert.NotEqual(t, e.ID, u.ID)
}

func TestFanoutJoinsErrors(t *testing.T) {
	rec := &Recorder{}
	boom := errors.New("boom")
	f := Fanout{rec, failingPublisher{err: boom}, rec}

	err := f.Publish(context.Background(), ProfileDeleted("GA", time.Now()))
	require.ErrorIs(t, err, boom)
	assert.Len(t, rec.Events(), 2)
}

func TestLogSinkWritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := LogSink{Logger: logger, Level: slog.LevelInfo}.Publish(context.Background(), ProfileBanned("GBAD", time.Now()))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"topic":"profile_banned"`)
	assert.Contains(t, buf.String(), `"principal":"GBAD"`)
}

func TestRecorderTopicsAndReset(t *testing.T) {
	rec := &Recorder{}
	ctx := context.Background()
	require.NoError(t, rec.Publish(ctx, UsernameReserved("stellar123", time.Now())))
	require.NoError(t, rec.Append(ctx, UsernameUnreserved("stellar123", time.Now())))

	assert.Equal(t, []Topic{TopicUsernameReserved, TopicUsernameUnreserved}, rec.Topics())
	rec.Reset()
	assert.Empty(t, rec.Events())
}
