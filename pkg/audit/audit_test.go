package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavy/weavy/pkg/contextkeys"
	"github.com/weavy/weavy/pkg/observability"
	"github.com/weavy/weavy/pkg/storage/storagetest"
)

type recordingLogger struct {
	events []*AuditEvent
	err    error
	closed bool
}

func (l *recordingLogger) Log(_ context.Context, event *AuditEvent) error {
	l.events = append(l.events, event)
	return l.err
}

func (l *recordingLogger) Close() error {
	l.closed = true
	return l.err
}

func principalContext() context.Context {
	ctx := contextkeys.WithPrincipal(context.Background(), &contextkeys.Principal{
		UserID:   7,
		Username: "alice",
		Method:   contextkeys.AuthMethodSession,
	})
	return contextkeys.WithRequestID(ctx, "req-1")
}

func TestNewEvent(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/roles", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("User-Agent", "test-agent")

	event := NewEvent(principalContext(), r, EventTypeRoleCreate, EventStatusSuccess)

	require.NotNil(t, event.UserID)
	assert.Equal(t, int64(7), *event.UserID)
	assert.Equal(t, "alice", event.Username)
	assert.Equal(t, "req-1", event.RequestID)
	assert.Equal(t, "10.0.0.1", event.IPAddress)
	assert.Equal(t, "test-agent", event.UserAgent)
	assert.WithinDuration(t, time.Now(), event.Timestamp, time.Minute)
}

func TestNewEvent_Anonymous(t *testing.T) {
	event := NewEvent(context.Background(), nil, EventTypeAuthLoginFailed, EventStatusFailure)
	assert.Nil(t, event.UserID)
	assert.Empty(t, event.IPAddress)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:80"
	assert.Equal(t, "192.0.2.1", ClientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.2")
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "192.0.2.1", ClientIP(r), "client supplied headers are not trusted")

	// Rewritten by a trusted proxy front.
	r.RemoteAddr = "203.0.113.5"
	assert.Equal(t, "203.0.113.5", ClientIP(r))
}

func TestRecord_UsesContextLogger(t *testing.T) {
	rec := &recordingLogger{}
	ctx := WithLogger(principalContext(), rec)

	require.NoError(t, Record(ctx, nil, EventTypeRoleTrash, EventStatusSuccess, ResourceTypeRole, "3", "role trashed"))

	require.Len(t, rec.events, 1)
	assert.Equal(t, EventTypeRoleTrash, rec.events[0].EventType)
	assert.Equal(t, ResourceTypeRole, rec.events[0].ResourceType)
	assert.Equal(t, "3", rec.events[0].ResourceID)
	assert.Equal(t, "role trashed", rec.events[0].Message)
}

func TestRecord_WithoutLoggerIsNoOp(t *testing.T) {
	assert.NoError(t, Record(context.Background(), nil, EventTypeRoleCreate, EventStatusSuccess, ResourceTypeRole, "1", ""))
}

func TestDBLogger_LogAndSearch(t *testing.T) {
	ctx := context.Background()
	logger, err := NewDBLogger(storagetest.NewDB(t))
	require.NoError(t, err)

	first := NewEvent(principalContext(), nil, EventTypeRoleCreate, EventStatusSuccess)
	first.ResourceType = ResourceTypeRole
	first.ResourceID = "1"
	first.Metadata = map[string]interface{}{"name": "Editors"}
	require.NoError(t, logger.Log(ctx, first))
	assert.Positive(t, first.ID)

	second := NewEvent(context.Background(), nil, EventTypeAuthLoginFailed, EventStatusFailure)
	second.Message = "hosted domain example.org is not allowed"
	require.NoError(t, logger.Log(ctx, second))

	all, err := logger.Search(ctx, SearchFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	roleEvents, err := logger.Search(ctx, SearchFilter{ResourceType: ResourceTypeRole, ResourceID: "1"})
	require.NoError(t, err)
	require.Len(t, roleEvents, 1)
	assert.Equal(t, EventTypeRoleCreate, roleEvents[0].EventType)
	require.NotNil(t, roleEvents[0].UserID)
	assert.Equal(t, int64(7), *roleEvents[0].UserID)
	assert.Equal(t, "Editors", roleEvents[0].Metadata["name"])

	failures, err := logger.Search(ctx, SearchFilter{EventTypes: []EventType{EventTypeAuthLoginFailed, EventTypeAuthLogout}})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Nil(t, failures[0].UserID)
	assert.Equal(t, EventStatusFailure, failures[0].Status)

	uid := int64(7)
	byUser, err := logger.Search(ctx, SearchFilter{UserID: &uid, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, byUser, 1)
}

func TestDBLogger_RequiresDB(t *testing.T) {
	_, err := NewDBLogger(nil)
	assert.Error(t, err)
}

func TestDBLogger_InsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO audit_events").WillReturnError(errors.New("disk full"))

	logger, err := NewDBLogger(db)
	require.NoError(t, err)

	err = logger.Log(context.Background(), NewEvent(context.Background(), nil, EventTypeRoleDelete, EventStatusSuccess))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMultiLogger(t *testing.T) {
	good := &recordingLogger{}
	bad := &recordingLogger{err: errors.New("unavailable")}
	multi := NewMultiLogger(bad, good)

	event := NewEvent(context.Background(), nil, EventTypeAuthLogin, EventStatusSuccess)
	err := multi.Log(context.Background(), event)

	require.Error(t, err)
	assert.Len(t, bad.events, 1)
	assert.Len(t, good.events, 1, "later loggers still receive the event")

	assert.Error(t, multi.Close())
	assert.True(t, good.closed)
}

func TestLogrusLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogrusLogger(observability.NewLogger(observability.InfoLevel, &buf))

	event := NewEvent(principalContext(), nil, EventTypeRoleMemberAdd, EventStatusSuccess)
	event.ResourceType = ResourceTypeRole
	event.ResourceID = "4"
	event.Message = "member added"
	event.Metadata = map[string]interface{}{"user_id": 9}
	require.NoError(t, logger.Log(context.Background(), event))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "member added", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "audit", line["component"])
	assert.Equal(t, "data.role_member_add", line["event_type"])
	assert.Equal(t, "role:4", line["resource"])
	assert.EqualValues(t, 9, line["meta_user_id"])

	buf.Reset()
	denied := NewEvent(context.Background(), nil, EventTypeAuthzAccessDenied, EventStatusDenied)
	require.NoError(t, logger.Log(context.Background(), denied))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warning", line["level"])
}

func TestMiddleware(t *testing.T) {
	rec := &recordingLogger{}
	mw := NewMiddleware(rec)

	var sawLogger bool
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawLogger = FromContext(r.Context()).(*recordingLogger)
		if r.URL.Path == "/denied" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.True(t, sawLogger)
	assert.Empty(t, rec.events)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/denied", nil))
	require.Len(t, rec.events, 1)
	assert.Equal(t, EventTypeAuthzAccessDenied, rec.events[0].EventType)
	assert.Equal(t, EventStatusDenied, rec.events[0].Status)
	assert.Equal(t, "DELETE /denied", rec.events[0].Message)
}
