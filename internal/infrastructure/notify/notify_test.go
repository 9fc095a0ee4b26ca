package notify

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"usbspeed/internal/errors"
)

// ============================================================================
// WEBHOOK
// ============================================================================

func TestWebhookNotifier_Delivers(t *testing.T) {
	var got Message
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, time.Second, DefaultBreakerConfig("test"), zap.NewNop())
	err := n.Notify(context.Background(), "USB 设备变化", "添加了设备：\nDrive: 5 Gbit/s (USB 3.0 超高速)")

	require.NoError(t, err)
	assert.Equal(t, "USB 设备变化", got.Title)
	assert.Contains(t, got.Body, "Drive")
	assert.NotEmpty(t, got.ID)
}

func TestWebhookNotifier_BreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, time.Second, DefaultBreakerConfig("test"), zap.NewNop())

	for i := 0; i < 3; i++ {
		err := n.Notify(context.Background(), "t", "b")
		require.Error(t, err)
		assert.True(t, errors.IsNotificationDelivery(err))
		assert.Contains(t, err.Error(), "502")
	}
	assert.Equal(t, gobreaker.StateOpen, n.State())

	err := n.Notify(context.Background(), "t", "b")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(3), hits.Load())
}

// ============================================================================
// EVENTBRIDGE
// ============================================================================

type mockPutEvents struct {
	mock.Mock
}

func (m *mockPutEvents) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

func TestEventBridgeNotifier(t *testing.T) {
	client := &mockPutEvents{}
	client.On("PutEvents", mock.Anything, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		if len(in.Entries) != 1 {
			return false
		}
		e := in.Entries[0]
		var msg Message
		if err := json.Unmarshal([]byte(aws.ToString(e.Detail)), &msg); err != nil {
			return false
		}
		return aws.ToString(e.EventBusName) == "devices" &&
			aws.ToString(e.Source) == "usbspeed" &&
			aws.ToString(e.DetailType) == DetailType &&
			msg.Body == "body"
	})).Return(&eventbridge.PutEventsOutput{}, nil).Once()

	n := NewEventBridgeNotifier(client, "devices", "", zap.NewNop())
	require.NoError(t, n.Notify(context.Background(), "title", "body"))
	client.AssertExpectations(t)
}

func TestEventBridgeNotifier_Failures(t *testing.T) {
	t.Run("client error", func(t *testing.T) {
		client := &mockPutEvents{}
		client.On("PutEvents", mock.Anything, mock.Anything).Return(nil, stderrors.New("throttled"))

		err := NewEventBridgeNotifier(client, "devices", "src", zap.NewNop()).Notify(context.Background(), "t", "b")
		assert.True(t, errors.IsNotificationDelivery(err))
	})

	t.Run("failed entries", func(t *testing.T) {
		client := &mockPutEvents{}
		client.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries: []types.PutEventsResultEntry{{
				ErrorCode:    aws.String("InternalFailure"),
				ErrorMessage: aws.String("try again"),
			}},
		}, nil)

		err := NewEventBridgeNotifier(client, "devices", "src", zap.NewNop()).Notify(context.Background(), "t", "b")
		require.Error(t, err)
		assert.True(t, errors.IsNotificationDelivery(err))
		assert.Contains(t, err.Error(), "1 events failed")
	})
}

// ============================================================================
// DESKTOP
// ============================================================================

func TestDesktopNotifier_AuthorizesOnce(t *testing.T) {
	var lookups atomic.Int32
	n := NewDesktopNotifier(zap.NewNop(),
		WithPlatform("linux"),
		WithLookPath(func(string) (string, error) {
			lookups.Add(1)
			return "", stderrors.New("not found")
		}),
	)

	for i := 0; i < 3; i++ {
		err := n.Notify(context.Background(), "t", "b")
		require.Error(t, err)
		assert.True(t, errors.IsNotificationDelivery(err))
	}
	assert.Equal(t, int32(1), lookups.Load())
}

func TestDesktopNotifier_Arguments(t *testing.T) {
	tests := []struct {
		goos     string
		helper   string
		expected []string
	}{
		{"darwin", "/usr/bin/osascript", []string{"-e", `display notification "line \"1\"" with title "USB 设备变化"`}},
		{"linux", "/usr/bin/notify-send", []string{"--app-name=usbspeed", "--", "USB 设备变化", `line "1"`}},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			var gotPath string
			var gotArgs []string
			n := NewDesktopNotifier(zap.NewNop(),
				WithPlatform(tt.goos),
				WithLookPath(func(name string) (string, error) { return "/usr/bin/" + name, nil }),
				WithRunner(func(_ context.Context, path string, args ...string) error {
					gotPath, gotArgs = path, args
					return nil
				}),
			)

			require.NoError(t, n.Notify(context.Background(), "USB 设备变化", `line "1"`))
			assert.Equal(t, tt.helper, gotPath)
			assert.Equal(t, tt.expected, gotArgs)
		})
	}
}

func TestDesktopNotifier_HungHelperTimesOut(t *testing.T) {
	n := NewDesktopNotifier(zap.NewNop(),
		WithPlatform("linux"),
		WithDesktopTimeout(50*time.Millisecond),
		WithLookPath(func(name string) (string, error) { return "/usr/bin/" + name, nil }),
		WithRunner(func(ctx context.Context, _ string, _ ...string) error {
			if _, ok := ctx.Deadline(); !ok {
				return stderrors.New("helper run without a deadline")
			}
			<-ctx.Done()
			return ctx.Err()
		}),
	)

	start := time.Now()
	err := n.Notify(context.Background(), "t", "-b")
	require.Error(t, err)
	assert.True(t, errors.IsNotificationDelivery(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

// ============================================================================
// FAN-OUT
// ============================================================================

type funcNotifier func(ctx context.Context, title, body string) error

func (f funcNotifier) Notify(ctx context.Context, title, body string) error { return f(ctx, title, body) }

func TestMulti_TriesEverySink(t *testing.T) {
	var delivered atomic.Int32
	ok := funcNotifier(func(context.Context, string, string) error {
		delivered.Add(1)
		return nil
	})
	broken := funcNotifier(func(context.Context, string, string) error {
		return errors.NewNotificationDelivery("down", nil)
	})

	m := NewMulti(zap.NewNop(), broken, ok, nil, NewLogNotifier(zap.NewNop()))
	assert.Equal(t, 3, m.Len())

	err := m.Notify(context.Background(), "t", "b")
	require.Error(t, err)
	assert.True(t, errors.IsNotificationDelivery(err))
	assert.Contains(t, err.Error(), "1 of 3 sinks failed")
	assert.Equal(t, int32(1), delivered.Load())

	assert.NoError(t, NewMulti(zap.NewNop(), ok).Notify(context.Background(), "t", "b"))
}
