package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type mockConn struct {
	publishFunc func(subj string, data []byte) error
	closeFunc   func()
}

func (m *mockConn) Publish(subj string, data []byte) error {
	if m.publishFunc != nil {
		return m.publishFunc(subj, data)
	}
	return nil
}

func (m *mockConn) Close() {
	if m.closeFunc != nil {
		m.closeFunc()
	}
}

func TestPublishVerificationCompleted(t *testing.T) {
	var gotSubject string
	var gotData []byte

	client := &natsClient{
		conn: &mockConn{
			publishFunc: func(subj string, data []byte) error {
				gotSubject = subj
				gotData = data
				return nil
			},
		},
		logger: zaptest.NewLogger(t),
	}

	completedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	msg := VerificationCompletedMessage{
		TransactionID: "IVGabc123|20240601120000",
		UserID:        "user-1",
		Status:        "success",
		CompletedAt:   completedAt,
	}

	if err := client.PublishVerificationCompleted(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotSubject != "identity.verification.completed" {
		t.Errorf("unexpected subject: %q", gotSubject)
	}

	var decoded VerificationCompletedMessage
	if err := json.Unmarshal(gotData, &decoded); err != nil {
		t.Fatalf("failed to unmarshal published message: %v", err)
	}
	if decoded.TransactionID != msg.TransactionID {
		t.Errorf("unexpected transaction id: %q", decoded.TransactionID)
	}
	if decoded.UserID != msg.UserID {
		t.Errorf("unexpected user id: %q", decoded.UserID)
	}
	if decoded.Status != "success" {
		t.Errorf("unexpected status: %q", decoded.Status)
	}
	if !decoded.CompletedAt.Equal(completedAt) {
		t.Errorf("unexpected completed at: %v", decoded.CompletedAt)
	}
}

func TestPublishVerificationCompletedFailureOmitsEmptyFields(t *testing.T) {
	var gotData []byte

	client := &natsClient{
		conn: &mockConn{
			publishFunc: func(subj string, data []byte) error {
				gotData = data
				return nil
			},
		},
		logger: zaptest.NewLogger(t),
	}

	msg := VerificationCompletedMessage{
		TransactionID: "IVGdef456|20240601120000",
		Status:        "failed",
		Reason:        "result_expired",
		CompletedAt:   time.Now(),
	}

	if err := client.PublishVerificationCompleted(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(gotData, &raw); err != nil {
		t.Fatalf("failed to unmarshal published message: %v", err)
	}
	if _, present := raw["user_id"]; present {
		t.Error("expected empty user_id to be omitted")
	}
	if raw["reason"] != "result_expired" {
		t.Errorf("unexpected reason: %v", raw["reason"])
	}
}

func TestPublishVerificationCompletedError(t *testing.T) {
	publishErr := errors.New("nats connection lost")

	client := &natsClient{
		conn: &mockConn{
			publishFunc: func(subj string, data []byte) error {
				return publishErr
			},
		},
		logger: zaptest.NewLogger(t),
	}

	err := client.PublishVerificationCompleted(context.Background(), VerificationCompletedMessage{
		TransactionID: "IVGghi789|20240601120000",
		Status:        "success",
	})
	if !errors.Is(err, publishErr) {
		t.Errorf("expected wrapped publish error, got %v", err)
	}
}

func TestCloseClosesConnection(t *testing.T) {
	closed := false

	client := &natsClient{
		conn: &mockConn{
			closeFunc: func() { closed = true },
		},
		logger: zaptest.NewLogger(t),
	}

	client.Close()

	if !closed {
		t.Error("expected connection to be closed")
	}
}
