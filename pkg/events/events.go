package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rrucricket/attendance/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url, name string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(toMessage(msg))
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(toMessage(msg))
	})
	return err
}

func (n *NATSEventBus) Close() error {
	return n.conn.Drain()
}

func toMessage(msg *nats.Msg) *Message {
	return &Message{
		Subject:   msg.Subject,
		Data:      msg.Data,
		Timestamp: time.Now(),
		ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
	}
}

// NopPublisher drops events. Services fall back to it when NATS is unreachable.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (NopPublisher) Close() error                                       { return nil }

// Event subjects
const (
	AttendanceRecorded = "attendance.recorded"
	AttendanceDeleted  = "attendance.deleted"
	GroundAdded        = "attendance.ground.added"

	UserRegistered = "auth.user.registered"
	UserVerified   = "auth.user.verified"
	OTPIssued      = "auth.otp.issued"
	PasswordReset  = "auth.password.reset"
	AdminLoggedIn  = "auth.admin.login"
	UserDeleted    = "auth.user.deleted"
	SessionRevoked = "auth.session.revoked"
)

// Event payloads
type AttendanceRecordedEvent struct {
	RecordID       int64     `json:"record_id"`
	UserID         int64     `json:"user_id"`
	Ground         string    `json:"ground"`
	Status         string    `json:"status"`
	DistanceMeters float64   `json:"distance_meters"`
	RecordedAt     time.Time `json:"recorded_at"`
}

type AttendanceDeletedEvent struct {
	RecordIDs []int64   `json:"record_ids"`
	DeletedBy string    `json:"deleted_by"`
	DeletedAt time.Time `json:"deleted_at"`
}

type GroundAddedEvent struct {
	Name         string  `json:"name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
}

type UserRegisteredEvent struct {
	UserID       int64     `json:"user_id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	RegisteredAt time.Time `json:"registered_at"`
}

type UserVerifiedEvent struct {
	UserID     int64     `json:"user_id"`
	Email      string    `json:"email"`
	VerifiedAt time.Time `json:"verified_at"`
}

// OTPIssuedEvent never carries the code itself.
type OTPIssuedEvent struct {
	Purpose   string    `json:"purpose"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

type PasswordResetEvent struct {
	UserID  int64     `json:"user_id"`
	Email   string    `json:"email"`
	ResetAt time.Time `json:"reset_at"`
}

type AdminLoginEvent struct {
	AdminID   string    `json:"admin_id"`
	SessionID string    `json:"session_id"`
	LoginAt   time.Time `json:"login_at"`
}

type UserDeletedEvent struct {
	UserID    int64     `json:"user_id"`
	DeletedBy string    `json:"deleted_by"`
	DeletedAt time.Time `json:"deleted_at"`
}

// SessionRevokedEvent lets services without a shared revocation store reject
// a session that ended early.
type SessionRevokedEvent struct {
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
}
