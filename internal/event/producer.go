package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhvlabs/identity/internal/domain"
	pkgkafka "github.com/rhvlabs/identity/pkg/kafka"
)

// Kafka topic constants for identity domain events.
const (
	TopicUserRegistered    = "identity.user.registered"
	TopicUserVerified      = "identity.user.verified"
	TopicUserPasswordReset = "identity.user.password_reset"
	TopicUserLockedOut     = "identity.user.locked_out"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from this service.
const SourceIdentity = "identity"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UserVerifiedData is the payload for a user.verified event.
type UserVerifiedData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// UserPasswordResetData is the payload for a user.password_reset event.
type UserPasswordResetData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// UserLockedOutData is the payload for a user.locked_out event.
type UserLockedOutData struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	ClientIP string `json:"client_ip"`
	Attempts int64  `json:"attempts"`
}

// Publisher is the outbound event contract the services depend on, so tests
// can swap in a recorder.
type Publisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishUserVerified(ctx context.Context, user *domain.User) error
	PublishUserPasswordReset(ctx context.Context, user *domain.User) error
	PublishUserLockedOut(ctx context.Context, user *domain.User, clientIP string, attempts int64) error
}

// Producer publishes identity domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}
	return p.publish(ctx, TopicUserRegistered, user.ID, data)
}

// PublishUserVerified publishes a user.verified event.
func (p *Producer) PublishUserVerified(ctx context.Context, user *domain.User) error {
	data := UserVerifiedData{
		ID:    user.ID,
		Email: user.Email,
	}
	return p.publish(ctx, TopicUserVerified, user.ID, data)
}

// PublishUserPasswordReset publishes a user.password_reset event.
func (p *Producer) PublishUserPasswordReset(ctx context.Context, user *domain.User) error {
	data := UserPasswordResetData{
		UserID: user.ID,
		Email:  user.Email,
	}
	return p.publish(ctx, TopicUserPasswordReset, user.ID, data)
}

// PublishUserLockedOut publishes a user.locked_out event.
func (p *Producer) PublishUserLockedOut(ctx context.Context, user *domain.User, clientIP string, attempts int64) error {
	data := UserLockedOutData{
		UserID:   user.ID,
		Email:    user.Email,
		ClientIP: clientIP,
		Attempts: attempts,
	}
	return p.publish(ctx, TopicUserLockedOut, user.ID, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	ev, err := pkgkafka.NewEvent(topic, aggregateID, AggregateTypeUser, SourceIdentity, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, ev); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)

	return nil
}
