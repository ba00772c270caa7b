package notifier

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"github.com/segyhp/lead-intake/internal/config"
)

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SESService is the subset of the SES client used for sending
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends through Amazon SES.
type SESMailer struct {
	client SESService
	source string
}

func NewSESMailer(client SESService, fromName, fromAddress string) *SESMailer {
	source := (&mail.Address{Name: fromName, Address: fromAddress}).String()
	return &SESMailer{client: client, source: source}
}

// NewSESMailerFromConfig loads AWS credentials from the default chain.
func NewSESMailerFromConfig(ctx context.Context, cfg config.MailConfig) (*SESMailer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewSESMailer(ses.NewFromConfig(awsCfg), cfg.FromName, cfg.From), nil
}

func (m *SESMailer) Send(ctx context.Context, msg Message) error {
	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")},
				Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(m.source),
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("status email",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}

// NewMailer picks the transport named by cfg.Driver.
func NewMailer(ctx context.Context, cfg config.MailConfig, logger *zap.Logger) (Mailer, error) {
	switch cfg.Driver {
	case "ses":
		return NewSESMailerFromConfig(ctx, cfg)
	case "log", "":
		return NewLogMailer(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
}
