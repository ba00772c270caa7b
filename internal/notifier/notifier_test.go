package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/segyhp/lead-intake/internal/domain"
	"github.com/segyhp/lead-intake/internal/repository"
	apperrors "github.com/segyhp/lead-intake/pkg/errors"
)

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

// recordingMailer captures messages and fails while err is set.
type recordingMailer struct {
	sent  []Message
	err   error
	panic bool
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	if m.panic {
		panic("transport exploded")
	}
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func approvedChange() *domain.StatusChange {
	return &domain.StatusChange{
		ApplicationID: "app-1",
		Email:         "jane@example.com",
		RecipientName: "Jane Doe",
		OldStatus:     domain.StatusPending,
		NewStatus:     domain.StatusApproved,
	}
}

func TestCompose(t *testing.T) {
	tests := []struct {
		status    domain.Status
		subject   string
		paragraph string
	}{
		{domain.StatusApproved, "Your Application Status: Approved", messageApproved},
		{domain.StatusRejected, "Your Application Status: Rejected", messageRejected},
		{domain.StatusPending, "Your Application Status: Pending", messagePending},
		{domain.Status("archived"), "Your Application Status: Archived", messageDefault},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			msg := Compose("jane@example.com", "Jane Doe", tt.status)
			assert.Equal(t, tt.subject, msg.Subject)
			assert.Equal(t, "jane@example.com", msg.To)
			assert.Contains(t, msg.HTML, "Hello Jane Doe,")
			assert.Contains(t, msg.HTML, tt.paragraph)
			assert.Contains(t, msg.HTML, "The Baadaye Team")
			assert.Contains(t, msg.Text, tt.paragraph)
		})
	}
}

func TestComposeEscapesAndDefaultsName(t *testing.T) {
	msg := Compose("x@example.com", "  ", domain.StatusApproved)
	assert.Contains(t, msg.HTML, "Hello Applicant,")

	msg = Compose("x@example.com", "<b>Eve</b>", domain.StatusApproved)
	assert.Contains(t, msg.HTML, "Hello &lt;b&gt;Eve&lt;/b&gt;,")
	assert.Contains(t, msg.Text, "Hello <b>Eve</b>,")
}

func TestSESMailer_Send(t *testing.T) {
	var captured *ses.SendEmailInput
	mock := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			captured = params
			return &ses.SendEmailOutput{}, nil
		},
	}

	mailer := NewSESMailer(mock, "Baadaye Support", "support@baadaye.com")
	msg := Compose("jane@example.com", "Jane Doe", domain.StatusRejected)
	require.NoError(t, mailer.Send(context.Background(), msg))

	require.NotNil(t, captured)
	assert.Equal(t, []string{"jane@example.com"}, captured.Destination.ToAddresses)
	assert.Equal(t, `"Baadaye Support" <support@baadaye.com>`, *captured.Source)
	assert.Equal(t, "Your Application Status: Rejected", *captured.Message.Subject.Data)
	assert.Equal(t, msg.HTML, *captured.Message.Body.Html.Data)
}

func TestSESMailer_SendError(t *testing.T) {
	mock := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, errors.New("throttled")
		},
	}

	err := NewSESMailer(mock, "Baadaye Support", "support@baadaye.com").Send(context.Background(), Message{To: "a@b.c"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "throttled"))
}

func TestNotifier_Notify(t *testing.T) {
	ctx := context.Background()

	t.Run("sends and logs once", func(t *testing.T) {
		store := repository.NewMemoryStore()
		mailer := &recordingMailer{}
		n := New(mailer, store.EmailLogs(), zap.NewNop(), nil)

		require.NoError(t, n.Notify(ctx, approvedChange()))
		require.Len(t, mailer.sent, 1)
		assert.Equal(t, "Your Application Status: Approved", mailer.sent[0].Subject)

		logs, err := store.EmailLogs().ListByApplication(ctx, "app-1")
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, domain.StatusApproved, logs[0].Status)
		assert.Equal(t, "jane@example.com", logs[0].Email)
	})

	t.Run("unchanged status is a no-op", func(t *testing.T) {
		store := repository.NewMemoryStore()
		mailer := &recordingMailer{}
		n := New(mailer, store.EmailLogs(), zap.NewNop(), nil)

		change := approvedChange()
		change.OldStatus = domain.StatusApproved
		require.NoError(t, n.Notify(ctx, change))
		assert.Empty(t, mailer.sent)
	})

	t.Run("malformed changes are skipped", func(t *testing.T) {
		store := repository.NewMemoryStore()
		mailer := &recordingMailer{}
		n := New(mailer, store.EmailLogs(), zap.NewNop(), nil)

		noEmail := approvedChange()
		noEmail.Email = " "

		assert.NoError(t, n.Notify(ctx, nil))
		assert.NoError(t, n.Notify(ctx, noEmail))
		assert.Empty(t, mailer.sent)

		logs, err := store.EmailLogs().ListByApplication(ctx, "app-1")
		require.NoError(t, err)
		assert.Empty(t, logs)
	})

	t.Run("send failure writes no log", func(t *testing.T) {
		store := repository.NewMemoryStore()
		mailer := &recordingMailer{err: errors.New("smtp down")}
		n := New(mailer, store.EmailLogs(), zap.NewNop(), nil)

		err := n.Notify(ctx, approvedChange())
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrNotificationFailed)
		assert.Equal(t, apperrors.ErrCodeNotificationFailed, apperrors.CodeOf(err))

		logs, err := store.EmailLogs().ListByApplication(ctx, "app-1")
		require.NoError(t, err)
		assert.Empty(t, logs)
	})

	t.Run("transport panic is contained", func(t *testing.T) {
		store := repository.NewMemoryStore()
		n := New(&recordingMailer{panic: true}, store.EmailLogs(), zap.NewNop(), nil)

		var err error
		assert.NotPanics(t, func() { err = n.Notify(ctx, approvedChange()) })
		assert.ErrorIs(t, err, apperrors.ErrNotificationFailed)
	})
}
