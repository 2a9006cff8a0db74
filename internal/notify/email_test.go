package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	if sender := NewSendGridSender(SendGridConfig{FromEmail: "ops@transcenda.ae"}, nil); sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "key", FromEmail: "ops@transcenda.ae"}, nil)
	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != "Transcenda" {
		t.Errorf("expected default from name, got %q", sender.fromName)
	}
}

type fakeSendGrid struct {
	msg    *mail.SGMailV3
	status int
	err    error
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.msg = email
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func TestSendGridSender_Send(t *testing.T) {
	fake := &fakeSendGrid{status: 202}
	sender := newSendGridSender(fake, SendGridConfig{FromEmail: "ops@transcenda.ae"}, nil)

	err := sender.Send(context.Background(), EmailMessage{To: "team@transcenda.ae", Subject: "Alert", Body: "body"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if fake.msg == nil || fake.msg.Subject != "Alert" {
		t.Fatalf("unexpected message %+v", fake.msg)
	}
	if fake.msg.From.Address != "ops@transcenda.ae" || fake.msg.From.Name != "Transcenda" {
		t.Fatalf("unexpected from %+v", fake.msg.From)
	}
}

func TestSendGridSender_SendErrorStatus(t *testing.T) {
	sender := newSendGridSender(&fakeSendGrid{status: 401}, SendGridConfig{FromEmail: "ops@transcenda.ae"}, nil)
	if err := sender.Send(context.Background(), EmailMessage{To: "a@b.co", Subject: "s"}); err == nil {
		t.Fatal("expected error for 401 status")
	}

	sender = newSendGridSender(&fakeSendGrid{err: errors.New("dial")}, SendGridConfig{}, nil)
	if err := sender.Send(context.Background(), EmailMessage{To: "a@b.co", Subject: "s"}); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	var sender *SendGridSender
	if err := sender.Send(context.Background(), EmailMessage{To: "a@b.co", Subject: "s"}); err == nil {
		t.Error("expected error when sender is nil")
	}
}

func TestSendGridSender_RequiresRecipient(t *testing.T) {
	fake := &fakeSendGrid{status: 202}
	sender := newSendGridSender(fake, SendGridConfig{}, nil)
	if err := sender.Send(context.Background(), EmailMessage{Subject: "s"}); err == nil {
		t.Fatal("expected error for missing recipient")
	}
	if fake.msg != nil {
		t.Fatal("nothing should be sent")
	}
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	fake := &fakeSES{}
	sender := NewSESSender(fake, SESConfig{FromEmail: "ops@transcenda.ae"}, nil)
	if sender == nil {
		t.Fatal("expected sender")
	}

	err := sender.Send(context.Background(), EmailMessage{To: "team@transcenda.ae", Subject: "Alert", Body: "text", HTML: "<p>html</p>"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := aws.ToString(fake.input.FromEmailAddress); got != "Transcenda <ops@transcenda.ae>" {
		t.Fatalf("from = %q", got)
	}
	if got := fake.input.Destination.ToAddresses; len(got) != 1 || got[0] != "team@transcenda.ae" {
		t.Fatalf("to = %v", got)
	}
	body := fake.input.Content.Simple.Body
	if aws.ToString(body.Text.Data) != "text" || aws.ToString(body.Html.Data) != "<p>html</p>" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestSESSender_SendError(t *testing.T) {
	sender := NewSESSender(&fakeSES{err: errors.New("throttled")}, SESConfig{FromEmail: "ops@transcenda.ae"}, nil)
	if err := sender.Send(context.Background(), EmailMessage{To: "a@b.co", Subject: "s", Body: "b"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewSESSender_NilWithoutFromEmail(t *testing.T) {
	if NewSESSender(&fakeSES{}, SESConfig{}, nil) != nil {
		t.Fatal("expected nil sender without from address")
	}
}

func TestStubEmailSender_Send(t *testing.T) {
	if err := NewStubEmailSender(nil).Send(context.Background(), EmailMessage{To: "a@b.co", Subject: "s"}); err != nil {
		t.Errorf("stub sender should not return error, got: %v", err)
	}
}
