package smtp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDialer struct {
	mock.Mock
}

func (m *MockDialer) Dial(ctx context.Context) (Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Session), args.Error(1)
}

func (m *MockDialer) From() string {
	return m.Called().String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error {
	return m.Called(from).Error(0)
}

func (m *MockSMTPClient) Rcpt(to string) error {
	return m.Called(to).Error(0)
}

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockSMTPClient) Quit() error {
	return m.Called().Error(0)
}

func (m *MockSMTPClient) Close() error {
	return m.Called().Error(0)
}

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMailer_Send(t *testing.T) {
	dialer := new(MockDialer)
	client := new(MockSMTPClient)
	buf := &bufferCloser{}

	dialer.On("From").Return("noreply@vpn.example")
	dialer.On("Dial", mock.Anything).Return(client, nil).Once()
	client.On("Mail", "noreply@vpn.example").Return(nil).Once()
	client.On("Rcpt", "user@example.com").Return(nil).Once()
	client.On("Data").Return(buf, nil).Once()
	client.On("Quit").Return(nil).Once()
	client.On("Close").Return(nil).Once()

	err := NewMailer(dialer, newNoopLogger()).Send(context.Background(), "user@example.com", "Код подтверждения", "123456")
	require.NoError(t, err)

	msg := buf.String()
	assert.Contains(t, msg, "From: noreply@vpn.example\r\n")
	assert.Contains(t, msg, "To: user@example.com\r\n")
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.Contains(t, msg, "\r\n\r\n123456")
	assert.True(t, buf.closed)
	client.AssertExpectations(t)
}

func TestMailer_SendErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(tr *MockDialer, c *MockSMTPClient)
	}{
		{
			name: "нет соединения",
			setup: func(tr *MockDialer, _ *MockSMTPClient) {
				tr.On("Dial", mock.Anything).Return(nil, errors.New("dial failed")).Once()
			},
		},
		{
			name: "отказ RCPT",
			setup: func(tr *MockDialer, c *MockSMTPClient) {
				tr.On("Dial", mock.Anything).Return(c, nil).Once()
				c.On("Mail", mock.Anything).Return(nil).Once()
				c.On("Rcpt", mock.Anything).Return(errors.New("mailbox unavailable")).Once()
				c.On("Close").Return(nil).Once()
			},
		},
		{
			name: "ошибка Data",
			setup: func(tr *MockDialer, c *MockSMTPClient) {
				tr.On("Dial", mock.Anything).Return(c, nil).Once()
				c.On("Mail", mock.Anything).Return(nil).Once()
				c.On("Rcpt", mock.Anything).Return(nil).Once()
				c.On("Data").Return(nil, errors.New("data refused")).Once()
				c.On("Close").Return(nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialer := new(MockDialer)
			client := new(MockSMTPClient)
			dialer.On("From").Return("noreply@vpn.example")
			tt.setup(dialer, client)

			err := NewMailer(dialer, newNoopLogger()).Send(context.Background(), "user@example.com", "s", "b")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "smtp.Send")
			client.AssertExpectations(t)
		})
	}
}
