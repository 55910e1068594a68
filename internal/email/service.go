package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type Service interface {
	SendReminder(ctx context.Context, to, subject, message, actionURL string) error
}

type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	BaseURL  string `yaml:"base_url"`
}

type service struct {
	cfg    Config
	dialer *gomail.Dialer
}

func NewService(cfg Config) Service {
	return &service{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *service) SendReminder(ctx context.Context, to, subject, message, actionURL string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	body := fmt.Sprintf("<h2>%s</h2><p>%s</p>", subject, message)
	if actionURL != "" {
		body += fmt.Sprintf(`<p><a href="%s%s">Pay Now</a></p>`, s.cfg.BaseURL, actionURL)
	}
	m.SetBody("text/html", body)

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email to %s: %w", to, err)
		}
		return nil
	}
}

// NopService discards all mail, for deployments without SMTP.
type NopService struct{}

func (NopService) SendReminder(context.Context, string, string, string, string) error {
	return nil
}
