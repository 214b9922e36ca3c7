package middleware

import (
	"context"
	"crypto/md5"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/slack-go/slack"

	"slackhooks/core"
	"slackhooks/core/log"
	"slackhooks/dispatch"
	"slackhooks/models"
)

type SlackAlertConfig struct {
	WebhookURL  string
	Environment string
	AppName     string
}

// ErrorAlerter posts panics and unexpected failures to a Slack incoming webhook,
// at most once per cooldown window for the same message.
type ErrorAlerter struct {
	config        SlackAlertConfig
	alertedErrors map[string]time.Time // hash -> last alert time
	mutex         sync.Mutex
	alertCooldown time.Duration
	pending       sync.WaitGroup
	now           func() time.Time
}

func NewErrorAlerter(config SlackAlertConfig) *ErrorAlerter {
	return &ErrorAlerter{
		config:        config,
		alertedErrors: make(map[string]time.Time),
		alertCooldown: 10 * time.Minute,
		now:           time.Now,
	}
}

// HTTPMiddleware recovers panics escaping an HTTP handler, alerts, and replies 500
func (m *ErrorAlerter) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				m.reportPanic(r.Context(), fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path), rec)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// WrapBackgroundTask alerts when a scheduled task fails or panics
func (m *ErrorAlerter) WrapBackgroundTask(taskName string, task func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				m.reportPanic(ctx, "Background task: "+taskName, rec)
				err = &core.InternalError{Message: fmt.Sprintf("background task %s panicked", taskName)}
			}
		}()

		if err := task(ctx); err != nil {
			m.AlertOnError(ctx, err, "Background task: "+taskName)
			return err
		}
		return nil
	}
}

// Recover converts a panic in later chain links into an InternalError and alerts on it
func Recover(alerter *ErrorAlerter) dispatch.Middleware {
	return func(c *dispatch.Context, next dispatch.Next) (resp *models.Response, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				where := fmt.Sprintf("dispatch %s", c.Request.Kind())
				if alerter != nil {
					alerter.reportPanic(c.Context(), where, rec)
				} else {
					c.Logger().Error().Str("stack", string(debug.Stack())).Msgf("❌ %s: PANIC - %v", where, rec)
				}
				resp = nil
				err = &core.InternalError{Message: fmt.Sprintf("panic in middleware chain: %v", rec)}
			}
		}()
		return next(c)
	}
}

// AlertOnError sends err to the webhook unless the same message was sent recently
func (m *ErrorAlerter) AlertOnError(ctx context.Context, err error, where string) {
	errorMsg := fmt.Sprintf("%s: %v", where, err)
	log.Ctx(ctx).Error().Err(err).Msgf("❌ %s", where)

	hash := fmt.Sprintf("%x", md5.Sum([]byte(errorMsg)))

	m.mutex.Lock()
	if lastAlert, exists := m.alertedErrors[hash]; exists && m.now().Sub(lastAlert) < m.alertCooldown {
		m.mutex.Unlock()
		return
	}
	m.alertedErrors[hash] = m.now()
	m.mutex.Unlock()

	m.send(errorMsg, where)
}

func (m *ErrorAlerter) reportPanic(ctx context.Context, where string, rec any) {
	errorMsg := fmt.Sprintf("%s: PANIC - %v", where, rec)
	log.Ctx(ctx).Error().Str("stack", string(debug.Stack())).Msgf("❌ %s", errorMsg)
	m.send(errorMsg, where+" (PANIC)")
}

// Wait blocks until alerts already queued have been delivered or failed
func (m *ErrorAlerter) Wait() {
	m.pending.Wait()
}

func (m *ErrorAlerter) send(errorMsg, where string) {
	if m.config.WebhookURL == "" {
		return // Slack alerts disabled
	}

	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := slack.PostWebhookContext(ctx, m.config.WebhookURL, m.alertMessage(errorMsg, where)); err != nil {
			log.Error("❌ Failed to send Slack alert: %v", err)
		}
	}()
}

func (m *ErrorAlerter) alertMessage(errorMsg, where string) *slack.WebhookMessage {
	envPrefix := ""
	if m.config.Environment == "dev" {
		envPrefix = "[dev] "
	}
	title := fmt.Sprintf("🚨 %s[%s] Error Alert", envPrefix, m.config.AppName)

	header := slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, title, true, false))
	details := slack.NewSectionBlock(nil, []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, "*Service:* "+m.config.AppName, false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Environment:* "+m.config.Environment, false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Context:* "+where, false, false),
	}, nil)
	body := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Error:*\n```%s```", errorMsg), false, false),
		nil, nil,
	)

	return &slack.WebhookMessage{
		Text:   title,
		Blocks: &slack.Blocks{BlockSet: []slack.Block{header, details, body}},
	}
}
