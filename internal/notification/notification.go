package notification

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/harborbank/harbor/config"
	"github.com/harborbank/harbor/internal/request"
)

// SlackNotification posts an error to the configured Slack webhook. Used for
// ledger discrepancies that need a human, so delivery is retried.
func SlackNotification(err error) {
	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]interface{}{
					"type":  "plain_text",
					"text":  "Error From Harbor",
					"emoji": true,
				},
			},
			{
				"type": "section",
				"fields": []map[string]string{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Error:*\n%v", err.Error())},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Time:*\n%v", time.Now().Format(time.RFC822))},
				},
			},
		},
	}

	conf, confErr := config.Fetch()
	if confErr != nil {
		log.Println(confErr)
		return
	}

	if conf.Notification.Slack.WebhookUrl == "" {
		return
	}

	deliver := func() error {
		body, err := request.ToJsonReq(payload)
		if err != nil {
			return err
		}
		req, err := http.NewRequest("POST", conf.Notification.Slack.WebhookUrl, body)
		if err != nil {
			return err
		}
		var response map[string]interface{}
		resp, err := request.Call(req, &response)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4)
	if err := backoff.Retry(deliver, policy); err != nil {
		logrus.Error("failed to deliver slack notification: ", err)
	}
}

// WebhookNotification posts an error payload to the configured webhook URL
// with any configured headers.
func WebhookNotification(err error) {
	conf, confErr := config.Fetch()
	if confErr != nil {
		log.Println(confErr)
		return
	}

	if conf.Notification.Webhook.Url == "" {
		return
	}

	payload := map[string]interface{}{
		"error": err.Error(),
		"time":  time.Now().Format(time.RFC3339),
	}

	deliver := func() error {
		body, err := request.ToJsonReq(payload)
		if err != nil {
			return err
		}
		req, err := http.NewRequest("POST", conf.Notification.Webhook.Url, body)
		if err != nil {
			return err
		}
		for header, value := range conf.Notification.Webhook.Headers {
			req.Header.Set(header, value)
		}
		var response map[string]interface{}
		resp, err := request.Call(req, &response)
		if err != nil {
			return errors.Wrap(err, "webhook delivery failed")
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4)
	if err := backoff.Retry(deliver, policy); err != nil {
		logrus.Error("failed to deliver webhook notification: ", err)
	}
}

// NotifyError fans an error out to the configured channels. Safe to call from
// any goroutine; delivery happens in the background.
func NotifyError(systemError error) {
	logrus.Error(systemError)
	go SlackNotification(systemError)
	go WebhookNotification(systemError)
}
