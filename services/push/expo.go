package pushsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/notification"
)

const maxResponseSize = 4 << 20

// ExpoGateway submits messages to the Expo push service.
// Without an access token, calls are unauthenticated (and rate limited lower by Expo).
type ExpoGateway struct {
	endpoint    string
	accessToken string
	client      *http.Client
}

var _ notification.Gateway = (*ExpoGateway)(nil)

func NewExpoGateway(conf core.PushConfig, client *http.Client) *ExpoGateway {
	if client == nil {
		client = &http.Client{}
	}
	return &ExpoGateway{
		endpoint:    conf.Endpoint,
		accessToken: conf.AccessToken,
		client:      client,
	}
}

func (gw *ExpoGateway) Send(ctx context.Context, msgs []notification.Message) ([]notification.Ticket, error) {
	payload, err := json.Marshal(msgs)
	if err != nil {
		return nil, errors.Wrap(err, "encoding push messages")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gw.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "building push request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if gw.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+gw.accessToken)
	}

	resp, err := gw.client.Do(req)
	if err != nil {
		// transport failures & timeouts
		return nil, &notification.GatewayError{Err: errors.Wrap(err, "calling push gateway"), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &notification.GatewayError{StatusCode: resp.StatusCode, Err: errors.Wrap(err, "reading push response"), Retryable: true}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, notification.NewStatusError(resp.StatusCode, string(body))
	}
	return parseTickets(body)
}

// parseTickets accepts both a bare list of tickets and the `{"data": [...]}` envelope.
func parseTickets(body []byte) ([]notification.Ticket, error) {
	if !gjson.ValidBytes(body) {
		return nil, &notification.GatewayError{StatusCode: http.StatusOK, Body: string(body), Err: errors.New("invalid push gateway response")}
	}

	root := gjson.ParseBytes(body)
	list := root
	if root.IsObject() {
		if errs := root.Get("errors"); errs.IsArray() && !root.Get("data").Exists() {
			msg := errs.Get("0.message").String()
			if msg == "" {
				msg = "push gateway request error"
			}
			return nil, &notification.GatewayError{StatusCode: http.StatusOK, Body: string(body), Err: errors.New(msg)}
		}
		list = root.Get("data")
	}
	if !list.IsArray() {
		return nil, &notification.GatewayError{StatusCode: http.StatusOK, Body: string(body), Err: errors.New("unexpected push gateway response")}
	}

	tickets := make([]notification.Ticket, 0, len(list.Array()))
	list.ForEach(func(_, v gjson.Result) bool {
		t := notification.Ticket{
			Status:  v.Get("status").String(),
			ID:      v.Get("id").String(),
			Message: v.Get("message").String(),
		}
		if details, ok := v.Get("details").Value().(map[string]interface{}); ok {
			t.Details = details
		}
		tickets = append(tickets, t)
		return true
	})
	return tickets, nil
}
