package push

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/npezzotti/gosocial/internal/types"
)

const (
	defaultTTL = 60
	// dispatchTimeout caps one request to a push service, including reading
	// the response.
	dispatchTimeout = 10 * time.Second
)

// WebPushDispatcher sends VAPID-signed Web Push messages.
type WebPushDispatcher struct {
	opts webpush.Options
}

func NewWebPushDispatcher(subject, publicKey, privateKey string) *WebPushDispatcher {
	return &WebPushDispatcher{
		opts: webpush.Options{
			Subscriber:      subject,
			VAPIDPublicKey:  publicKey,
			VAPIDPrivateKey: privateKey,
			TTL:             defaultTTL,
			HTTPClient:      &http.Client{Timeout: dispatchTimeout},
		},
	}
}

func (d *WebPushDispatcher) PublicKey() string {
	return d.opts.VAPIDPublicKey
}

func (d *WebPushDispatcher) Dispatch(ctx context.Context, sub types.PushSubscription, payload []byte) error {
	opts := d.opts
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &opts)
	if err != nil {
		return &DispatchError{Endpoint: sub.Endpoint, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	// 404 and 410 mean the endpoint has expired
	if resp.StatusCode >= http.StatusBadRequest {
		return &DispatchError{
			Endpoint:   sub.Endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("push service responded %s", resp.Status),
		}
	}

	return nil
}
