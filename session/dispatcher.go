package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/layer-3/pricewatch/core"
	"github.com/layer-3/pricewatch/ports"
	log "github.com/sirupsen/logrus"
)

// maxDrainBytes bounds how much of a rejected response body is read before
// the connection is released
const maxDrainBytes = 4 << 10

// refresher is the part of Coordinator the dispatcher depends on
type refresher interface {
	Refresh(ctx context.Context, stale core.Credential) (core.Credential, error)
}

// Dispatcher is an http.RoundTripper that attaches the current access token
// to every request and, on 401, refreshes once and replays the request once.
// It never writes to the credential store.
type Dispatcher struct {
	next      http.RoundTripper
	store     ports.CredentialStore
	refresher refresher
	log       log.FieldLogger
}

// NewDispatcher wraps next. A nil next uses http.DefaultTransport.
func NewDispatcher(next http.RoundTripper, store ports.CredentialStore, refresher refresher, logger log.FieldLogger) *Dispatcher {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Dispatcher{
		next:      next,
		store:     store,
		refresher: refresher,
		log:       logger,
	}
}

// RoundTrip implements http.RoundTripper.
//
// A 401 returned by the replay is handed to the caller as is. When the
// refresh itself fails the error wraps core.ErrSessionExpired.
func (d *Dispatcher) RoundTrip(req *http.Request) (*http.Response, error) {
	cred, authenticated := d.store.Get()
	first := withCredential(req, cred, authenticated)

	var getBody func() (io.ReadCloser, error)
	if authenticated {
		var err error
		if getBody, err = bodySource(req); err != nil {
			return nil, err
		}
		if getBody != nil && req.GetBody == nil {
			first.Body, _ = getBody()
			first.GetBody = getBody
		}
	}

	resp, err := d.next.RoundTrip(first)
	if err != nil {
		return nil, err
	}

	// Anonymous requests have nothing to refresh.
	if resp.StatusCode != http.StatusUnauthorized || !authenticated {
		return resp, nil
	}

	logger := d.log.WithField("method", req.Method).WithField("path", req.URL.Path)
	logger.Debug("Request unauthorized, refreshing")
	discard(resp)

	fresh, err := d.refresher.Refresh(req.Context(), cred)
	if err != nil {
		logger.WithError(err).Debug("Refresh failed, not replaying")
		return nil, err
	}

	replay := withCredential(req, fresh, true)
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		replay.Body = body
		replay.GetBody = getBody
	}

	resp, err = d.next.RoundTrip(replay)
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		logger.Warn("Request unauthorized after refresh")
	}
	return resp, err
}

// withCredential returns a clone of req carrying cred. The caller's request
// is never modified.
func withCredential(req *http.Request, cred core.Credential, attach bool) *http.Request {
	out := req.Clone(req.Context())
	if attach {
		out.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	} else {
		out.Header.Del("Authorization")
	}
	return out
}

// bodySource returns a function producing fresh copies of the request body,
// or nil when there is no body. Bodies that cannot be rewound are buffered.
func bodySource(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		return req.GetBody, nil
	}

	payload, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to buffer request body: %w", err)
	}

	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	resp.Body.Close()
}
