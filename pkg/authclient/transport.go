package authclient

import (
	"net/http"

	"github.com/aelexs/jellyfin-bff/internal/domain"
	"github.com/aelexs/jellyfin-bff/pkg/protocol"
)

// signalTransport watches responses for the edge refresh signal.
type signalTransport struct {
	next     http.RoundTripper
	onSignal func()
}

func (t *signalTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	if resp.Header.Get(domain.RefreshSignalHeader) == "true" && req.URL.Path != protocol.PathRefresh {
		t.onSignal()
	}
	return resp, nil
}
