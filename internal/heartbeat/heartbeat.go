// Package heartbeat periodically advertises the server's population to a
// public directory, per spec.md §4.7. It runs on its own goroutine so a
// slow or unreachable directory never stalls the main server loop, per
// the SHOULD in spec.md §5 and the resolved design note in SPEC_FULL.md
// §4.7.
package heartbeat

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Interval is the fixed heartbeat cadence mandated by spec.md §4.7.
const Interval = 45 * time.Second

const software = "gocraftd"

// Info is a snapshot of the fields the heartbeat POSTs. Salt is fixed for
// the process lifetime and never rotated.
type Info struct {
	Public  bool
	Max     int
	Users   int
	Port    int
	Version int
	Salt    string
	Name    string
}

// Source supplies a fresh Info snapshot on every beat.
type Source func() Info

// Heartbeat owns the background ticker and HTTP client.
type Heartbeat struct {
	url    string
	source Source
	client *http.Client
	log    zerolog.Logger
}

// New creates a Heartbeat that will POST to directoryURL. The client has
// an explicit timeout shorter than Interval so a hung directory can never
// cause two in-flight requests to overlap.
func New(directoryURL string, source Source, log zerolog.Logger) *Heartbeat {
	return &Heartbeat{
		url:    directoryURL,
		source: source,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// Run beats every Interval until ctx is cancelled. Call as
// `go hb.Run(ctx)`.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	h.beat(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.beat(ctx)
		}
	}
}

func (h *Heartbeat) beat(ctx context.Context) {
	info := h.source()

	form := url.Values{}
	form.Set("public", strconv.FormatBool(info.Public))
	form.Set("max", strconv.Itoa(info.Max))
	form.Set("users", strconv.Itoa(info.Users))
	form.Set("port", strconv.Itoa(info.Port))
	form.Set("version", strconv.Itoa(info.Version))
	form.Set("salt", info.Salt)
	form.Set("name", info.Name)
	form.Set("software", software)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, strings.NewReader(form.Encode()))
	if err != nil {
		h.log.Warn().Err(err).Msg("heartbeat: build request failed")
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.client.Do(req)
	if err != nil {
		h.log.Warn().Err(err).Msg("heartbeat: request failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.log.Warn().Int("status", resp.StatusCode).Msg("heartbeat: non-2xx response")
	}
}
