package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/righteousgambit/SenateTranscript/internal/retry"
)

// DefaultFeedURL is the Senate floor schedule feed.
const DefaultFeedURL = "https://www.senate.gov/legislative/schedule/floor_schedule.json"

const (
	feedTimeout  = 10 * time.Second
	probeTimeout = 5 * time.Second
)

var (
	commPattern     = regexp.MustCompile(`comm=([^&]+)`)
	filenamePattern = regexp.MustCompile(`filename=([^&]+)`)
)

// Descriptor identifies one Senate floor stream by the parameters of its
// player page URL.
type Descriptor struct {
	Committee string
	FileBase  string
}

// StreamID is the identifier used in output file names.
func (d Descriptor) StreamID() string {
	return d.Committee + "_" + d.FileBase
}

// Resolution is a playable playlist URL together with its descriptor.
type Resolution struct {
	PlayableURL string
	Descriptor  Descriptor
}

// Resolver finds the playable URL for the live Senate floor stream.
// The zero value uses the public schedule feed and default timeouts.
type Resolver struct {
	FeedURL string
	Client  *http.Client
	Logger  *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{
		FeedURL: DefaultFeedURL,
		Client:  &http.Client{Timeout: feedTimeout},
		Logger:  logger,
	}
}

// Resolve fetches the schedule feed, extracts the stream parameters from the
// convened session's player page URL, and probes candidate playlist URLs in
// order until one answers 200. When the Senate is not in session no probe is
// issued.
func (r *Resolver) Resolve(ctx context.Context) (Resolution, error) {
	pageURL, err := r.fetchSessionPageURL(ctx)
	if err != nil {
		return Resolution{}, err
	}
	r.logger().Debug("found stream page URL", "url", pageURL)

	desc, err := ParsePageURL(pageURL)
	if err != nil {
		return Resolution{}, err
	}
	r.logger().Info("extracted stream parameters",
		"committee", desc.Committee,
		"filename", desc.FileBase,
		"stream_id", desc.StreamID(),
	)

	playable, err := r.probeCandidates(ctx, Candidates(desc))
	if err != nil {
		return Resolution{}, err
	}

	return Resolution{PlayableURL: playable, Descriptor: desc}, nil
}

// ResolveWithRetry runs Resolve under the given policy. Every failure is
// retried on the fixed schedule; an out-of-session feed is logged as an
// expected condition rather than a fault.
func (r *Resolver) ResolveWithRetry(ctx context.Context, policy retry.Policy) (Resolution, error) {
	log := r.logger()

	var res Resolution
	attempt := 0
	err := policy.Do(ctx, func(ctx context.Context) error {
		attempt++
		log.Info("checking senate session status",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"feed_url", r.feedURL(),
		)

		var resolveErr error
		res, resolveErr = r.Resolve(ctx)
		if resolveErr != nil {
			if errors.Is(resolveErr, ErrNotInSession) {
				log.Info("senate is not in session")
			} else {
				log.Error("stream resolution failed", "attempt", attempt, "error", resolveErr)
			}
			return resolveErr
		}
		return nil
	})
	if err != nil {
		return Resolution{}, err
	}
	return res, nil
}

// ParsePageURL extracts the stream descriptor from a player page URL. The
// URL must carry the type=live marker plus comm and filename parameters.
func ParsePageURL(pageURL string) (Descriptor, error) {
	if !strings.Contains(pageURL, "type=live") {
		return Descriptor{}, ErrInvalidURLFormat
	}

	comm := commPattern.FindStringSubmatch(pageURL)
	if comm == nil {
		return Descriptor{}, &MissingParamError{Param: "comm"}
	}
	filename := filenamePattern.FindStringSubmatch(pageURL)
	if filename == nil {
		return Descriptor{}, &MissingParamError{Param: "filename"}
	}

	return Descriptor{Committee: comm[1], FileBase: filename[1]}, nil
}

// Candidates returns the playlist URLs to probe for a stream, primary CDN
// endpoint first, then the two archive fallbacks.
func Candidates(d Descriptor) []string {
	return []string{
		fmt.Sprintf("https://www-senate-gov-media-srs.akamaized.net/hls/live/2096634/%s/%s/master.m3u8", d.Committee, d.FileBase),
		fmt.Sprintf("https://www-senate-gov-msl3archive.akamaized.net/stv/%s_1/master.m3u8", d.FileBase),
		fmt.Sprintf("https://stv-f.akamaihd.net/i/%s_1@76462/master.m3u8", d.FileBase),
	}
}

type feedDocument struct {
	FloorProceedings []struct {
		ConvenedSessionStream string `json:"convenedSessionStream"`
	} `json:"floorProceedings"`
}

func (r *Resolver) fetchSessionPageURL(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.feedURL(), nil)
	if err != nil {
		return "", &FeedError{Err: err}
	}

	resp, err := r.client().Do(req)
	if err != nil {
		return "", &FeedError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FeedError{Status: resp.StatusCode}
	}

	var doc feedDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", &FeedError{Err: fmt.Errorf("decoding schedule feed: %w", err)}
	}

	if len(doc.FloorProceedings) == 0 {
		return "", ErrNotInSession
	}

	pageURL := doc.FloorProceedings[0].ConvenedSessionStream
	if pageURL == "" {
		return "", ErrNoStreamURL
	}
	return pageURL, nil
}

func (r *Resolver) probeCandidates(ctx context.Context, candidates []string) (string, error) {
	log := r.logger()
	for i, candidate := range candidates {
		status, err := r.probe(ctx, candidate)
		switch {
		case err != nil:
			log.Warn("stream candidate not reachable", "candidate", i+1, "url", candidate, "error", err)
		case status == http.StatusOK:
			log.Info("stream candidate accepted", "candidate", i+1, "url", candidate)
			return candidate, nil
		default:
			log.Warn("stream candidate rejected", "candidate", i+1, "url", candidate, "status", status)
		}

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", ErrAllCandidatesUnreachable
}

func (r *Resolver) probe(ctx context.Context, url string) (int, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := r.client().Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (r *Resolver) feedURL() string {
	if r.FeedURL != "" {
		return r.FeedURL
	}
	return DefaultFeedURL
}

func (r *Resolver) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return http.DefaultClient
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
