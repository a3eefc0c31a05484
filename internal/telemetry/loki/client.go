// Package loki ships activity events to Grafana Loki through the v1 push API.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const pushPath = "/loki/api/v1/push"

// Entry is one log line and the stream labels it belongs to.
type Entry struct {
	Time   time.Time
	Line   string
	Labels map[string]string
}

type pushRequest struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

var invalidLabelChars = regexp.MustCompile(`[^a-zA-Z0-9_\-:]`)

// EntryFromEvent turns an activity event (the Kafka message value) into an Entry labelled by action and
// severity. Portal ids and emails stay in the line to keep stream cardinality low. A value that is not
// an event is shipped as is, stamped with the current time.
func EntryFromEvent(raw []byte) Entry {
	e := Entry{Time: time.Now().UTC(), Line: string(raw), Labels: map[string]string{}}
	var fields struct {
		Action    string    `json:"action"`
		Severity  string    `json:"severity"`
		CreatedAt time.Time `json:"createdAt"`
	}
	if json.Unmarshal(raw, &fields) != nil {
		return e
	}
	if fields.Action != "" {
		e.Labels["action"] = fields.Action
	}
	if fields.Severity != "" {
		e.Labels["severity"] = strings.ToLower(fields.Severity)
	}
	if !fields.CreatedAt.IsZero() {
		e.Time = fields.CreatedAt
	}
	return e
}

// StatusError is a non-2xx push response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string { return "loki: push returned " + e.Status }

// Retryable reports whether the same batch may succeed later. Loki rejects malformed or
// out-of-order batches with 4xx, which never succeed on retry; 429 is rate limiting.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Client pushes to one Loki instance. Every stream carries job=Job.
type Client struct {
	BaseURL string
	Job     string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Job:     "soc-portal",
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Push sends entries in one request, one stream per distinct label set, lines in time order.
func (c *Client) Push(ctx context.Context, entries ...Entry) error {
	if c == nil || c.BaseURL == "" {
		return errors.New("loki: base URL is empty")
	}
	if len(entries) == 0 {
		return nil
	}
	payload, err := json.Marshal(c.group(entries))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+pushPath, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("loki: push: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	return nil
}

func (c *Client) group(entries []Entry) pushRequest {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })
	var req pushRequest
	index := map[string]int{}
	for _, e := range sorted {
		labels := c.labels(e.Labels)
		key := labelKey(labels)
		i, ok := index[key]
		if !ok {
			i = len(req.Streams)
			index[key] = i
			req.Streams = append(req.Streams, stream{Stream: labels})
		}
		req.Streams[i].Values = append(req.Streams[i].Values, [2]string{strconv.FormatInt(e.Time.UnixNano(), 10), e.Line})
	}
	return req
}

func (c *Client) labels(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		if s := invalidLabelChars.ReplaceAllString(strings.TrimSpace(v), "_"); s != "" {
			out[k] = s
		}
	}
	out["job"] = c.Job
	return out
}

func labelKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}
