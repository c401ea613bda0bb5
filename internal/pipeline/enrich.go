package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/devpulse-hq/devpulse-bot/internal/domain"
	"github.com/devpulse-hq/devpulse-bot/internal/logger"
	"github.com/devpulse-hq/devpulse-bot/pkg/httpclient"
)

const maxHTMLBodyBytes = 1 << 20 // 1 MiB

// Enricher fetches a candidate's page and extracts OG metadata so the
// generator prompt has more than a bare headline to work with. Any failure
// degrades to the unenriched candidate.
type Enricher struct {
	client httpclient.Client
	log    logger.Logger
}

func NewEnricher(client httpclient.Client, log logger.Logger) *Enricher {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Enricher{client: client, log: log}
}

// Describe returns the page's OG (or meta) description for the candidate,
// or "" when the page cannot be fetched or parsed.
func (e *Enricher) Describe(ctx context.Context, candidate domain.RankedCandidate) string {
	if e == nil || e.client == nil || candidate.URL == "" {
		return ""
	}

	description, err := e.fetchDescription(ctx, candidate.URL)
	if err != nil {
		e.log.DebugObj("candidate page scrape failed", "enrich_error", map[string]any{
			"url":   candidate.URL,
			"error": err.Error(),
		})
		return ""
	}
	return description
}

func (e *Enricher) fetchDescription(ctx context.Context, url string) (string, error) {
	resp, err := e.client.Get(ctx, url, nil, nil)
	if err != nil {
		return "", fmt.Errorf("http fetch: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("status %d", resp.StatusCode())
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	extract := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	description := extract(`meta[property="og:description"]`)
	if description == "" {
		description = extract(`meta[name="description"]`)
	}
	return description, nil
}
