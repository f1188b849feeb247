package subagents

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gomind-labs/taskrunner/ai/providers"
	"github.com/gomind-labs/taskrunner/core"
)

const (
	sourceGeneralWeb = "general-web"
	sourceScholarly  = "scholarly"

	defaultScholarlyQuery = `all:("large language model" OR LLM OR agent) AND ` +
		`all:(memory OR "long-term memory" OR retrieval OR RAG OR "episodic memory" OR "semantic memory")`
)

// WebSearchAgent queries each requested source independently; a
// per-source failure becomes an {error} entry for that source, never a
// raised error (spec.md §4.1). Required field: query (alias: q);
// optional: sources (default general-web, scholarly), max_results,
// last_days, domain_specific_query.
type WebSearchAgent struct {
	*providers.BaseClient
	generalWebURL string
	scholarlyURL  string
}

func NewWebSearchAgent(logger core.Logger) *WebSearchAgent {
	return &WebSearchAgent{
		BaseClient:    providers.NewBaseClient(30*time.Second, logger),
		generalWebURL: "https://api.duckduckgo.com/",
		scholarlyURL:  "http://export.arxiv.org/api/query",
	}
}

func (a *WebSearchAgent) Execute(ctx context.Context, sessionID string, payload Payload) Output {
	query := stringField(payload, "query", "q")
	if query == "" {
		return Output{"error": "WebSearch requires query"}
	}
	sources := stringSliceField(payload, "sources", []string{sourceGeneralWeb, sourceScholarly})
	maxResults := intField(payload, "max_results", 10)
	lastDays := intField(payload, "last_days", 0)
	domainQuery := stringField(payload, "domain_specific_query")

	out := Output{}
	for _, src := range sources {
		switch src {
		case sourceGeneralWeb:
			out[sourceGeneralWeb] = a.generalWeb(ctx, query)
		case sourceScholarly:
			q := domainQuery
			if q == "" {
				q = defaultScholarlyQuery
			}
			out[sourceScholarly] = a.scholarly(ctx, q, maxResults, lastDays)
		}
	}
	return out
}

func (a *WebSearchAgent) generalWeb(ctx context.Context, query string) map[string]interface{} {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_redirect", "1")
	q.Set("no_html", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.generalWebURL+"?"+q.Encode(), nil)
	if err != nil {
		return map[string]interface{}{"engine": "duckduckgo", "error": err.Error()}
	}
	resp, err := a.ExecuteWithRetry(ctx, req)
	if err != nil {
		return map[string]interface{}{"engine": "duckduckgo", "error": err.Error()}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return map[string]interface{}{"engine": "duckduckgo", "error": err.Error()}
	}

	var parsed struct {
		AbstractText  string `json:"AbstractText"`
		Abstract      string `json:"Abstract"`
		RelatedTopics []struct {
			Text string `json:"Text"`
		} `json:"RelatedTopics"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return map[string]interface{}{"engine": "duckduckgo", "error": err.Error()}
	}
	abstract := parsed.AbstractText
	if abstract == "" {
		abstract = parsed.Abstract
	}
	related := make([]string, 0, 5)
	for _, t := range parsed.RelatedTopics {
		if t.Text == "" {
			continue
		}
		related = append(related, t.Text)
		if len(related) >= 5 {
			break
		}
	}
	return map[string]interface{}{"engine": "duckduckgo", "abstract": abstract, "related": related}
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
}

func (a *WebSearchAgent) scholarly(ctx context.Context, query string, maxResults, lastDays int) map[string]interface{} {
	if maxResults <= 0 {
		maxResults = 10
	}
	fetchCount := maxResults
	if lastDays > 0 {
		fetchCount = maxResults * 3
	}

	q := url.Values{}
	q.Set("search_query", query)
	q.Set("start", "0")
	q.Set("max_results", strconv.Itoa(fetchCount))
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.scholarlyURL+"?"+q.Encode(), nil)
	if err != nil {
		return map[string]interface{}{"engine": "arxiv", "error": err.Error()}
	}
	resp, err := a.ExecuteWithRetry(ctx, req)
	if err != nil {
		return map[string]interface{}{"engine": "arxiv", "error": err.Error()}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return map[string]interface{}{"engine": "arxiv", "error": err.Error()}
	}

	var feed atomFeed
	if err := xml.Unmarshal(raw, &feed); err != nil {
		return map[string]interface{}{"engine": "arxiv", "error": err.Error()}
	}

	var cutoff time.Time
	if lastDays > 0 {
		cutoff = time.Now().UTC().AddDate(0, 0, -lastDays)
	}

	entries := make([]interface{}, 0, maxResults)
	for _, e := range feed.Entries {
		if !cutoff.IsZero() {
			if pub, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil && pub.Before(cutoff) {
				continue
			}
		}
		entries = append(entries, map[string]interface{}{
			"title":     strings.TrimSpace(e.Title),
			"summary":   strings.TrimSpace(e.Summary),
			"published": e.Published,
		})
		if len(entries) >= maxResults {
			break
		}
	}
	return map[string]interface{}{"engine": "arxiv", "entries": entries}
}
