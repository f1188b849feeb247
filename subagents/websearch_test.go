package subagents

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSearch_RequiresQuery(t *testing.T) {
	agent := NewWebSearchAgent(nil)
	out := agent.Execute(context.Background(), "s", Payload{})
	assert.NotEmpty(t, out["error"])
}

func TestWebSearch_GeneralWebSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"AbstractText":"gomind is a Go agent framework","RelatedTopics":[{"Text":"related one"}]}`))
	}))
	defer srv.Close()

	agent := NewWebSearchAgent(nil)
	agent.generalWebURL = srv.URL

	out := agent.Execute(context.Background(), "s", Payload{"query": "gomind", "sources": []string{"general-web"}})
	general, ok := out[sourceGeneralWeb].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "gomind is a Go agent framework", general["abstract"])
}

func TestWebSearch_ScholarlySource(t *testing.T) {
	const feed = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry><title>Agent Memory Survey</title><summary>A survey.</summary><published>2026-01-01T00:00:00Z</published></entry>
</feed>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	agent := NewWebSearchAgent(nil)
	agent.scholarlyURL = srv.URL

	out := agent.Execute(context.Background(), "s", Payload{"query": "agent memory", "sources": []string{"scholarly"}})
	scholarly, ok := out[sourceScholarly].(map[string]interface{})
	require.True(t, ok)
	entries, ok := scholarly["entries"].([]interface{})
	require.True(t, ok)
	require.Len(t, entries, 1)
}
