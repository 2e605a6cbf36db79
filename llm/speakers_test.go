package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/maastricht-university/claimlens/identity"
	"github.com/maastricht-university/claimlens/logger"
	"github.com/maastricht-university/claimlens/schema"
)

type fakeSearch struct {
	hits    []SearchResult
	err     error
	queries []string
}

func (f *fakeSearch) Search(_ context.Context, query string, _ int) ([]SearchResult, error) {
	f.queries = append(f.queries, query)
	return f.hits, f.err
}

func TestIndexSpeakersWebSearch(t *testing.T) {
	web := &fakeSearch{hits: []SearchResult{{Title: "Sam Lee - Acme", Body: "Sam Lee is the CFO of Acme Corp."}}}
	people := identity.NewMemory()
	f := &fakeLLM{replies: []func(http.ResponseWriter){
		message(openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{{
				ID:       "call_web",
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: "web_search", Arguments: `{"query":"Acme CFO Sam"}`},
			}},
		}),
		message(openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{{
				ID:       "call_ins",
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: "db_insert", Arguments: `{"name":"Sam Lee","organization":"Acme Corp","role":"CFO"}`},
			}},
		}),
		content("Sam Lee is enrolled."),
		content(`{"segments":[{"speakerId":"ignored","start":"0:05","end":"0:30"}]}`),
	}}
	ix := NewIndexer(newTestClient(t, f), people, 4).WithSearch(web)

	req := schema.ChunkRequest{Description: "Acme investor day", Transcript: "00:05 - 00:30 thanks, Sam", Duration: 5400}
	if _, err := ix.IndexSpeakers(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if f.calls() != 4 {
		t.Fatalf("calls = %d", f.calls())
	}
	if len(web.queries) != 1 || web.queries[0] != "Acme CFO Sam" {
		t.Errorf("queries = %v", web.queries)
	}

	second := f.requests[1].Messages
	reply := second[len(second)-1]
	if reply.ToolCallID != "call_web" || reply.Content != "- Sam Lee - Acme: Sam Lee is the CFO of Acme Corp." {
		t.Errorf("web_search reply = %+v", reply)
	}
	if len(f.requests[0].Tools) != 3 || f.requests[0].Tools[2].Function.Name != "web_search" {
		t.Errorf("tools offered = %d", len(f.requests[0].Tools))
	}
	user := f.requests[0].Messages[1].Content
	if !strings.Contains(user, "Video description: Acme investor day\nVideo duration: 5400 seconds (90.0 minutes)\n") {
		t.Errorf("user prompt missing duration:\n%s", user)
	}
	if found, _ := people.Search(context.Background(), "Sam Lee", 5); len(found) != 1 {
		t.Errorf("people after insert = %+v", found)
	}
}

func TestWebSearchToolReplies(t *testing.T) {
	ctx := context.Background()
	log := logger.Discard()

	web := &fakeSearch{}
	ix := NewIndexer(nil, identity.NewMemory(), 1).WithSearch(web)
	if out := ix.execute(ctx, log, openai.FunctionCall{Name: "web_search", Arguments: `{"query":"nobody"}`}); out != "(no results)" {
		t.Errorf("empty reply = %q", out)
	}
	web.err = errors.New("search backend down")
	if out := ix.execute(ctx, log, openai.FunctionCall{Name: "web_search", Arguments: `{"query":"x"}`}); !strings.Contains(out, "search backend down") {
		t.Errorf("error reply = %q", out)
	}
	if len(NewIndexer(nil, identity.NewMemory(), 1).tools()) != 2 {
		t.Error("web_search offered without a searcher")
	}
}

func TestSpeakerPromptOmitsUnknownDuration(t *testing.T) {
	p := speakerUserPrompt(schema.ChunkRequest{Description: "d"})
	if strings.Contains(p, "Video duration") {
		t.Errorf("prompt = %q", p)
	}
}
