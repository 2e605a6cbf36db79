package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/claimlens/identity"
	"github.com/maastricht-university/claimlens/retry"
	"github.com/maastricht-university/claimlens/schema"
)

const speakerPrompt = `You are an expert at analyzing corporate video transcripts (investor days, earnings calls, product launches, keynotes) to identify every speaker.

1. Read the transcript carefully. Identify the company and event type.
2. Extract every person mentioned or implied as a speaker: introductions ("please welcome..."), name drops, self-introductions and speaker transitions.
3. For EACH speaker, first use db_search to check whether they are already in our database. If they are, use the returned speakerId. If not, and web_search is available, use it to find their full name, job title and role, then add them with db_insert. The transcript may contain typos in names; fix them.
4. Return only the segments you are certain were said by that speaker. Ignore short or ambiguous sentences like "Thank you".`

const segmentsPrompt = "Now output ONLY a JSON object with key 'segments' containing an array. " +
	"Each element must have: speakerId (from our DB), start (M:SS), end (M:SS). " +
	"Merge consecutive segments for the same speaker. Order by appearance time."

const searchLimit = 5

// Indexer identifies the speakers of a chunk in two phases: a tool-use
// conversation against the identity repository, then a structured answer.
type Indexer struct {
	c         *Client
	people    identity.Repository
	web       Searcher
	maxRounds int
}

func NewIndexer(c *Client, people identity.Repository, maxRounds int) *Indexer {
	if maxRounds <= 0 {
		maxRounds = 6
	}
	return &Indexer{c: c, people: people, maxRounds: maxRounds}
}

// WithSearch offers the model a web_search tool backed by s.
func (ix *Indexer) WithSearch(s Searcher) *Indexer {
	ix.web = s
	return ix
}

func (ix *Indexer) tools() []openai.Tool {
	if ix.web == nil {
		return dbTools
	}
	return append(dbTools[:len(dbTools):len(dbTools)], webSearchTool)
}

func (ix *Indexer) IndexSpeakers(ctx context.Context, req schema.ChunkRequest) ([]schema.SpeakerSegment, error) {
	log := ix.c.log.WithField("description", req.Description)
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: speakerPrompt},
		{Role: openai.ChatMessageRoleUser, Content: speakerUserPrompt(req) +
			"\n\nIdentify every speaker with their full name and title. Ensure they are in our database, then return the segments linked with speakerId."},
	}

	done := false
	for round := 0; round < ix.maxRounds; round++ {
		msg, err := ix.c.chat(ctx, "index_speakers", openai.ChatCompletionRequest{
			Messages: msgs,
			Tools:    ix.tools(),
		})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
		if len(msg.ToolCalls) == 0 {
			done = true
			break
		}
		for _, tc := range msg.ToolCalls {
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: tc.ID,
				Content:    ix.execute(ctx, log, tc.Function),
			})
		}
	}
	if !done {
		log.WithField("rounds", ix.maxRounds).Warn("tool budget exhausted, asking for segments")
	}

	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: segmentsPrompt})
	msg, err := ix.c.chat(ctx, "index_speakers", openai.ChatCompletionRequest{
		Messages:       msgs,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, err
	}
	segs, skipped, err := parseSegments(msg.Content)
	if err != nil {
		return nil, retry.E(retry.CodeInvalidArgument, "index_speakers", err)
	}
	if skipped > 0 {
		log.WithField("skipped", skipped).Warn("dropped malformed speaker segments")
	}
	return segs, nil
}

func speakerUserPrompt(req schema.ChunkRequest) string {
	p := chunkPrompt(req)
	if req.Duration <= 0 {
		return p
	}
	line := fmt.Sprintf("Video duration: %.0f seconds (%.1f minutes)\n", req.Duration, req.Duration/60)
	// directly after the description line
	if i := strings.IndexByte(p, '\n'); i >= 0 {
		return p[:i+1] + line + p[i+1:]
	}
	return line + p
}

type segmentItem struct {
	SpeakerID string    `json:"speakerId"`
	Start     Timestamp `json:"start"`
	End       Timestamp `json:"end"`
}

func parseSegments(content string) ([]schema.SpeakerSegment, int, error) {
	var doc struct {
		Segments []json.RawMessage `json:"segments"`
	}
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, 0, err
	}
	out := make([]schema.SpeakerSegment, 0, len(doc.Segments))
	skipped := 0
	for _, raw := range doc.Segments {
		var it segmentItem
		if err := json.Unmarshal(raw, &it); err != nil || strings.TrimSpace(it.SpeakerID) == "" {
			skipped++
			continue
		}
		s, e := float64(it.Start), float64(it.End)
		if e < s {
			s, e = e, s
		}
		out = append(out, schema.SpeakerSegment{SpeakerID: strings.TrimSpace(it.SpeakerID), Start: s, End: e})
	}
	return out, skipped, nil
}

// dbPerson is the shape the model sees for a repository entry.
type dbPerson struct {
	SpeakerID    string `json:"speakerId"`
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	Role         string `json:"role,omitempty"`
}

// execute runs one tool call. Failures are reported back to the model
// as the tool result instead of aborting the conversation.
func (ix *Indexer) execute(ctx context.Context, log logrus.FieldLogger, fn openai.FunctionCall) string {
	var args map[string]string
	if strings.TrimSpace(fn.Arguments) != "" {
		if err := json.Unmarshal([]byte(fn.Arguments), &args); err != nil {
			return toolError(fmt.Errorf("bad arguments: %w", err))
		}
	}
	log = log.WithField("tool", fn.Name)

	switch fn.Name {
	case "db_search":
		found, err := ix.people.Search(ctx, args["query"], searchLimit)
		if err != nil {
			log.WithError(err).Warn("db_search failed")
			return toolError(err)
		}
		out := make([]dbPerson, len(found))
		for i, p := range found {
			out[i] = dbPerson{SpeakerID: p.ID, Name: p.Name, Organization: p.OrganizationID, Role: p.Position}
		}
		log.WithFields(logrus.Fields{"query": args["query"], "hits": len(out)}).Debug("db_search")
		return mustJSON(out)
	case "db_insert":
		if strings.TrimSpace(args["name"]) == "" {
			return toolError(fmt.Errorf("name is required"))
		}
		p, err := ix.people.Insert(ctx, identity.Person{
			Name:           strings.TrimSpace(args["name"]),
			OrganizationID: args["organization"],
			Position:       args["role"],
		})
		if err != nil {
			log.WithError(err).Warn("db_insert failed")
			return toolError(err)
		}
		log.WithFields(logrus.Fields{"speaker_id": p.ID, "name": p.Name}).Info("speaker enrolled")
		return mustJSON(map[string]string{"speakerId": p.ID})
	case "web_search":
		if ix.web == nil {
			break
		}
		hits, err := ix.web.Search(ctx, args["query"], searchLimit)
		if err != nil {
			log.WithError(err).Warn("web_search failed")
			return toolError(err)
		}
		log.WithFields(logrus.Fields{"query": args["query"], "hits": len(hits)}).Debug("web_search")
		return formatHits(hits)
	}
	return toolError(fmt.Errorf("unknown tool %q", fn.Name))
}

func toolError(err error) string {
	return mustJSON(map[string]string{"error": err.Error()})
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"error":"encode"}`
	}
	return string(b)
}

var dbTools = []openai.Tool{
	{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        "db_search",
			Description: "Search our people database for a speaker's full name, organization and role. Use this for EVERY speaker to resolve their speakerId.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"query": {Type: jsonschema.String, Description: "Search query, e.g. 'Intuit Sasan CEO'"},
				},
				Required: []string{"query"},
			},
		},
	},
	{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        "db_insert",
			Description: "Insert a speaker into our people database. Returns the new speakerId.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"name":         {Type: jsonschema.String, Description: "Full name, e.g. 'Elon Musk'"},
					"organization": {Type: jsonschema.String, Description: "Company the person belongs to"},
					"role":         {Type: jsonschema.String, Description: "Role in the company, may be empty"},
				},
				Required: []string{"name", "organization", "role"},
			},
		},
	},
}

var webSearchTool = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        "web_search",
		Description: "Search the web to find the full name, job title, and role of a person mentioned in a corporate video. Use this for speakers not in our database.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"query": {Type: jsonschema.String, Description: "Search query, e.g. 'Intuit CFO 2024 investor day'"},
			},
			Required: []string{"query"},
		},
	},
}
