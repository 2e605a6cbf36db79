package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/claimlens/retry"
	"github.com/maastricht-university/claimlens/schema"
)

const statementPrompt = `You analyze transcripts of corporate videos (investor days, earnings calls, product launches, keynotes).
Extract every checkable statement: a claim about facts, numbers, plans, forecasts or decisions that could later be verified as true or false.
Rewrite each claim as a short self-contained proposition and keep the time span in which it is said.
Ignore greetings, filler and opinions that cannot be verified.
Output ONLY a JSON object with key 'statements' containing an array. Each element must have: start (M:SS), end (M:SS), statement.`

// Extractor pulls checkable statements out of one transcript chunk.
type Extractor struct {
	c *Client
}

func NewExtractor(c *Client) *Extractor { return &Extractor{c: c} }

type statementItem struct {
	Start     Timestamp `json:"start"`
	End       Timestamp `json:"end"`
	Statement string    `json:"statement"`
}

func (e *Extractor) ExtractStatements(ctx context.Context, req schema.ChunkRequest) ([]schema.Statement, error) {
	msg, err := e.c.chat(ctx, "extract_statements", openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: statementPrompt},
			{Role: openai.ChatMessageRoleUser, Content: chunkPrompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, err
	}
	out, skipped, err := parseStatements(msg.Content)
	if err != nil {
		return nil, retry.E(retry.CodeInvalidArgument, "extract_statements", err)
	}
	if skipped > 0 {
		e.c.log.WithFields(logrus.Fields{"description": req.Description, "skipped": skipped}).
			Warn("dropped malformed statements")
	}
	return out, nil
}

// parseStatements decodes the model reply. Items with bad timestamps or no
// text are skipped and counted. Reversed spans are swapped.
func parseStatements(content string) ([]schema.Statement, int, error) {
	var doc struct {
		Statements []json.RawMessage `json:"statements"`
	}
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, 0, err
	}
	out := make([]schema.Statement, 0, len(doc.Statements))
	skipped := 0
	for _, raw := range doc.Statements {
		var it statementItem
		if err := json.Unmarshal(raw, &it); err != nil || strings.TrimSpace(it.Statement) == "" {
			skipped++
			continue
		}
		s, e := float64(it.Start), float64(it.End)
		if e < s {
			s, e = e, s
		}
		out = append(out, schema.Statement{Start: s, End: e, Text: strings.TrimSpace(it.Statement)})
	}
	return out, skipped, nil
}

func chunkPrompt(req schema.ChunkRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Video description: %s\n", req.Description)
	fmt.Fprintf(&b, "Window: %s - %s\n", mmss(req.StartSec), mmss(req.EndSec))
	if req.AudioOnly {
		b.WriteString("The input is audio-only.\n")
	}
	b.WriteString("\nTranscript:\n")
	b.WriteString(req.Transcript)
	return b.String()
}
