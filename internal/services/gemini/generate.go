package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrEmptyResponse is returned when a generation carries no text.
var ErrEmptyResponse = errors.New("no text content found in response")

// Part is one element of a content turn.
type Part struct {
	Text     string    `json:"text,omitempty"`
	FileData *FileData `json:"fileData,omitempty"`
}

// FileData references an uploaded file.
type FileData struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// FilePart builds a part referencing an uploaded file.
func FilePart(uri, mimeType string) Part {
	return Part{FileData: &FileData{MimeType: mimeType, FileURI: uri}}
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type tool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
	Tools    []tool    `json:"tools,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content           content `json:"content"`
		FinishReason      string  `json:"finishReason"`
		GroundingMetadata *struct {
			SearchEntryPoint *struct {
				RenderedContent string `json:"renderedContent"`
			} `json:"searchEntryPoint"`
			WebSearchQueries []string `json:"webSearchQueries"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata *Usage `json:"usageMetadata"`
}

// Usage reports token accounting for a generation.
type Usage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Generation is the decoded result of a generateContent call.
type Generation struct {
	Text             string
	FinishReason     string
	SearchEntryPoint string
	SearchQueries    []string
	Usage            Usage
}

// GenerateContent runs model over parts. withSearch enables the googleSearch tool.
func (c *Client) GenerateContent(ctx context.Context, model string, parts []Part, withSearch bool) (Generation, error) {
	const op = "gemini generate"
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	if model == "" {
		return Generation{}, fmt.Errorf("%s: model required", op)
	}
	if len(parts) == 0 {
		return Generation{}, fmt.Errorf("%s: at least one part required", op)
	}
	endpoint, err := c.endpoint("v1beta", "models", model+":generateContent")
	if err != nil {
		return Generation{}, fmt.Errorf("%s: build url: %w", op, err)
	}
	request := generateRequest{Contents: []content{{Role: "user", Parts: parts}}}
	if withSearch {
		request.Tools = []tool{{GoogleSearch: &struct{}{}}}
	}
	encoded, err := json.Marshal(request)
	if err != nil {
		return Generation{}, fmt.Errorf("%s: encode body: %w", op, err)
	}

	body, err := c.doWithRetry(ctx, op, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return Generation{}, err
	}
	return decodeGeneration(op, body)
}

func decodeGeneration(op string, body []byte) (Generation, error) {
	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Generation{}, fmt.Errorf("%s: decode response: %w (payload snippet: %s)", op, err, summarizePayloadSnippet(string(body)))
	}
	if len(parsed.Candidates) == 0 {
		if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
			return Generation{}, fmt.Errorf("%s: prompt blocked (%s)", op, parsed.PromptFeedback.BlockReason)
		}
		return Generation{}, fmt.Errorf("%s: no candidates in response", op)
	}
	candidate := parsed.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}
	gen := Generation{
		Text:         text.String(),
		FinishReason: candidate.FinishReason,
	}
	if parsed.UsageMetadata != nil {
		gen.Usage = *parsed.UsageMetadata
	}
	if gm := candidate.GroundingMetadata; gm != nil {
		gen.SearchQueries = gm.WebSearchQueries
		if gm.SearchEntryPoint != nil {
			gen.SearchEntryPoint = gm.SearchEntryPoint.RenderedContent
		}
	}
	if strings.TrimSpace(gen.Text) == "" {
		return Generation{}, fmt.Errorf("%s: %w (finish_reason=%q)", op, ErrEmptyResponse, gen.FinishReason)
	}
	return gen, nil
}
