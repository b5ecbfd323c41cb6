package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"exit-ticket-service/internal/domain"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

const systemPrompt = `You are an instructional designer writing exit-ticket questions for engineering courses.

Return a JSON object of this exact shape:
{
  "questions": [
    {
      "question": "The question text",
      "options": {
        "A": "First option",
        "B": "Second option",
        "C": "Third option",
        "D": "Fourth option"
      },
      "correctAnswer": "C",
      "explanation": "Brief explanation of why this answer is correct",
      "topic": "Main topic of the question",
      "subtopic": "Specific concept or focus area"
    }
  ]
}

Requirements:
- Return ONLY valid JSON format
- Ensure all questions are relevant to the provided topics and the subject
- Do not deviate or hallucinate away from the subject
- Make explanations educational and clear
- Each question MUST include both a "topic" and a "subtopic" field
- Use engineering-appropriate language and precision`

// GeminiClient is a Producer backed by the Gemini generateContent REST API.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewGeminiClient(apiKey, model string) *GeminiClient {
	if model == "" {
		model = "gemini-2.0-flash-exp"
	}
	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultGeminiBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// SetBaseURL points the client at a different API host (tests).
func (c *GeminiClient) SetBaseURL(url string) { c.baseURL = strings.TrimRight(url, "/") }

func (c *GeminiClient) Generate(ctx context.Context, req Request) ([]domain.Question, error) {
	prompt := c.buildPrompt(req)

	body := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &geminiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	return parseQuestionJSON(geminiResp.Candidates[0].Content.Parts[0].Text)
}

func (c *GeminiClient) buildPrompt(req Request) string {
	instructions := strings.TrimSpace(req.Instructions)
	if instructions == "" {
		instructions = "No additional instructions provided."
	}
	return fmt.Sprintf(`%s

Subject:
%s

Lecture Topics:
%s

Additional Instructions:
%s

Please generate exactly %d MCQs based on the above topics and instructions. Do not generate fewer or more.

Return ONLY the JSON format as specified above.`, systemPrompt, req.Subject, req.Topics, instructions, req.Count)
}

// parseQuestionJSON extracts the JSON object from the model's text, which
// may carry stray prose around it, and decodes the question list.
func parseQuestionJSON(text string) ([]domain.Question, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}
	var batch struct {
		Questions []domain.Question `json:"questions"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &batch); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}
	return batch.Questions, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
