package capability

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/"

const geminiPrompt = `You are an expert professional translator.

Translate this sentence from %s to %s.

RULES:
- Translate naturally and fluently
- Preserve the tone and intent of the message
- Adapt idiomatic expressions
- Reply with the translation only, nothing else
- No explanations, no comments

Text to translate: "%s"

Translation:`

// GeminiTranslator 透過 generateContent 翻譯
type GeminiTranslator struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewGeminiTranslator(apiKey, model string, httpClient *http.Client) *GeminiTranslator {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GeminiTranslator{apiKey: apiKey, model: model, baseURL: geminiBaseURL, httpClient: httpClient}
}

func (g *GeminiTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	body := map[string]any{
		"contents": []map[string]any{{
			"parts": []map[string]any{{
				"text": fmt.Sprintf(geminiPrompt, displayName(source), displayName(target), text),
			}},
		}},
		"generationConfig": map[string]any{
			"temperature":     0.3,
			"maxOutputTokens": 500,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling body: %w", err)
	}

	endpoint := g.baseURL + url.PathEscape(g.model) + ":generateContent?key=" + url.QueryEscape(g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini request failed with status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parsing gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	return cleanTranslation(parsed.Candidates[0].Content.Parts[0].Text), nil
}

// cleanTranslation 移除模型常加上的引號
func cleanTranslation(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}

// NewPremiumBackend 使用 Google STT + Gemini 翻譯 + Google TTS
func NewPremiumBackend(googleKey, geminiKey, model string, sampleRate int, httpClient *http.Client) (*Backend, error) {
	if googleKey == "" || geminiKey == "" {
		return nil, fmt.Errorf("%w: google and gemini api keys are required", ErrUnavailable)
	}
	client := newGoogleClient(googleKey, httpClient)
	return NewBackend("premium",
		WithRecognizer(&GoogleRecognizer{client: client, sampleRate: sampleRate, model: "default"}),
		WithTranslator(NewGeminiTranslator(geminiKey, model, httpClient)),
		WithSynthesizer(&GoogleSynthesizer{client: client, sampleRate: sampleRate}),
	), nil
}
