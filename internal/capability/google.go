package capability

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

const (
	googleSpeechURL    = "https://speech.googleapis.com/v1/speech:recognize"
	googleTranslateURL = "https://translation.googleapis.com/language/translate/v2"
	googleTTSURL       = "https://texttospeech.googleapis.com/v1/text:synthesize"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// googleClient 以 API key 呼叫 Google Cloud REST 端點
type googleClient struct {
	apiKey     string
	httpClient *http.Client
	endpoints  map[string]string
}

func newGoogleClient(apiKey string, httpClient *http.Client) *googleClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &googleClient{
		apiKey:     apiKey,
		httpClient: httpClient,
		endpoints: map[string]string{
			"speech":    googleSpeechURL,
			"translate": googleTranslateURL,
			"tts":       googleTTSURL,
		},
	}
}

func (c *googleClient) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling body: %w", err)
	}

	target := c.endpoints[endpoint] + "?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s request failed with status %d: %s", endpoint, resp.StatusCode, truncate(string(respBody), 200))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", endpoint, err)
	}
	return nil
}

// GoogleRecognizer 使用 speech:recognize，音訊為 16kHz LINEAR16
type GoogleRecognizer struct {
	client     *googleClient
	sampleRate int
	model      string
}

func (r *GoogleRecognizer) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	body := map[string]any{
		"config": map[string]any{
			"encoding":                   "LINEAR16",
			"sampleRateHertz":            r.sampleRate,
			"languageCode":               locale(language, "fr"),
			"enableAutomaticPunctuation": true,
			"model":                      r.model,
		},
		"audio": map[string]any{
			"content": base64.StdEncoding.EncodeToString(AudioPayload(audio)),
		},
	}

	var resp struct {
		Results []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"results"`
	}
	if err := r.client.post(ctx, "speech", body, &resp); err != nil {
		return "", err
	}

	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			parts = append(parts, strings.TrimSpace(result.Alternatives[0].Transcript))
		}
	}
	return strings.TrimSpace(strings.Join(parts, " ")), nil
}

// GoogleTranslator 使用 Cloud Translation v2
type GoogleTranslator struct {
	client *googleClient
}

func (t *GoogleTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	body := map[string]any{
		"q":      text,
		"source": source,
		"target": target,
		"format": "text",
	}

	var resp struct {
		Data struct {
			Translations []struct {
				TranslatedText string `json:"translatedText"`
			} `json:"translations"`
		} `json:"data"`
	}
	if err := t.client.post(ctx, "translate", body, &resp); err != nil {
		return "", err
	}
	if len(resp.Data.Translations) == 0 {
		return "", fmt.Errorf("translate returned no translations")
	}
	return resp.Data.Translations[0].TranslatedText, nil
}

// GoogleSynthesizer 使用 text:synthesize 產生 LINEAR16 WAV
type GoogleSynthesizer struct {
	client     *googleClient
	neural     bool
	sampleRate int
}

func (s *GoogleSynthesizer) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("nothing to synthesize")
	}

	lang, ok := LookupLanguage(language)
	if !ok {
		lang, _ = LookupLanguage("en")
	}
	voice := lang.Voice
	if s.neural {
		voice = lang.NeuralVoice
	}

	body := map[string]any{
		"input": map[string]any{"text": text},
		"voice": map[string]any{"languageCode": lang.LocaleCode, "name": voice},
		"audioConfig": map[string]any{
			"audioEncoding":   "LINEAR16",
			"speakingRate":    1.0,
			"sampleRateHertz": s.rate(),
		},
	}

	var resp struct {
		AudioContent string `json:"audioContent"`
	}
	if err := s.client.post(ctx, "tts", body, &resp); err != nil {
		return nil, err
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, err
	}
	// LINEAR16 通常已帶 WAV 標頭，沒有時補上
	if _, err := PCMFromWAV(audio); err != nil {
		audio = EncodeWAV(audio, s.rate())
	}
	return audio, nil
}

func (s *GoogleSynthesizer) rate() int {
	if s.sampleRate <= 0 {
		return DefaultSampleRate
	}
	return s.sampleRate
}

// NewCloudBackend 完全使用 Google Cloud 的後端
func NewCloudBackend(apiKey string, sampleRate int, httpClient *http.Client) (*Backend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: google api key is not configured", ErrUnavailable)
	}
	client := newGoogleClient(apiKey, httpClient)
	return NewBackend("cloud",
		WithRecognizer(&GoogleRecognizer{client: client, sampleRate: sampleRate, model: "latest_long"}),
		WithTranslator(&GoogleTranslator{client: client}),
		WithSynthesizer(&GoogleSynthesizer{client: client, neural: true, sampleRate: sampleRate}),
	), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
