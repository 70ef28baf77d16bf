//go:build vosk

package capability

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"
)

type voskResult struct {
	Text string `json:"text"`
}

// VoskRecognizer 以本機 Vosk 模型轉寫，模型只載入一次
type VoskRecognizer struct {
	mu         sync.Mutex
	model      *vosk.VoskModel
	sampleRate float64
}

func NewVoskRecognizer(modelPath string, sampleRate int) (*VoskRecognizer, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: vosk model %s: %v", ErrUnavailable, modelPath, err)
	}
	vosk.SetLogLevel(-1)
	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("loading vosk model: %w", err)
	}
	return &VoskRecognizer{model: model, sampleRate: float64(sampleRate)}, nil
}

func (r *VoskRecognizer) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := vosk.NewRecognizer(r.model, r.sampleRate)
	if err != nil {
		return "", fmt.Errorf("creating vosk recognizer: %w", err)
	}
	defer rec.Free()
	rec.SetWords(0)

	var raw string
	if rec.AcceptWaveform(AudioPayload(audio)) != 0 {
		raw = rec.Result()
	} else {
		raw = rec.FinalResult()
	}

	var result voskResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return "", fmt.Errorf("parsing vosk result: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}

func (r *VoskRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.model != nil {
		r.model.Free()
		r.model = nil
	}
	return nil
}

// NewLocalBackend 使用 Vosk 轉寫，翻譯與合成使用內建實作
func NewLocalBackend(modelPath string, sampleRate int) (*Backend, error) {
	rec, err := NewVoskRecognizer(modelPath, sampleRate)
	if err != nil {
		return nil, err
	}
	return NewBackend("local", WithRecognizer(rec), WithCloser(rec.Close)), nil
}
