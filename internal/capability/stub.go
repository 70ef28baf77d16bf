package capability

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// StubRecognizer 依音訊長度回傳固定句子，沒有模型時使用
type StubRecognizer struct{}

func (StubRecognizer) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	switch n := len(audio); {
	case n == 0:
		return "", nil
	case n < 1000:
		return "Bonjour", nil
	case n < 2000:
		return "Comment allez-vous aujourd'hui?", nil
	default:
		return "Je suis ravi de participer à cette conférence multilingue", nil
	}
}

var stubPhrases = map[string]map[string]string{
	"bonjour": {
		"en": "Hello", "es": "Hola", "de": "Hallo", "it": "Ciao", "pt": "Olá",
	},
	"comment allez-vous aujourd'hui?": {
		"en": "How are you today?", "es": "¿Cómo está usted hoy?", "de": "Wie geht es Ihnen heute?",
	},
	"je suis ravi de participer à cette conférence multilingue": {
		"en": "I am delighted to take part in this multilingual conference",
		"es": "Estoy encantado de participar en esta conferencia multilingüe",
	},
	"hello": {
		"fr": "Bonjour", "es": "Hola", "de": "Hallo",
	},
}

// StubTranslator 使用內建詞典，查不到時加上目標語言標記
type StubTranslator struct{}

func (StubTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == target {
		return text, nil
	}
	if byTarget, ok := stubPhrases[strings.ToLower(strings.TrimSpace(text))]; ok {
		if translated, ok := byTarget[target]; ok {
			return translated, nil
		}
	}
	return fmt.Sprintf("[%s] %s", target, text), nil
}

// StubSynthesizer 產生長度與文字成比例的靜音 WAV
type StubSynthesizer struct{}

func (StubSynthesizer) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	duration := time.Duration(len([]rune(text))) * 60 * time.Millisecond
	if duration < time.Second {
		duration = time.Second
	}
	return SilentWAV(DefaultSampleRate, duration), nil
}

// NewStubBackend 是最後的備援，永遠可以初始化
func NewStubBackend() *Backend {
	return NewBackend("stub")
}
