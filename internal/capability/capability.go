// Package capability 定義語音轉寫、翻譯與語音合成的能力介面。
//
// 後端 (Backend) 的每個部分都可能失敗；Degrading 將任一後端包裝成
// 永不失敗的 Capability，讓會議處理流程不需要關心目前使用哪一個後端。
package capability

import (
	"context"
	"errors"
)

// ErrUnavailable 表示後端無法在目前環境初始化
var ErrUnavailable = errors.New("capability backend unavailable")

// Recognizer 將語音轉為文字，沒有偵測到語音時回傳空字串
type Recognizer interface {
	Transcribe(ctx context.Context, audio []byte, language string) (string, error)
}

type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}

// Capability 是會議處理流程實際依賴的介面，所有呼叫都不會回傳錯誤
type Capability interface {
	// Transcribe 在沒有語音或後端失敗時回傳 ("", false)
	Transcribe(ctx context.Context, audio []byte, language string) (string, bool)
	// Translate 在 source == target 或後端失敗時回傳原文
	Translate(ctx context.Context, text, source, target string) string
	// Synthesize 在後端失敗時回傳一秒的靜音 WAV
	Synthesize(ctx context.Context, text, language string) []byte
	Name() string
}

// Backend 是由三個部分組成的具名後端
type Backend struct {
	name        string
	recognizer  Recognizer
	translator  Translator
	synthesizer Synthesizer
	closers     []func() error
}

type Option func(*Backend)

func WithRecognizer(r Recognizer) Option {
	return func(b *Backend) { b.recognizer = r }
}

func WithTranslator(t Translator) Option {
	return func(b *Backend) { b.translator = t }
}

func WithSynthesizer(s Synthesizer) Option {
	return func(b *Backend) { b.synthesizer = s }
}

// WithCloser 登記關閉後端時需要釋放的資源
func WithCloser(fn func() error) Option {
	return func(b *Backend) { b.closers = append(b.closers, fn) }
}

// NewBackend 建立後端，未指定的部分使用模擬實作
func NewBackend(name string, opts ...Option) *Backend {
	b := &Backend{name: name}
	for _, opt := range opts {
		opt(b)
	}
	if b.recognizer == nil {
		b.recognizer = StubRecognizer{}
	}
	if b.translator == nil {
		b.translator = StubTranslator{}
	}
	if b.synthesizer == nil {
		b.synthesizer = StubSynthesizer{}
	}
	return b
}

func (b *Backend) Name() string { return b.name }

func (b *Backend) Close() error {
	var errs []error
	for _, fn := range b.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
