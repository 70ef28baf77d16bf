package capability

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Degrading 把後端錯誤轉為降級結果，並為每次呼叫加上逾時
type Degrading struct {
	backend *Backend
	timeout time.Duration
}

func NewDegrading(backend *Backend, timeout time.Duration) *Degrading {
	return &Degrading{backend: backend, timeout: timeout}
}

func (d *Degrading) Name() string { return d.backend.Name() }

func (d *Degrading) Close() error { return d.backend.Close() }

func (d *Degrading) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}

func (d *Degrading) Transcribe(ctx context.Context, audio []byte, language string) (string, bool) {
	if len(audio) == 0 {
		return "", false
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	text, err := d.backend.recognizer.Transcribe(ctx, audio, language)
	if err != nil {
		log.Warn().Err(err).Str("backend", d.Name()).Str("language", language).Msg("transcription failed")
		return "", false
	}

	text = strings.TrimSpace(text)
	return text, text != ""
}

func (d *Degrading) Translate(ctx context.Context, text, source, target string) string {
	if source == target || strings.TrimSpace(text) == "" {
		return text
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	translated, err := d.backend.translator.Translate(ctx, text, source, target)
	if err != nil {
		log.Warn().Err(err).Str("backend", d.Name()).Str("source", source).Str("target", target).Msg("translation failed, passing text through")
		return text
	}
	if strings.TrimSpace(translated) == "" {
		return text
	}
	return translated
}

func (d *Degrading) Synthesize(ctx context.Context, text, language string) []byte {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	audio, err := d.backend.synthesizer.Synthesize(ctx, text, language)
	if err != nil {
		log.Warn().Err(err).Str("backend", d.Name()).Str("language", language).Msg("synthesis failed, using silence")
		return SilentWAV(DefaultSampleRate, time.Second)
	}
	if len(audio) == 0 {
		return SilentWAV(DefaultSampleRate, time.Second)
	}
	return audio
}
