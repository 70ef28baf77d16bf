package capability

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"linguameet/pkg/config"
)

// Constructor 嘗試建立一個後端，無法使用時回傳錯誤
type Constructor func() (*Backend, error)

// Constructors 依名稱列出所有可用的後端建構函式
func Constructors(cfg config.CapabilityConfig, httpClient *http.Client) map[string]Constructor {
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return map[string]Constructor{
		"premium": func() (*Backend, error) {
			return NewPremiumBackend(cfg.GoogleAPIKey, cfg.GeminiAPIKey, cfg.GeminiModel, sampleRate, httpClient)
		},
		"cloud": func() (*Backend, error) {
			return NewCloudBackend(cfg.GoogleAPIKey, sampleRate, httpClient)
		},
		"local": func() (*Backend, error) {
			return NewLocalBackend(cfg.VoskModelPath, sampleRate)
		},
		"stub": func() (*Backend, error) {
			return NewStubBackend(), nil
		},
	}
}

// Chain 回傳嘗試順序；未明確設定時依旗標推導
func Chain(cfg config.CapabilityConfig) []string {
	if len(cfg.Chain) > 0 {
		return lo.Uniq(cfg.Chain)
	}
	switch {
	case cfg.UseFreePremium:
		return []string{"premium", "local", "stub"}
	case cfg.UseGoogleCloud:
		return []string{"cloud", "local", "stub"}
	default:
		return []string{"local", "stub"}
	}
}

// Select 依序嘗試建構函式，第一個成功的後端即為整個程序使用的後端
func Select(chain []string, constructors map[string]Constructor) (*Backend, error) {
	var errs []error
	for _, name := range chain {
		construct, ok := constructors[name]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown capability backend %q", name))
			continue
		}
		backend, err := construct()
		if err != nil {
			log.Warn().Err(err).Str("backend", name).Msg("capability backend unavailable, trying next")
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		log.Info().Str("backend", backend.Name()).Strs("chain", chain).Msg("capability backend selected")
		return backend, nil
	}
	return nil, fmt.Errorf("no capability backend could be initialized: %w", errors.Join(errs...))
}

// New 在啟動時選出後端並包裝成不會失敗的 Capability
func New(cfg config.CapabilityConfig, httpClient *http.Client) (*Degrading, error) {
	backend, err := Select(Chain(cfg), Constructors(cfg, httpClient))
	if err != nil {
		return nil, err
	}
	return NewDegrading(backend, cfg.RequestTimeout), nil
}
