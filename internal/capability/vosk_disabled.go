//go:build !vosk

package capability

import "fmt"

// NewLocalBackend 在未使用 vosk build tag 編譯時不可用
func NewLocalBackend(modelPath string, sampleRate int) (*Backend, error) {
	return nil, fmt.Errorf("%w: built without vosk support (use -tags vosk)", ErrUnavailable)
}
