package capability

import "github.com/samber/lo"

// Language 描述一個支援的語言以及各雲端服務使用的代碼
type Language struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	NativeName  string `json:"native_name"`
	LocaleCode  string `json:"locale"`
	Voice       string `json:"-"`
	NeuralVoice string `json:"-"`
}

var supportedLanguages = []Language{
	{Code: "fr", Name: "French", NativeName: "Français", LocaleCode: "fr-FR", Voice: "fr-FR-Standard-A", NeuralVoice: "fr-FR-Neural2-A"},
	{Code: "en", Name: "English", NativeName: "English", LocaleCode: "en-US", Voice: "en-US-Standard-J", NeuralVoice: "en-US-Neural2-J"},
	{Code: "es", Name: "Spanish", NativeName: "Español", LocaleCode: "es-ES", Voice: "es-ES-Standard-A", NeuralVoice: "es-ES-Neural2-A"},
	{Code: "de", Name: "German", NativeName: "Deutsch", LocaleCode: "de-DE", Voice: "de-DE-Standard-F", NeuralVoice: "de-DE-Neural2-F"},
	{Code: "it", Name: "Italian", NativeName: "Italiano", LocaleCode: "it-IT", Voice: "it-IT-Standard-A", NeuralVoice: "it-IT-Neural2-A"},
	{Code: "pt", Name: "Portuguese", NativeName: "Português", LocaleCode: "pt-PT", Voice: "pt-PT-Standard-A", NeuralVoice: "pt-PT-Neural2-A"},
	{Code: "ru", Name: "Russian", NativeName: "Русский", LocaleCode: "ru-RU", Voice: "ru-RU-Standard-A", NeuralVoice: "ru-RU-Wavenet-A"},
	{Code: "ja", Name: "Japanese", NativeName: "日本語", LocaleCode: "ja-JP", Voice: "ja-JP-Standard-B", NeuralVoice: "ja-JP-Neural2-B"},
	{Code: "ko", Name: "Korean", NativeName: "한국어", LocaleCode: "ko-KR", Voice: "ko-KR-Standard-A", NeuralVoice: "ko-KR-Neural2-A"},
	{Code: "zh", Name: "Chinese", NativeName: "中文", LocaleCode: "zh-CN", Voice: "cmn-CN-Standard-A", NeuralVoice: "zh-CN-Neural2-A"},
}

var languagesByCode = lo.KeyBy(supportedLanguages, func(l Language) string { return l.Code })

// Languages 回傳所有支援語言的副本
func Languages() []Language {
	return append([]Language(nil), supportedLanguages...)
}

func LookupLanguage(code string) (Language, bool) {
	l, ok := languagesByCode[code]
	return l, ok
}

func IsSupported(code string) bool {
	_, ok := languagesByCode[code]
	return ok
}

// locale 找不到時退回 fallback 語言的地區代碼
func locale(code, fallback string) string {
	if l, ok := languagesByCode[code]; ok {
		return l.LocaleCode
	}
	return languagesByCode[fallback].LocaleCode
}

func displayName(code string) string {
	if l, ok := languagesByCode[code]; ok {
		return l.Name
	}
	return code
}
