package transcription

import (
	"context"
	"math/rand"
	"sync"

	"VoiceFlow/pkg/errors"
)

// Producer turns an audio URL into transcription text.
type Producer interface {
	Produce(ctx context.Context, audioURL, language string) (string, error)
}

// 各语言的固定转写文本
var cannedTexts = map[string][]string{
	"en-US": {
		"Thank you for calling. How may I help you today?",
		"The quarterly results show a significant improvement over last year.",
		"Please review the attached document and provide your feedback.",
	},
	"es-ES": {
		"Gracias por llamar. ¿En qué puedo ayudarle hoy?",
		"Los resultados trimestrales muestran una mejora significativa.",
	},
	"fr-FR": {
		"Merci de votre appel. Comment puis-je vous aider aujourd'hui?",
		"Les résultats trimestriels montrent une amélioration significative.",
	},
	"de-DE": {
		"Vielen Dank für Ihren Anruf. Wie kann ich Ihnen heute helfen?",
	},
}

// MockProducer returns canned, language-keyed transcription text. With a
// non-zero FailureRate it fails randomly, for exercising retry paths.
type MockProducer struct {
	FailureRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewMockProducer(failureRate float64) *MockProducer {
	return &MockProducer{
		FailureRate: failureRate,
		rng:         rand.New(rand.NewSource(rand.Int63())),
	}
}

func (p *MockProducer) Produce(ctx context.Context, audioURL, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	roll := p.rng.Float64()
	p.mu.Unlock()
	if p.FailureRate > 0 && roll < p.FailureRate {
		return "", errors.WithCode(errors.CodeProducer, "mock transcription failed")
	}

	texts, ok := cannedTexts[language]
	if !ok || len(texts) == 0 {
		texts = cannedTexts["en-US"]
	}
	p.mu.Lock()
	idx := p.rng.Intn(len(texts))
	p.mu.Unlock()
	return texts[idx], nil
}
