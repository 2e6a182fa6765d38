package transcription

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"VoiceFlow/pkg/errors"
	"VoiceFlow/pkg/retry"

	"go.uber.org/zap"
)

// RemoteSpeechProducer simulates a flaky remote speech-to-text API behind an
// exponential backoff retry policy. Each attempt fails independently with
// FailureRate probability; once the policy is exhausted the caller is
// expected to fall back to a mock transcription.
type RemoteSpeechProducer struct {
	Policy      retry.Policy
	FailureRate float64
	CallLatency time.Duration

	log *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRemoteSpeechProducer(policy retry.Policy, log *zap.Logger) *RemoteSpeechProducer {
	if log == nil {
		log = zap.NewNop()
	}
	return &RemoteSpeechProducer{
		Policy:      policy,
		FailureRate: 0.5,
		CallLatency: 100 * time.Millisecond,
		log:         log,
		rng:         rand.New(rand.NewSource(rand.Int63())),
	}
}

func (p *RemoteSpeechProducer) Produce(ctx context.Context, audioURL, language string) (string, error) {
	var text string
	attempt := 0
	err := retry.Do(ctx, p.Policy, func(ctx context.Context) error {
		attempt++
		result, err := p.call(ctx, audioURL, language)
		if err != nil {
			p.log.Warn("remote speech call failed",
				zap.Int("attempt", attempt),
				zap.String("audio_url", audioURL),
				zap.Error(err))
			return err
		}
		text = result
		return nil
	})
	if err != nil {
		return "", errors.WrapCode(errors.CodeProducer, err, "remote speech API unavailable")
	}
	return text, nil
}

// call 模拟一次远端调用
func (p *RemoteSpeechProducer) call(ctx context.Context, audioURL, language string) (string, error) {
	if p.CallLatency > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.CallLatency):
		}
	}

	p.mu.Lock()
	roll := p.rng.Float64()
	p.mu.Unlock()
	if roll < p.FailureRate {
		return "", fmt.Errorf("remote speech API returned 503")
	}

	return fmt.Sprintf("[%s] Remote transcription of %s completed successfully.", language, audioURL), nil
}
