package llm

import (
	"github.com/lambdaforge/lambdaforge/logger"
	tellm "github.com/santiagomed/tellm/sdk"
)

// usageSink records one completion's prompt, reply and token counts.
type usageSink interface {
	Log(batchID, prompt, response, model string, inputTokens, outputTokens int) error
}

// tellmSink adapts the tellm client, whose Log only accepts the batch,
// prompt and response, to usageSink.
type tellmSink struct {
	client *tellm.Client
}

func (s tellmSink) Log(batchID, prompt, response, _ string, _, _ int) error {
	return s.client.Log(batchID, prompt, response)
}

// newUsageSink returns nil when no tellm endpoint is configured.
func newUsageSink(url string) usageSink {
	if url == "" {
		return nil
	}
	return tellmSink{client: tellm.NewClient(url)}
}

func recordUsage(sink usageSink, cfg *LlmConfig, l logger.Logger, prompt, res string, in, out int) {
	if sink == nil {
		return
	}
	if err := sink.Log(cfg.BatchID, prompt, res, cfg.ModelName, in, out); err != nil {
		l.WithField("warning", err).Warn("failed to log to tellm")
	}
}
