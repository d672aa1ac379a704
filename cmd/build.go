package cmd

import (
	"log/slog"

	"github.com/kaigo-tools/attendrelay/internal/config"
	"github.com/kaigo-tools/attendrelay/internal/extract"
	"github.com/kaigo-tools/attendrelay/internal/notify"
	"github.com/kaigo-tools/attendrelay/internal/pipeline"
	"github.com/kaigo-tools/attendrelay/internal/poller"
	"github.com/kaigo-tools/attendrelay/internal/replay"
	"github.com/kaigo-tools/attendrelay/internal/retry"
)

const serviceName = "attendrelay"

func buildExtractor(cfg config.Config) *extract.Extractor {
	logger := slog.Default()
	ocr := extract.NewVisionClient(cfg.Vision.Endpoint, cfg.Vision.APIKey, logger)
	llm := extract.NewOpenAIClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger)
	return extract.New(ocr, llm, logger)
}

func buildProcessor(cfg config.Config) *pipeline.Processor {
	logger := slog.Default()

	factory := replay.NewRodFactory(replay.SessionConfig{
		LoginURL:      cfg.Kaipoke.LoginURL,
		CorporateCode: cfg.Kaipoke.CorporateCode,
		Username:      cfg.Kaipoke.Username,
		Password:      cfg.Kaipoke.Password,
		Headless:      cfg.Kaipoke.Headless,
		Logger:        logger,
	})

	engine := replay.NewEngine(factory, replay.Routes(cfg.Facilities), cfg.Kaipoke.EraOffset, logger)
	notifier := notify.NewService(cfg.SMTP, cfg.Recipients, logger)

	return pipeline.New(buildExtractor(cfg), engine, notifier, logger)
}

func buildPoller(cfg config.Config) *poller.Poller {
	return poller.New(
		poller.Dial(cfg.IMAP),
		poller.NewCursorStore(cfg.Poll.CursorFile),
		retry.Default,
		slog.Default(),
	)
}
