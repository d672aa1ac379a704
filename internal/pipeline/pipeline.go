// Package pipeline glues the mailbox poller to the field extractor and
// the replay engine: one mail message in, one replay batch out.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kaigo-tools/attendrelay/internal/extract"
	"github.com/kaigo-tools/attendrelay/internal/notify"
	"github.com/kaigo-tools/attendrelay/internal/poller"
	"github.com/kaigo-tools/attendrelay/internal/replay"
)

// Processor is the poller's processing callback.
type Processor struct {
	extractor *extract.Extractor
	engine    *replay.Engine
	notifier  notify.Service
	logger    *slog.Logger
}

// New wires the pipeline stages together.
func New(extractor *extract.Extractor, engine *replay.Engine, notifier notify.Service, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{extractor: extractor, engine: engine, notifier: notifier, logger: logger}
}

// HandleMail extracts records from every image attachment of one message
// and replays the whole batch in one remote session. A failed extraction
// drops that image only; the batch is replayed with whatever was
// extracted.
func (p *Processor) HandleMail(ctx context.Context, mail poller.Mail) error {
	batchID := uuid.NewString()
	log := p.logger.With("batch_id", batchID, "uid", mail.UID, "subject", mail.Subject)

	var records []extract.AttendanceRecord
	for _, att := range mail.Attachments {
		recs, err := p.extractor.Records(ctx, att.Data)
		if err != nil {
			log.Error("Extraction failed, dropping image", "filename", att.Filename, "error", err)
			continue
		}
		log.Info("Image extracted", "filename", att.Filename, "records", len(recs))
		records = append(records, recs...)
	}

	if len(records) == 0 {
		log.Info("No records extracted from message")
		return nil
	}

	result, err := p.engine.Run(ctx, batchID, records)
	report := buildReport(batchID, mail, result)

	if err != nil {
		if nerr := p.notifier.BatchFailed(report, err); nerr != nil {
			log.Warn("Failed to send failure notification", "error", nerr)
		}
		return fmt.Errorf("replay batch: %w", err)
	}

	log.Info("Batch replayed",
		"records", result.Total,
		"succeeded", result.Succeeded,
		"skipped", result.Skipped,
		"failed", result.Failed)

	if nerr := p.notifier.BatchProcessed(report); nerr != nil {
		log.Warn("Failed to send notification", "error", nerr)
	}

	return nil
}

func buildReport(batchID string, mail poller.Mail, result replay.BatchResult) notify.Report {
	report := notify.Report{
		BatchID:     batchID,
		MailSubject: mail.Subject,
		MailFrom:    mail.From,
		Records:     result.Total,
		Succeeded:   result.Succeeded,
		Skipped:     result.Skipped,
		Failed:      result.Failed,
	}
	for _, f := range result.Failures {
		report.Failures = append(report.Failures,
			fmt.Sprintf("record %d (%s %s): %v", f.Index, f.Record.PersonName,
				f.Record.ServiceDate.Format("2006-01-02"), f.Err))
	}
	return report
}
