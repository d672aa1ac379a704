// Package extract turns a photographed attendance form into structured
// attendance records: OCR via Google Vision, then field extraction via a
// language model.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

const systemInstructions = "You are a helpful assistant that extracts structured data from Japanese text. " +
	"Always respond with valid JSON only. Extract ALL records found in the text."

const promptTemplate = `Extract ALL instances of the following information from this Japanese text and return as JSON:

Text: %s

Please extract ALL occurrences of:
1. Name (お名前) - the person's name (there can be 2 names in the text but お名前 is the first one)
2. Date (実施日) - the implementation date (it can't be earlier than last year; if it is, fix it to the current year)
3. Time (時間):
    - ":00 20" style fragments mean 20:00; it's a time format
    - minutes are only :00 or :30; if a value doesn't match, update it to this format
    - "(" or ")" cannot appear before a time; if one does, it is a "1" belonging to the time,
      so "(7:30" means "17:30", not 07:30
    - times come in pairs: first is the start time, second is the end time, and so on;
      the end time may be earlier than the start time
4. Facility Name (事業所名) - the facility/institution name
5. Disability Support Hours (障害者総合支援/身体) - the single number value, 0 if empty or not found
6. Severe Comprehensive Support (重度包括) - the single number value, 0 if empty or not found
7. Severe Visitation (重度訪問) - the single number value, 0 if empty or not found
8. Housework (家事) - the single number value, 0 if empty or not found

Return the result as a JSON array where each object represents one complete record with keys:
"name", "date", "time", "facility_name", "disability_support_hours", "severe_comprehensive_support",
"severe_visitation", "housework".
If any information is not found in a record, use null for that field.
Time must be formatted as "HH:MM~HH:MM" with the start time first.
If there are multiple records, extract all of them. If there is only one record, still return an array.`

// Extractor produces attendance records from one image.
type Extractor struct {
	ocr    TextDetector
	llm    Completer
	logger *slog.Logger
}

// New creates an Extractor from its two external collaborators.
func New(ocr TextDetector, llm Completer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{ocr: ocr, llm: llm, logger: logger}
}

// Records converts one image into zero or more attendance records. An
// image with no detectable text yields an empty slice and no error. A
// malformed model response is logged and yields an empty slice, since one
// bad extraction must not abort the mailbox batch.
func (e *Extractor) Records(ctx context.Context, image []byte) ([]AttendanceRecord, error) {
	text, err := e.ocr.DetectText(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		e.logger.Info("No text detected in image")
		return nil, nil
	}

	raw, err := e.llm.Complete(ctx, systemInstructions, fmt.Sprintf(promptTemplate, text))
	if err != nil {
		return nil, fmt.Errorf("extraction model: %w", err)
	}

	return e.parseResponse(raw), nil
}

// parseResponse unwraps markdown fencing, normalizes a single top-level
// object into a one-element array, and decodes the records. Parse failure
// returns an empty list and logs the raw response.
func (e *Extractor) parseResponse(raw string) []AttendanceRecord {
	cleaned := stripFences(raw)

	if strings.HasPrefix(cleaned, "{") {
		cleaned = "[" + cleaned + "]"
	}

	var raws []rawRecord
	if err := json.Unmarshal([]byte(cleaned), &raws); err != nil {
		e.logger.Error("Failed to parse extraction response", "error", err, "response", raw)
		return nil
	}

	records := make([]AttendanceRecord, 0, len(raws))
	for _, r := range raws {
		records = append(records, r.toRecord())
	}
	return records
}

// stripFences removes a surrounding ```json / ``` markdown fence if
// present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
