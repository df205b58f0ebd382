package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"idea2blog/extract"
	"idea2blog/generator"
	"idea2blog/session"
)

// contentFields must come back non-empty; the other fields may be empty.
var contentFields = []string{extract.FieldNarrative, extract.FieldStyledDraft}

// extractStage extracts schema's fields from reply and rejects an empty body
// in any of contentFields as malformed, so it takes the repair path.
func extractStage(reply string, schema extract.Schema) (extract.FieldMap, error) {
	fields, err := extract.Extract(reply, schema)
	if err != nil {
		return nil, err
	}
	for _, name := range contentFields {
		f, ok := schema.Field(name)
		if ok && fields.Get(name) == "" {
			return nil, &extract.FieldError{Field: f.Name, Tag: f.Tag, Kind: extract.MalformedField, Reason: "empty content"}
		}
	}
	return fields, nil
}

type stageResult struct {
	fields extract.FieldMap
	record session.HistoryEntry
}

// runStage invokes the model for one stage and extracts the schema's fields.
// A reply that fails extraction gets exactly one repair attempt.
func (o *Orchestrator) runStage(ctx context.Context, sessionID string, schema extract.Schema, prompt generator.Prompt) (stageResult, error) {
	fail := func(err error) (stageResult, error) {
		return stageResult{}, &StageError{Stage: schema.Name, SessionID: sessionID, Err: err}
	}
	log := o.logger.With(zap.String("session_id", sessionID), zap.String("stage", schema.Name))

	reply, err := o.model.Invoke(ctx, schema, prompt)
	if err != nil {
		return fail(err)
	}
	fields, err := extractStage(reply, schema)
	if err == nil {
		return stageResult{
			fields: fields,
			record: session.HistoryEntry{Stage: schema.Name, Prompt: prompt.Text(), Reply: reply, Attempts: 1},
		}, nil
	}
	var fe *extract.FieldError
	if !errors.As(err, &fe) {
		return fail(err)
	}
	log.Warn("reply failed extraction, requesting repair",
		zap.String("field", fe.Field),
		zap.String("kind", fe.Kind.String()),
		zap.Int("reply_len", len(reply)))

	repair := repairPrompt(prompt, schema, reply, err)
	reply, err = o.model.Invoke(ctx, schema, repair)
	if err != nil {
		return fail(err)
	}
	fields, err = extractStage(reply, schema)
	if err != nil {
		log.Error("repaired reply failed extraction", zap.Error(err))
		return fail(fmt.Errorf("%w: %w", ErrExtractionFailed, err))
	}
	return stageResult{
		fields: fields,
		record: session.HistoryEntry{
			Stage:    schema.Name,
			Prompt:   repair.Text(),
			Reply:    reply,
			Attempts: 2,
			Repaired: true,
		},
	}, nil
}

// historyContext turns the last n history entries into prior turns.
func historyContext(history []session.HistoryEntry, n int) []generator.Message {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	msgs := make([]generator.Message, 0, 2*len(history))
	for _, h := range history {
		msgs = append(msgs,
			generator.Message{Role: generator.RoleUser, Content: h.Prompt},
			generator.Message{Role: generator.RoleAssistant, Content: h.Reply},
		)
	}
	return msgs
}
