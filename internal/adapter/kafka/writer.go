package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/fire-vulnerability-service/internal/config"
	"github.com/couchcryptid/fire-vulnerability-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// DistrictScoreMessage is the JSON value published for each district.
type DistrictScoreMessage struct {
	RunID          string            `json:"run_id"`
	District       domain.DistrictID `json:"district"`
	FinalRank      int               `json:"final_rank"`
	SumOfRanks     int               `json:"sum_of_ranks"`
	CriterionRanks map[string]int    `json:"criterion_ranks"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces district score messages to a Kafka topic.
// It implements pipeline.ReportLoader.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadReport publishes one message per district, keyed by district id, in a
// single WriteMessages call.
func (w *Writer) LoadReport(ctx context.Context, report *domain.Report) error {
	if len(report.Districts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(report.Districts))
	for i, ds := range report.Districts {
		msg, err := serializeToMessage(report, ds)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write district scores: %w", err)
	}
	w.logger.Debug("published district scores", "run_id", report.RunID, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals one district's score into a Kafka message.
func serializeToMessage(report *domain.Report, ds domain.DistrictScore) (kafkago.Message, error) {
	data, err := json.Marshal(DistrictScoreMessage{
		RunID:          report.RunID,
		District:       ds.District,
		FinalRank:      ds.FinalRank,
		SumOfRanks:     ds.SumOfRanks,
		CriterionRanks: ds.CriterionRanks,
		GeneratedAt:    report.GeneratedAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize district score %s: %w", ds.District, err)
	}
	return kafkago.Message{
		Key:   []byte(ds.District),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(report.RunID)},
			{Key: "generated_at", Value: []byte(report.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
