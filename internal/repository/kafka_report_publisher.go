package repository

import (
	"context"

	"JumpVol/internal/domain/models"
	domrepo "JumpVol/internal/domain/repository"
	pkgkafka "JumpVol/pkg/kafka"
)

// KafkaPublisher sends fit reports as JSON, keyed by symbol so one symbol's fits
// land on one partition.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishReport(ctx context.Context, report *models.FitReport) error {
	return p.producer.Publish(ctx, p.topic, []byte(report.Symbol), report)
}

func (p *KafkaPublisher) Close() error { return p.producer.Close() }

var _ domrepo.ReportPublisher = (*KafkaPublisher)(nil)
