package kafka

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/infra/config"
)

// Producer wraps a Sarama AsyncProducer and drains its error channel into the log.
type Producer struct {
	producer  sarama.AsyncProducer
	logger    *zap.Logger
	cfg       config.KafkaSettings
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewProducer builds an async producer for the configured brokers.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_5_0_0
	saramaConfig.ClientID = "backoffice-iam"

	// Audit events must not be lost silently, so wait for all in-sync replicas.
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	saramaConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	saramaConfig.Producer.Flush.Messages = 100
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true

	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := newProducer(producer, cfg, logger)

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)

	return p, nil
}

func newProducer(producer sarama.AsyncProducer, cfg config.KafkaSettings, logger *zap.Logger) *Producer {
	p := &Producer{
		producer: producer,
		logger:   logger,
		cfg:      cfg,
		done:     make(chan struct{}),
	}
	p.wg.Add(1)
	go p.handleErrors()
	return p
}

func (p *Producer) handleErrors() {
	defer p.wg.Done()
	for {
		select {
		case perr, ok := <-p.producer.Errors():
			if !ok {
				return
			}
			if perr != nil {
				p.logger.Error("kafka delivery failed",
					zap.Error(perr.Err),
					zap.String("topic", perr.Msg.Topic),
				)
			}
		case <-p.done:
			return
		}
	}
}

// Input exposes the producer's send channel.
func (p *Producer) Input() chan<- *sarama.ProducerMessage {
	return p.producer.Input()
}

// Close flushes pending messages and stops the error drain.
func (p *Producer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.logger.Info("closing kafka producer")
		close(p.done)
		p.wg.Wait()
		if cerr := p.producer.Close(); cerr != nil {
			err = fmt.Errorf("close kafka producer: %w", cerr)
		}
	})
	return err
}

// TopicName prefixes eventType with the configured topic prefix once.
func (p *Producer) TopicName(eventType string) string {
	if p.cfg.TopicPrefix == "" {
		return eventType
	}

	prefix := p.cfg.TopicPrefix + "."
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}
	return prefix + eventType
}
