package broker

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// KafkaConfig holds the Kafka client configuration.
type KafkaConfig struct {
	// Seeds is the list of seed broker addresses.
	Seeds []string
	// Group is the consumer group used for subscriptions.
	Group string
	// ClientID identifies this service to the cluster.
	ClientID string
	// Topics are the topics this client consumes. Kafka group subscriptions
	// are fixed at client construction, so every topic passed to Subscribe
	// later must be listed here.
	Topics []string
}

var _ Broker = (*Kafka)(nil)

// Kafka is a Broker backed by a Kafka cluster via franz-go. A single client
// serves both producing and group consumption.
type Kafka struct {
	client *kgo.Client
}

// NewKafka creates the Kafka client and ensures the configured topics exist.
func NewKafka(ctx context.Context, cfg KafkaConfig) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Seeds...),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.ProduceRequestTimeout(10*time.Second),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create kafka client")
	}

	k := &Kafka{client: client}
	if err := k.ensureTopics(ctx, cfg.Topics); err != nil {
		client.Close()
		return nil, err
	}
	return k, nil
}

// ensureTopics creates any of the given topics that do not exist yet.
func (k *Kafka) ensureTopics(ctx context.Context, topics []string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	admin := kadm.NewClient(k.client)
	existing, err := admin.ListTopics(ctx)
	if err != nil {
		return errors.Wrap(err, "list topics")
	}

	var missing []string
	for _, t := range topics {
		if !existing.Has(t) {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if _, err := admin.CreateTopics(ctx, 1, 1, nil, missing...); err != nil {
		return errors.Wrap(err, "create topics")
	}
	return nil
}

// Publish produces a single record synchronously and waits for acknowledgement
// from all in-sync replicas.
func (k *Kafka) Publish(ctx context.Context, topic string, key, value []byte) error {
	record := &kgo.Record{
		Topic: topic,
		Key:   key,
		Value: value,
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return errors.Wrapf(err, "produce to %q", topic)
	}
	return nil
}

// Subscribe polls the consumer group and dispatches records for the given
// topic to h. It returns nil when ctx is cancelled.
func (k *Kafka) Subscribe(ctx context.Context, topic string, h Handler) error {
	lg := zctx.From(ctx)
	for {
		fetches := k.client.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			return nil
		}
		fetches.EachError(func(t string, p int32, err error) {
			lg.Error("fetch error",
				zap.String("topic", t),
				zap.Int32("partition", p),
				zap.Error(err),
			)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			if record.Topic != topic {
				return
			}
			h(ctx, record.Value)
		})
	}
}

// Close shuts down the Kafka client, leaving the consumer group.
func (k *Kafka) Close() {
	k.client.Close()
}
