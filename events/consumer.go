package events

import (
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	minBackoff     = time.Second
	maxBackoff     = 30 * time.Second
	reconnectDelay = 2 * time.Second
)

type Config struct {
	// AmqpUrl of the broker, the consumer is disabled when empty
	AmqpUrl          string `split_words:"true"`
	DeletedUserQueue string `split_words:"true" default:"user.deleted"`
	Prefetch         int    `default:"10"`
}

// EventConsumer runs until stopped. Start blocks.
type EventConsumer interface {
	Start() error
	Stop() error
}

// AmqpConsumer consumes the user.deleted queue, reconnecting with an exponential
// back-off whenever the broker goes away.
type AmqpConsumer struct {
	config  Config
	handler *Handler
	logger  *zap.SugaredLogger

	mu       sync.Mutex
	conn     *amqp.Connection
	done     chan struct{}
	stopOnce sync.Once
}

func NewAmqpConsumer(config Config, handler *Handler, logger *zap.SugaredLogger) *AmqpConsumer {
	return &AmqpConsumer{
		config:  config,
		handler: handler,
		logger:  logger.With(zap.String("queue", config.DeletedUserQueue)),
		done:    make(chan struct{}),
	}
}

func (c *AmqpConsumer) Start() error {
	backoff := minBackoff
	for {
		if c.stopped() {
			return nil
		}
		conn, err := amqp.Dial(c.config.AmqpUrl)
		if err != nil {
			c.logger.With(zap.Error(err), zap.Duration("retryIn", backoff)).Warn("dialing broker")
			if !c.wait(backoff) {
				return nil
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		err = c.consume(conn)
		_ = conn.Close()
		if c.stopped() {
			return nil
		}
		c.logger.With(zap.Error(err)).Warn("consume loop ended, reconnecting")
		if !c.wait(reconnectDelay) {
			return nil
		}
	}
}

func (c *AmqpConsumer) Stop() error {
	c.stopOnce.Do(func() { close(c.done) })
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn.Close()
	}
	return nil
}

func (c *AmqpConsumer) consume(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "opening channel")
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.config.Prefetch, 0, false); err != nil {
		c.logger.With(zap.Error(err)).Warn("setting QoS")
	}
	if _, err := ch.QueueDeclare(c.config.DeletedUserQueue, true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "declaring queue")
	}
	msgs, err := ch.Consume(c.config.DeletedUserQueue, "dialiv", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "consuming queue")
	}

	c.logger.Info("consuming")
	for d := range msgs {
		c.deliver(d)
	}
	return errors.New("deliveries channel closed")
}

// deliver acks a handled message. Invalid messages are dropped, other failures are
// requeued once.
func (c *AmqpConsumer) deliver(d amqp.Delivery) {
	err := c.handler.HandleMessage(d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrInvalidEvent):
		c.logger.With(zap.Error(err)).Warn("dropping message")
		_ = d.Nack(false, false)
	default:
		c.logger.With(zap.Error(err), zap.Bool("redelivered", d.Redelivered)).Error("handling message")
		_ = d.Nack(false, !d.Redelivered)
	}
}

func (c *AmqpConsumer) stopped() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// wait sleeps for d, it returns false when stopped meanwhile
func (c *AmqpConsumer) wait(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.done:
		return false
	case <-timer.C:
		return true
	}
}

type disabledConsumer struct{}

func (disabledConsumer) Start() error { return nil }
func (disabledConsumer) Stop() error  { return nil }

func configProvider() (Config, error) {
	var config Config
	if err := envconfig.Process("dialiv", &config); err != nil {
		return Config{}, err
	}
	return config, nil
}

func consumerProvider(config Config, handler *Handler, logger *zap.SugaredLogger) EventConsumer {
	if config.AmqpUrl == "" {
		logger.Info("DIALIV_AMQP_URL is empty, account deletion events are not consumed")
		return disabledConsumer{}
	}
	return NewAmqpConsumer(config, handler, logger)
}

// Module provides the EventConsumer of account deletion events
var Module = fx.Options(fx.Provide(configProvider, NewHandler, consumerProvider))
