package queuesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/trezcool/learnsmart/core"
)

// RabbitMQQueue is a JobQueue on a durable, lazy RabbitMQ queue.
// A failed job is acked and republished with its attempt count bumped until retries run out.
type RabbitMQQueue struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	queue      amqp.Queue
	pubMu      sync.Mutex
	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     core.Logger
}

var _ core.JobQueue = (*RabbitMQQueue)(nil)

func NewRabbitMQQueue(conf *core.Config, logger core.Logger) (*RabbitMQQueue, error) {
	conn, err := amqp.Dial(conf.Queue.RabbitMQURL)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to RabbitMQ")
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening channel")
	}

	q, err := channel.QueueDeclare(
		conf.Queue.RabbitMQQueue, // name
		true,                     // durable
		false,                    // delete when unused
		false,                    // exclusive
		false,                    // no-wait
		amqp.Table{"x-queue-mode": "lazy"},
	)
	if err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, errors.Wrap(err, "declaring queue")
	}

	workers := conf.Queue.Workers
	if workers <= 0 {
		workers = 1
	}
	return &RabbitMQQueue{
		conn:       conn,
		channel:    channel,
		queue:      q,
		workers:    workers,
		maxRetries: conf.Queue.MaxRetries,
		retryDelay: conf.Queue.RetryDelay,
		logger:     logger,
	}, nil
}

func (r *RabbitMQQueue) Enqueue(ctx context.Context, kind string, payload interface{}) error {
	job, err := newJob(kind, payload)
	if err != nil {
		return err
	}
	return r.publish(ctx, job)
}

func (r *RabbitMQQueue) publish(ctx context.Context, job core.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "encoding job")
	}

	// amqp channels are not safe for concurrent publishing
	r.pubMu.Lock()
	defer r.pubMu.Unlock()
	err = r.channel.PublishWithContext(
		ctx,
		"",           // exchange
		r.queue.Name, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			MessageId:    job.ID,
			Type:         job.Kind,
		},
	)
	return errors.Wrap(err, "publishing job")
}

// Consume runs the workers until ctx is done or the delivery channel closes.
func (r *RabbitMQQueue) Consume(ctx context.Context, handler core.JobHandler) error {
	if err := r.channel.Qos(r.workers, 0, false); err != nil {
		return errors.Wrap(err, "setting QoS")
	}
	msgs, err := r.channel.Consume(
		r.queue.Name, // queue
		"",           // consumer
		false,        // auto-ack
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,          // args
	)
	if err != nil {
		return errors.Wrap(err, "consuming queue")
	}

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.handleMessages(ctx, msgs, handler)
		}()
	}
	wg.Wait()
	return nil
}

func (r *RabbitMQQueue) handleMessages(ctx context.Context, msgs <-chan amqp.Delivery, handler core.JobHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			r.handle(ctx, msg, handler)
		}
	}
}

func (r *RabbitMQQueue) handle(ctx context.Context, msg amqp.Delivery, handler core.JobHandler) {
	var job core.Job
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		r.logger.Error(fmt.Sprintf("discarding undecodable message %s", msg.MessageId), err)
		_ = msg.Reject(false)
		return
	}

	err := handler(ctx, job)
	if err == nil {
		_ = msg.Ack(false)
		return
	}
	if job.Attempt >= r.maxRetries {
		r.logger.Error(fmt.Sprintf("job %s (%s) dropped after %d attempts", job.ID, job.Kind, job.Attempt+1), err)
		_ = msg.Ack(false)
		return
	}

	r.logger.Warn(fmt.Sprintf("job %s (%s) attempt %d failed", job.ID, job.Kind, job.Attempt+1), err)
	select {
	case <-time.After(r.retryDelay):
	case <-ctx.Done():
		_ = msg.Nack(false, true)
		return
	}
	job.Attempt++
	if err := r.publish(ctx, job); err != nil {
		r.logger.Error(fmt.Sprintf("requeueing job %s", job.ID), err)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

func (r *RabbitMQQueue) Close() error {
	var errs []error
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing RabbitMQ: %v", errs)
	}
	return nil
}
