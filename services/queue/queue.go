package queuesvc

import "github.com/trezcool/learnsmart/core"

// NewQueue returns the JobQueue selected by conf.Queue.Engine.
func NewQueue(conf *core.Config, logger core.Logger) (core.JobQueue, error) {
	if conf.Queue.Engine == "rabbitmq" {
		return NewRabbitMQQueue(conf, logger)
	}
	return NewLocalQueue(conf, logger), nil
}
