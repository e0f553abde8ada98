// Package notify delivers customer-facing notifications. The AMQP
// notifier publishes to a topic exchange for the mailer workers to pick
// up; the memory notifier backs tests and broker-less deployments.
package notify
