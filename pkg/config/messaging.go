package config

import (
	"fmt"
	"strings"
	"time"
)

// NATSConfig configures the error-report publisher. An empty URL disables it.
type NATSConfig struct {
	Url     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
	// PublishTimeout bounds a single report publish.
	PublishTimeout time.Duration `koanf:"publishtimeout"`
}

func (c *NATSConfig) Enabled() bool {
	return c.Url != ""
}

// String returns a string representation of the NATS configuration.
func (c *NATSConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- NATS ---\n")
	if !c.Enabled() {
		b.WriteString("  <disabled>\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("  url: %s\n", MaskURL(c.Url)))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	b.WriteString(fmt.Sprintf("  publishtimeout: %s\n", c.PublishTimeout))
	return b.String()
}

func (c *NATSConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("nats dial timeout is not configured")
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("nats publish timeout is not configured")
	}
	return nil
}

// SubscriberConfig configures a durable JetStream pull consumer.
type SubscriberConfig struct {
	Stream   string        `koanf:"stream"`
	Subject  string        `koanf:"subject"`
	Consumer string        `koanf:"consumer"`
	Batch    int           `koanf:"batch"`
	Timeout  time.Duration `koanf:"timeout"`
	Interval time.Duration `koanf:"interval"`
	Workers  int           `koanf:"workers"`
}

// String returns a string representation of the NATS Subscriber configuration.
func (c *SubscriberConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- NATS Subscriber ---\n")
	b.WriteString(fmt.Sprintf("  stream: %s\n", c.Stream))
	b.WriteString(fmt.Sprintf("  subject: %s\n", c.Subject))
	b.WriteString(fmt.Sprintf("  consumer: %s\n", c.Consumer))
	b.WriteString(fmt.Sprintf("  batch: %d\n", c.Batch))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	b.WriteString(fmt.Sprintf("  interval: %s\n", c.Interval))
	b.WriteString(fmt.Sprintf("  workers: %d\n", c.Workers))
	return b.String()
}

func (c *SubscriberConfig) Validate() error {
	if c.Stream == "" {
		return fmt.Errorf("subscriber stream is not configured")
	}
	if c.Subject == "" {
		return fmt.Errorf("subscriber subject is not configured")
	}
	if c.Consumer == "" {
		return fmt.Errorf("subscriber consumer is not configured")
	}
	if c.Batch <= 0 {
		return fmt.Errorf("subscriber batch must be greater than zero")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("subscriber timeout must be greater than zero")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("subscriber interval must be greater than zero")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("subscriber workers must be greater than zero")
	}
	return nil
}
