package config

import (
	"fmt"
	"strings"
	"time"
)

// IdP configures bearer-token verification. An empty JWKS URL disables it and
// sessions are identified by header only.
type IdP struct {
	JwksURL     string        `koanf:"jwksurl"`
	Issuer      string        `koanf:"issuer"`
	ClientID    string        `koanf:"clientid"`
	MinInterval time.Duration `koanf:"mininterval"`
}

func (c *IdP) Enabled() bool {
	return c.JwksURL != ""
}

func (c *IdP) String() string {
	var b strings.Builder
	b.WriteString("\n--- IdP ---\n")
	if !c.Enabled() {
		b.WriteString("  <disabled>\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("  jwksurl: %s\n", c.JwksURL))
	b.WriteString(fmt.Sprintf("  issuer: %s\n", c.Issuer))
	b.WriteString(fmt.Sprintf("  clientid: %s\n", c.ClientID))
	b.WriteString(fmt.Sprintf("  mininterval: %s\n", c.MinInterval))
	return b.String()
}

func (c *IdP) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Issuer == "" {
		return fmt.Errorf("IdP issuer cannot be empty")
	}
	if c.ClientID == "" {
		return fmt.Errorf("IdP client ID cannot be empty")
	}
	if c.MinInterval <= 0 {
		return fmt.Errorf("IdP minimum interval must be greater than zero")
	}
	return nil
}
