package domain

import (
	"errors"
	"time"
)

// Policy is a stored Rego module that replaces the built-in access policy while enabled.
// Rules must declare package socportal.access and define allow.
type Policy struct {
	ID        string
	Name      string
	Rules     string
	Enabled   bool
	CreatedAt time.Time
}

// Validate checks the fields required for persistence.
func (p *Policy) Validate() error {
	if p.Name == "" {
		return errors.New("policy name is required")
	}
	if p.Rules == "" {
		return errors.New("policy rules are required")
	}
	return nil
}
