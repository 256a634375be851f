// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"errors"
	"sync/atomic"
)

// Identity is the operator-supplied content of the READY event. Field
// names mirror the JSON payload keys.
type Identity struct {
	// Version is data.v, the RPC protocol version advertised.
	Version int `yaml:"version" json:"version"`

	Config ClientConfig `yaml:"config" json:"config"`
	User   User         `yaml:"user" json:"user"`
}

// ClientConfig is data.config: where the client should fetch assets
// and call the API.
type ClientConfig struct {
	CDNHost     string `yaml:"cdn_host" json:"cdn_host"`
	APIEndpoint string `yaml:"api_endpoint" json:"api_endpoint"`
	Environment string `yaml:"environment" json:"environment"`
}

// User is data.user, the identity the client will believe is logged in.
type User struct {
	ID            string `yaml:"id" json:"id"`
	Username      string `yaml:"username" json:"username"`
	Discriminator string `yaml:"discriminator" json:"discriminator"`
	GlobalName    string `yaml:"global_name" json:"global_name"`

	// Avatar is the avatar hash. Nil is sent as JSON null.
	Avatar *string `yaml:"avatar" json:"avatar"`

	Bot         bool `yaml:"bot" json:"bot"`
	Flags       int  `yaml:"flags" json:"flags"`
	PremiumType int  `yaml:"premium_type" json:"premium_type"`
}

// DefaultIdentity returns the placeholder identity used when nothing is
// configured. The ID and username are deliberately obvious
// placeholders; operators are expected to override them.
func DefaultIdentity() Identity {
	return Identity{
		Version: 1,
		Config: ClientConfig{
			CDNHost:     "cdn.discordapp.com",
			APIEndpoint: "//discord.com/api",
			Environment: "production",
		},
		User: User{
			ID:            "0",
			Username:      "user",
			Discriminator: "0",
			GlobalName:    "user",
			Flags:         288,
			PremiumType:   0,
		},
	}
}

// Validate reports missing fields that every client expects.
func (identity Identity) Validate() error {
	var errs []error
	if identity.Version <= 0 {
		errs = append(errs, errors.New("identity.version must be positive"))
	}
	if identity.User.ID == "" {
		errs = append(errs, errors.New("identity.user.id is required"))
	}
	if identity.User.Username == "" {
		errs = append(errs, errors.New("identity.user.username is required"))
	}
	if identity.Config.CDNHost == "" {
		errs = append(errs, errors.New("identity.config.cdn_host is required"))
	}
	if identity.Config.APIEndpoint == "" {
		errs = append(errs, errors.New("identity.config.api_endpoint is required"))
	}
	return errors.Join(errs...)
}

// Provider supplies the identity for the next connection.
type Provider interface {
	Identity() Identity
}

// Static returns a Provider that always returns identity.
func Static(identity Identity) Provider {
	return staticProvider{identity: identity}
}

type staticProvider struct {
	identity Identity
}

func (p staticProvider) Identity() Identity { return p.identity }

// Swappable is a Provider whose identity can be replaced at any time.
// Readers never block writers. The zero value is not usable; create
// one with NewSwappable.
type Swappable struct {
	current atomic.Pointer[Identity]
}

// NewSwappable returns a Swappable holding initial.
func NewSwappable(initial Identity) *Swappable {
	swappable := &Swappable{}
	swappable.Store(initial)
	return swappable
}

// Identity returns the most recently stored identity.
func (s *Swappable) Identity() Identity { return *s.current.Load() }

// Store replaces the identity used for subsequent connections.
func (s *Swappable) Store(identity Identity) {
	s.current.Store(&identity)
}
