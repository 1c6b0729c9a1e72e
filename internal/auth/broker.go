package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/yarkm13/sharewalk/internal/locator"
	"github.com/yarkm13/sharewalk/internal/logging"
	"github.com/yarkm13/sharewalk/internal/remote"
)

// Asker is the interactive side of the dialog; *prompt.Prompter satisfies it.
type Asker interface {
	Confirm(question string) bool
	ReadLine(prompt string) (string, error)
	ReadSecret(prompt string) ([]byte, error)
}

// Broker resolves credentials from the cache and, when an operation is
// denied, asks the user for new ones.
type Broker struct {
	cache *Cache
	asker Asker
}

func NewBroker(cache *Cache, asker Asker) *Broker {
	return &Broker{cache: cache, asker: asker}
}

// Resolve implements remote.CredentialSource. A cached entry without a
// domain inherits domainHint.
func (b *Broker) Resolve(server, share, domainHint string) (remote.Credentials, bool) {
	creds, ok := b.cache.Lookup(server, share)
	if !ok {
		return remote.Credentials{}, false
	}
	if creds.Domain == "" {
		creds.Domain = domainHint
	}
	return creds, true
}

// Retry runs op and, every time it fails with access denied, offers to
// enter credentials for target and runs op again. It gives up as soon as
// the user declines, returning the last error.
func (b *Broker) Retry(ctx context.Context, target *locator.Locator, op func() error) error {
	err := op()
	for errors.Is(err, remote.ErrAccessDenied) {
		if ctx.Err() != nil || !b.challenge(target) {
			return err
		}
		err = op()
	}
	return err
}

func (b *Broker) challenge(target *locator.Locator) bool {
	if b.asker == nil || !b.asker.Confirm("Error: Access denied! Enter authentication?") {
		return false
	}
	user, err := b.asker.ReadLine("username: ")
	if err != nil {
		return false
	}
	password, err := b.asker.ReadSecret("password: ")
	if err != nil {
		return false
	}

	domain := ""
	if target.User != nil {
		domain = target.User.Domain
	}
	if d, u, ok := strings.Cut(user, `\`); ok {
		domain, user = d, u
	}

	b.cache.Store(target.Server, target.Share, remote.Credentials{
		Domain:   domain,
		Username: user,
		Password: password,
	})
	logging.Info("credentials cached",
		zap.String("key", target.Key()),
		zap.String("user", user))
	return true
}

// Close wipes every cached password.
func (b *Broker) Close() {
	b.cache.Clear()
}
