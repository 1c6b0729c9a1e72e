package remote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yarkm13/sharewalk/internal/locator"
	"github.com/yarkm13/sharewalk/internal/logging"
)

// CredentialSource supplies credentials that override those embedded in a
// locator.
type CredentialSource interface {
	Resolve(server, share, domainHint string) (Credentials, bool)
}

// Client opens directory handles for any locator, choosing the connector
// factory by scheme and reusing one connector per server and identity.
type Client struct {
	factories []ConnectorFactory
	creds     CredentialSource
	pool      map[string]Connector
}

// NewClient returns a client over the given factories. creds may be nil.
func NewClient(factories []ConnectorFactory, creds CredentialSource) *Client {
	return &Client{
		factories: factories,
		creds:     creds,
		pool:      make(map[string]Connector),
	}
}

// Factory returns the first factory accepting scheme, or nil.
func (c *Client) Factory(scheme string) ConnectorFactory {
	for _, f := range c.factories {
		if f.Accept(scheme) {
			return f
		}
	}
	return nil
}

// OpenDir opens loc, dialing a new connector if none matches its server and
// effective credentials.
func (c *Client) OpenDir(ctx context.Context, loc *locator.Locator) (Dir, error) {
	factory := c.Factory(loc.Scheme)
	if factory == nil {
		return nil, fmt.Errorf("no connector available for scheme %q: %w", loc.Scheme, ErrUnsupported)
	}

	creds := c.Credentials(loc)
	key := poolKey(loc, creds)
	conn, ok := c.pool[key]
	if !ok {
		logging.Debug("connecting",
			zap.String("connector", factory.Name()),
			zap.String("server", loc.Server),
			zap.String("user", creds.Username))
		var err error
		conn, err = factory.Create(ctx, loc, creds)
		if err != nil {
			return nil, err
		}
		c.pool[key] = conn
	}

	d, err := conn.OpenDir(ctx, loc)
	if err != nil && !isExpected(err) {
		logging.Warn("dropping connector after failure",
			zap.String("server", loc.Server), zap.Error(err))
		delete(c.pool, key)
		_ = conn.Close()
	}
	return d, err
}

// Credentials returns what a connection to loc would authenticate with:
// the credential source first, then the locator's own credential block.
func (c *Client) Credentials(loc *locator.Locator) Credentials {
	hint := ""
	if loc.User != nil {
		hint = loc.User.Domain
	}
	if c.creds != nil {
		if cr, ok := c.creds.Resolve(loc.Server, loc.Share, hint); ok {
			return cr
		}
	}
	if loc.User != nil {
		return Credentials{
			Domain:   loc.User.Domain,
			Username: loc.User.Username,
			Password: []byte(loc.User.Password),
		}
	}
	return Credentials{}
}

// Close closes every pooled connector.
func (c *Client) Close() error {
	var errs []error
	for key, conn := range c.pool {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(c.pool, key)
	}
	return errors.Join(errs...)
}

func isExpected(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoDevice) ||
		errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrNotDir) ||
		errors.Is(err, context.Canceled)
}

func poolKey(loc *locator.Locator, creds Credentials) string {
	sum := sha256.Sum256(creds.Password)
	return strings.Join([]string{
		loc.Scheme,
		strings.ToLower(loc.Server),
		strings.ToLower(creds.Domain),
		creds.Username,
		hex.EncodeToString(sum[:8]),
	}, "|")
}
