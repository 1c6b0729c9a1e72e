package main

import (
	"github.com/yarkm13/sharewalk/internal/remote"
	"github.com/yarkm13/sharewalk/internal/remote/ftpfs"
	"github.com/yarkm13/sharewalk/internal/remote/s3fs"
	"github.com/yarkm13/sharewalk/internal/remote/smbfs"
	"github.com/yarkm13/sharewalk/internal/remote/sshfs"
)

type factoryConfig struct {
	SSH      sshfs.Config
	S3Region string
}

// connectorFactories lists every supported scheme; the first factory that
// accepts a locator's scheme serves it.
func connectorFactories(cfg factoryConfig) ([]remote.ConnectorFactory, error) {
	dialer, err := sshfs.NewDialer(cfg.SSH)
	if err != nil {
		return nil, err
	}
	return []remote.ConnectorFactory{
		&smbfs.Factory{},
		&ftpfs.Factory{},
		&sshfs.SFTPFactory{Dialer: dialer},
		&sshfs.SCPFactory{Dialer: dialer},
		&s3fs.Factory{Region: cfg.S3Region},
		// add more
	}, nil
}
