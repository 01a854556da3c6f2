// Package storagesvc provides the file storages backing note PDFs.
package storagesvc

import (
	"github.com/trezcool/learnsmart/core"
)

// NewStorage returns the FileStorage selected by conf.Storage.Engine.
func NewStorage(conf *core.Config) (core.FileStorage, error) {
	switch conf.Storage.Engine {
	case "oss":
		return NewOSSStorage(conf)
	default:
		return NewLocalStorage(conf.Storage.LocalDir, conf.Storage.Bucket), nil
	}
}
