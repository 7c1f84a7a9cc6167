package api

import (
	"io"

	"github.com/ewbrowntech/atto-host/internal/config"
	"github.com/ewbrowntech/atto-host/internal/database"
	"github.com/ewbrowntech/atto-host/internal/websocket"
)

// BlobStorage is what the handlers need from a storage backend. Satisfied by
// storage.LocalStorage.
type BlobStorage interface {
	Stage(data io.Reader) (string, int64, error)
	Promote(stagedName, finalName string) error
	Open(name string) (io.ReadCloser, error)
	Delete(name string) error
	List() ([]string, error)
	Purge() (int64, error)
	Path(name string) string
}

type Server struct {
	config  *config.Config
	store   *database.Store
	storage BlobStorage
	wsHub   *websocket.Hub
}

func NewServer(cfg *config.Config, store *database.Store, storage BlobStorage, wsHub *websocket.Hub) *Server {
	return &Server{
		config:  cfg,
		store:   store,
		storage: storage,
		wsHub:   wsHub,
	}
}
