// Package tally provides a minimal public API for embedding the sync engine
// in other Go programs. It exports the document types, the session client and
// the store backends; everything else stays internal.
package tally

import (
	"github.com/benresonance-star/tally/internal/client"
	"github.com/benresonance-star/tally/internal/config"
	"github.com/benresonance-star/tally/internal/docstore"
	"github.com/benresonance-star/tally/internal/notify"
	"github.com/benresonance-star/tally/internal/types"
)

// Core document types.
type (
	Template     = types.Template
	Instance     = types.Instance
	Task         = types.Task
	TaskGuide    = types.TaskGuide
	User         = types.User
	ActiveFocus  = types.ActiveFocus
	PresenceInfo = types.PresenceInfo
)

// Focus workflow stages.
const (
	StageStaged    = types.StageStaged
	StagePreparing = types.StagePreparing
	StageExecuting = types.StageExecuting
)

// Session and infrastructure types.
type (
	Client             = client.Client
	Config             = config.Config
	Store              = docstore.Store
	NotificationCenter = notify.Center
)

// NewClient builds a session client over the given store.
func NewClient(cfg *Config, store Store, notes *NotificationCenter) *Client {
	return client.New(cfg, store, notes)
}

// NewMemoryStore returns the in-process store backend.
func NewMemoryStore() Store { return docstore.NewMemory() }

// OpenSQLiteStore opens the durable local backend at path.
func OpenSQLiteStore(path string) (Store, error) { return docstore.OpenSQLite(path) }

// LoadConfig reads configuration rooted at dir.
func LoadConfig(dir string) (*Config, error) { return config.Load(dir) }

// NewNotificationCenter returns an auto-expiring notification center.
func NewNotificationCenter() *NotificationCenter { return notify.NewCenter() }
