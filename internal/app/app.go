package app

import (
	"conceptforge/internal/cache"
	"conceptforge/internal/repository"
)

// App bundles the storage-layer dependencies built at startup.
type App struct {
	SessionRepo  repository.SessionRepo
	PendingRepo  repository.PendingRepo
	ClusterRepo  repository.ClusterRepo
	RecordRepo   repository.RecordRepo
	SessionCache cache.SessionCache
}
