package storage

import "clipforge/internal/ports"

// Provider is the storage contract shared by the API, the worker and
// clipforgectl.
type Provider = ports.StorageProvider
