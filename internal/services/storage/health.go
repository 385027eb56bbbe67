package storage

import "context"

// HealthCheck pings the blob store and reports its status under the backend name.
func HealthCheck(ctx context.Context, backend string, store BlobStore) map[string]string {
	status := make(map[string]string)

	if store == nil {
		status[backend] = "not configured"
		return status
	}

	if err := store.Ping(ctx); err != nil {
		status[backend] = "unhealthy: " + err.Error()
	} else {
		status[backend] = "healthy"
	}

	return status
}
