// Package directory provides the HTTP client for the key directory
// collaborator and the short-TTL cache of fetched recipient bundles.
//
// The directory is a store-and-forward service holding every device's
// public key material. Supported operations:
//
//   - Registering a device's formatted key bundle.
//   - Uploading replenishment one-time prekeys.
//   - Reading the device's remaining one-time prekey count.
//   - Fetching a recipient's bundle (the directory marks any attached
//     one-time prekey consumed before responding).
//   - Listing and revoking a user's devices.
//   - Moving encrypted envelopes through per-user mailboxes.
//
// All requests are JSON over HTTP and accept a context for cancellation
// and deadlines. Transport failures and 5xx statuses are retried with
// exponential backoff; the resulting *domain.DirectoryError records
// whether another attempt is worthwhile.
package directory
