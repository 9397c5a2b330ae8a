package domain

import "context"

// SecureStorage is the injected device-secure storage capability. Values
// are opaque blobs; Get reports absence without error.
type SecureStorage interface {
	Get(key string) (value []byte, ok bool, err error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// DirectoryClient is how we talk to the key directory, all with context.
type DirectoryClient interface {
	RegisterBundle(ctx context.Context, bundle RegistrationBundle) error
	UploadPreKeys(ctx context.Context, deviceID DeviceID, prekeys []WireOneTimePreKey) (accepted int, err error)
	RemainingPreKeyCount(ctx context.Context, deviceID DeviceID) (int, error)
	FetchBundle(ctx context.Context, userID UserID) (ServerPreKeyBundle, error)
	ListDevices(ctx context.Context, userID UserID) ([]DeviceInfo, error)
	RevokeDevice(ctx context.Context, deviceID DeviceID) error
}

// Mailbox moves encrypted envelopes through the store-and-forward
// transport. Delivery guarantees are the transport's problem, not ours.
type Mailbox interface {
	SendEnvelope(ctx context.Context, env Envelope) error
	FetchEnvelopes(ctx context.Context, userID UserID, limit int) ([]Envelope, error)
	AckEnvelopes(ctx context.Context, userID UserID, count int) error
}
