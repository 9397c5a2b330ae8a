package domain

import "time"

// EncryptedMessage is the immutable wire payload produced by one send.
// The ephemeral key lets the recipient mirror the key agreement; the
// one-time prekey id, when present, names which single-use private key
// the recipient must consume to complete it.
type EncryptedMessage struct {
	Ciphertext      []byte `json:"ciphertext"`
	Nonce           []byte `json:"nonce"`
	EphemeralKey    []byte `json:"ephemeral_key"`
	RecipientKeyID  KeyID  `json:"recipient_key_id"`
	OneTimePreKeyID KeyID  `json:"one_time_prekey_id,omitempty"`
}

// Envelope wraps an EncryptedMessage for store-and-forward delivery.
// SenderIdentityKey rides along so the recipient can run the responder
// side of the agreement without a directory round trip.
type Envelope struct {
	From              UserID           `json:"from"`
	To                UserID           `json:"to"`
	SenderIdentityKey []byte           `json:"sender_identity_key"`
	Message           EncryptedMessage `json:"message"`
	Timestamp         int64            `json:"timestamp"`
}

// DeviceInfo describes one registered device, as listed by the directory.
type DeviceInfo struct {
	DeviceID  DeviceID  `json:"device_id"`
	CreatedAt time.Time `json:"created_at"`
}
