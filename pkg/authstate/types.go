package authstate

// Creds is the core's view of the signal credential blob the socket
// needs to establish and maintain a session: noise keys, identity keys,
// pre-keys, account data. The core never interprets these fields; it
// only round-trips them through bufcodec and the kv.Store.
type Creds struct {
	NoiseKey                map[string]any `json:"noiseKey,omitempty"`
	SignedIdentityKey       map[string]any `json:"signedIdentityKey,omitempty"`
	SignedPreKey            map[string]any `json:"signedPreKey,omitempty"`
	RegistrationID          int            `json:"registrationId,omitempty"`
	AdvSecretKey            []byte         `json:"advSecretKey,omitempty"`
	Account                 map[string]any `json:"account,omitempty"`
	Me                      map[string]any `json:"me,omitempty"`
	NextPreKeyID            int            `json:"nextPreKeyId,omitempty"`
	FirstUnuploadedPreKeyID int            `json:"firstUnuploadedPreKeyId,omitempty"`
}

// AppStateSyncKey is the reconstructed payload type for the
// "app-state-sync-key" logical category in state.keys.get.
type AppStateSyncKey struct {
	KeyData     []byte `json:"keyData,omitempty"`
	Fingerprint []byte `json:"fingerprint,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}

// appStateSyncKeyType is the logical category name carrying
// AppStateSyncKey-shaped values, per spec.md §4.8.
const appStateSyncKeyType = "app-state-sync-key"

// credsKey is the logical key the credential blob is stored under.
const credsKey = "creds"
