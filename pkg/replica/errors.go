package replica

import "errors"

var (
	// ErrChatNotFound reports a chat id that isn't present in the
	// replica's chat collection. No Replica method returns it at present;
	// LoadMessage reports an unknown chat as ErrMessageNotFound.
	ErrChatNotFound = errors.New("replica: chat not found")

	// ErrMessageNotFound is returned by LoadMessage for a (jid, id) pair
	// with no stored message.
	ErrMessageNotFound = errors.New("replica: message not found")

	// ErrSnapshotCorrupt is returned by FromJSON/ReadFromFile when the
	// snapshot bytes don't parse as the documented snapshot shape at all
	// (not merely missing optional fields, which is tolerated).
	ErrSnapshotCorrupt = errors.New("replica: snapshot corrupt")
)
