package replica

import (
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/waprojector/pkg/bufcodec"
	"github.com/codeready-toolchain/waprojector/pkg/waevents"
)

// snapshot is the in-memory form of the wire shape described in spec §6:
// a single JSON object with five top-level fields, all tolerant of being
// absent on read. Presences is deliberately not a field here — it's
// transient and never persisted.
type snapshot struct {
	Chats             []waevents.Chat
	Contacts          map[string]waevents.Contact
	Messages          map[string][]waevents.Message
	Labels            map[string]waevents.Label
	LabelAssociations []waevents.LabelAssociation
}

// rawSnapshot mirrors the wire object but leaves Labels as a RawMessage
// so decodeSnapshot can accept either the map-of-label or array-of-label
// shape on read, per spec §6 ("accept both on read; emit the map form").
type rawSnapshot struct {
	Chats             []waevents.Chat               `json:"chats"`
	Contacts          map[string]waevents.Contact    `json:"contacts"`
	Messages          map[string][]waevents.Message  `json:"messages"`
	Labels            json.RawMessage                `json:"labels"`
	LabelAssociations []waevents.LabelAssociation     `json:"labelAssociations"`
}

// encodeSnapshot marshals s through bufcodec so any embedded byte arrays
// survive the round trip as the documented Buffer wire shape. Labels is
// always emitted in the map form.
func encodeSnapshot(s snapshot) ([]byte, error) {
	wire := struct {
		Chats             []waevents.Chat                `json:"chats"`
		Contacts          map[string]waevents.Contact    `json:"contacts"`
		Messages          map[string][]waevents.Message  `json:"messages"`
		Labels            map[string]waevents.Label      `json:"labels"`
		LabelAssociations []waevents.LabelAssociation     `json:"labelAssociations"`
	}{
		Chats:             orEmptyChats(s.Chats),
		Contacts:          orEmptyContacts(s.Contacts),
		Messages:          orEmptyMessages(s.Messages),
		Labels:            orEmptyLabels(s.Labels),
		LabelAssociations: orEmptyAssociations(s.LabelAssociations),
	}
	encoded, err := bufcodec.Encode(wire)
	if err != nil {
		return nil, fmt.Errorf("replica: encode snapshot: %w", err)
	}
	return encoded, nil
}

// decodeSnapshot is the inverse of encodeSnapshot. Missing top-level
// fields are tolerated (they unmarshal to the zero value, i.e. empty);
// unknown top-level fields are ignored by json.Unmarshal's own default
// behavior. A body that isn't even a JSON object, or whose labels field
// is neither an object nor an array, is reported as ErrSnapshotCorrupt.
func decodeSnapshot(data []byte) (snapshot, error) {
	decoded, err := bufcodec.Decode(data)
	if err != nil {
		return snapshot{}, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}

	reencoded, err := json.Marshal(decoded)
	if err != nil {
		return snapshot{}, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}

	var raw rawSnapshot
	if err := json.Unmarshal(reencoded, &raw); err != nil {
		return snapshot{}, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}

	labels, err := labelsFromRaw(raw.Labels)
	if err != nil {
		return snapshot{}, err
	}

	return snapshot{
		Chats:             raw.Chats,
		Contacts:          orEmptyContacts(raw.Contacts),
		Messages:          orEmptyMessages(raw.Messages),
		Labels:            labels,
		LabelAssociations: raw.LabelAssociations,
	}, nil
}

// labelsFromRaw accepts either the map-of-label or array-of-label shape
// for the "labels" field, always normalizing to a map keyed by id. A
// missing/null field yields an empty map.
func labelsFromRaw(raw json.RawMessage) (map[string]waevents.Label, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]waevents.Label{}, nil
	}

	var asMap map[string]waevents.Label
	if err := json.Unmarshal(raw, &asMap); err == nil {
		return asMap, nil
	}

	var asArray []waevents.Label
	if err := json.Unmarshal(raw, &asArray); err != nil {
		return nil, fmt.Errorf("%w: labels field is neither object nor array", ErrSnapshotCorrupt)
	}
	out := make(map[string]waevents.Label, len(asArray))
	for _, l := range asArray {
		out[l.ID] = l
	}
	return out, nil
}

func orEmptyChats(v []waevents.Chat) []waevents.Chat {
	if v == nil {
		return []waevents.Chat{}
	}
	return v
}

func orEmptyContacts(v map[string]waevents.Contact) map[string]waevents.Contact {
	if v == nil {
		return map[string]waevents.Contact{}
	}
	return v
}

func orEmptyMessages(v map[string][]waevents.Message) map[string][]waevents.Message {
	if v == nil {
		return map[string][]waevents.Message{}
	}
	return v
}

func orEmptyLabels(v map[string]waevents.Label) map[string]waevents.Label {
	if v == nil {
		return map[string]waevents.Label{}
	}
	return v
}

func orEmptyAssociations(v []waevents.LabelAssociation) []waevents.LabelAssociation {
	if v == nil {
		return []waevents.LabelAssociation{}
	}
	return v
}
