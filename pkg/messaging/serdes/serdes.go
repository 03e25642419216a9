package serdes

import jsoniter "github.com/json-iterator/go"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func Marshal(data interface{}) ([]byte, error) {
	return json.Marshal(data)
}

func MarshalToString(data interface{}) (string, error) {
	return json.MarshalToString(data)
}

func Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// RawPayload embeds payload as is when it is valid JSON and as a JSON string
// otherwise, so text and JSON payloads both print readably.
func RawPayload(payload []byte) jsoniter.RawMessage {
	var raw jsoniter.RawMessage
	if len(payload) > 0 && json.Unmarshal(payload, &raw) == nil {
		return payload
	}
	quoted, _ := json.Marshal(string(payload))
	return quoted
}
