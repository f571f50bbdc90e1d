package ofstats

import "encoding/json"

// normalizeProfile projects an intercepted response body into a
// ProfileRecord. It returns nil for anything that is not a single-profile
// document: list responses, error shapes, payloads lacking both username and
// name, or bodies that are not valid JSON objects. It never panics; rejection
// is always by nil return.
//
// The url argument is the request URL that produced the payload; it is part
// of the contract so callers classify before normalizing, but the projection
// itself depends only on the body.
func normalizeProfile(url string, payload []byte) *ProfileRecord {
	if len(payload) == 0 {
		return nil
	}

	var rec ProfileRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		// Arrays, scalars and malformed JSON all land here.
		return nil
	}
	if rec.Username == "" && rec.Name == "" {
		return nil
	}

	rec.Raw = append(json.RawMessage(nil), payload...)
	return &rec
}
