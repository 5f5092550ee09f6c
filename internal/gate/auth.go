package gate

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// verifySignature recomputes the canonical-payload HMAC over the raw
// JSON body the handler received and compares it, in constant time,
// against the hex signature carried in the X-GW-Signature header
// (spec §4.H step 2). Canonicalization mirrors gateclient.signCanonical
// byte-for-byte: the "signature" field is dropped, object keys are
// recursively sorted, and separators are compact.
func (g *Gate) verifySignature(rawBody []byte, sigHex string) bool {
	var generic interface{}
	if err := json.Unmarshal(rawBody, &generic); err != nil {
		return false
	}
	obj, ok := generic.(map[string]interface{})
	if !ok {
		return false
	}
	delete(obj, "signature")

	canonical, err := json.Marshal(canonicalize(obj))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(g.sharedSecret))
	mac.Write(canonical)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(sigHex))
}

// canonicalize and sortedMap duplicate gateclient's canonical-JSON
// encoder on purpose: the Gate and the Brain run as separate processes
// (and, per spec §9, may run in different languages in other
// deployments), so each side owns its own byte-identical implementation
// rather than sharing a dependency that would couple their releases.
func canonicalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(sortedMap, 0, len(keys))
		for _, k := range keys {
			out = append(out, sortedEntry{key: k, value: canonicalize(t[k])})
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = canonicalize(e)
		}
		return out
	default:
		return v
	}
}

type sortedEntry struct {
	key   string
	value interface{}
}

type sortedMap []sortedEntry

func (m sortedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := json.Marshal(e.value)
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
