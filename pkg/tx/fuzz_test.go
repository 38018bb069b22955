package tx

import (
	"encoding/json"
	"testing"
)

// FuzzTxUnmarshal checks that arbitrary JSON input never panics when
// unmarshaled into a Transaction and run through validation.
func FuzzTxUnmarshal(f *testing.F) {
	f.Add([]byte(`{"tag":0}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"tag":1,"transfer":{}}`))
	f.Add([]byte(`{"tag":2,"subdivision":{"children":[{},{},{}]}}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var txn Transaction
		if err := json.Unmarshal(data, &txn); err != nil {
			return
		}
		// Must not panic regardless of what was decoded.
		txn.Hash()
		txn.Validate()
		txn.Encode()
	})
}

// FuzzTxDecode checks that arbitrary wire bytes never panic Decode.
func FuzzTxDecode(f *testing.F) {
	f.Add([]byte{0})
	f.Add([]byte{1})
	f.Add([]byte{2})
	f.Add([]byte{})
	f.Add([]byte{9, 1, 2, 3})

	f.Fuzz(func(t *testing.T, data []byte) {
		txn, _, err := Decode(data)
		if err != nil {
			return
		}
		txn.Hash()
		txn.Validate()
	})
}
