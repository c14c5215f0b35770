// Package codec centralizes encoding of persisted catalog documents.
//
// The sidecar file and backup snapshots are JSON objects. Changing the codec
// never changes the bytes on disk in an incompatible way; both codecs emit
// plain JSON and read each other's output.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
//
// Used by configuration files and the command line to select a codec.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json", "":
		return GoJSON{}, true
	default:
		return nil, false
	}
}
