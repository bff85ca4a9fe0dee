// Package protocol implements the PLAF203 feeder wire format.
//
// Every message is a flat JSON object tagged by "cmd". Device messages
// decode into XxxIn types; server messages are XxxOut types encoded by
// Codec.Encode, which stamps msgId and ts when the Header is empty.
//
// Device timestamps carry no zone, so a Codec is bound to the location
// the device clock runs in. Schedule times travel as UTC "HH:MM" and are
// converted using the current date, which shifts by an hour across a
// daylight saving change.
//
// Usage:
//
//	codec := protocol.NewCodec(protocol.WithLocation(loc))
//	msg, err := codec.Decode(protocol.StreamEvent, payload)
//	if errors.Is(err, protocol.ErrUnknownCommand) {
//	    // firmware newer than this build
//	}
//	data, err := codec.Encode(&protocol.AttrGetServiceOut{})
package protocol
