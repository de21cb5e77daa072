package testcell

// Hand-maintained stand-in for what `go generate` + tinylib/msgp would
// emit for EchoRequest/EchoResponse once they carry a //cell:schema
// marker and cmd/schemagen picks them up — this fixture cell has no
// generate step wired into its build, so the methods are written out by
// hand in the shape msgp itself produces for a single-string-field
// struct (a one-entry map keyed by the field name).

import "github.com/tinylib/msgp/msgp"

func (z *EchoRequest) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 1)
	o = msgp.AppendString(o, "payload")
	o = msgp.AppendString(o, z.Payload)
	return o, nil
}

func (z *EchoRequest) UnmarshalMsg(bts []byte) ([]byte, error) {
	return unmarshalSingleStringField(bts, &z.Payload)
}

func (z *EchoRequest) Msgsize() int {
	return msgp.MapHeaderSize + msgp.StringPrefixSize + len("payload") + msgp.StringPrefixSize + len(z.Payload)
}

func (z *EchoResponse) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 1)
	o = msgp.AppendString(o, "payload")
	o = msgp.AppendString(o, z.Payload)
	return o, nil
}

func (z *EchoResponse) UnmarshalMsg(bts []byte) ([]byte, error) {
	return unmarshalSingleStringField(bts, &z.Payload)
}

func (z *EchoResponse) Msgsize() int {
	return msgp.MapHeaderSize + msgp.StringPrefixSize + len("payload") + msgp.StringPrefixSize + len(z.Payload)
}

// unmarshalSingleStringField decodes the one-entry {"payload": <string>}
// map both EchoRequest and EchoResponse marshal to.
func unmarshalSingleStringField(bts []byte, field *string) ([]byte, error) {
	n, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for i := uint32(0); i < n; i++ {
		var key string
		key, bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return bts, err
		}
		switch key {
		case "payload":
			*field, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				return bts, err
			}
		default:
			bts, err = msgp.Skip(bts)
			if err != nil {
				return bts, err
			}
		}
	}
	return bts, nil
}
