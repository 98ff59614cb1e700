package values

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// String renders a Value in a SurrealQL-flavoured literal form, intended
// for logs and CLI output rather than round-tripping.
func (v Value) String() string {
	var sb strings.Builder
	v.format(&sb)
	return sb.String()
}

func (v Value) format(sb *strings.Builder) {
	switch v.kind {
	case KindNone:
		sb.WriteString("NONE")
	case KindNull:
		sb.WriteString("NULL")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.boolean))
	case KindNumber:
		sb.WriteString(v.number.String())
	case KindStrand:
		sb.WriteString(strconv.Quote(v.str))
	case KindDuration:
		sb.WriteString(v.duration.String())
	case KindDatetime:
		sb.WriteByte('d')
		sb.WriteString(strconv.Quote(v.str))
	case KindUUID:
		sb.WriteByte('u')
		sb.WriteString(strconv.Quote(v.uuid.String()))
	case KindArray:
		sb.WriteByte('[')
		for i, e := range v.array {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.format(sb)
		}
		sb.WriteByte(']')
	case KindObject:
		sb.WriteString("{ ")
		for i, k := range v.object.keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			v.object.entries[k].format(sb)
		}
		sb.WriteString(" }")
	case KindBytes:
		sb.WriteString("b\"")
		sb.WriteString(hex.EncodeToString(v.bytes))
		sb.WriteByte('"')
	case KindThing:
		sb.WriteString(v.thing.String())
	}
}
