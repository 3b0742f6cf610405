package enginerpc

import "fmt"

// decodeEvent converts a decoded msgpack-RPC notification (method name
// plus its positional params, as produced by msgpack.DecodeInterface)
// into a typed Event. Unknown methods are ignored (nil, nil) rather than
// treated as an error, since engine-side glue evolution shouldn't be
// fatal to the coordination layer.
func decodeEvent(method string, params []any) (Event, error) {
	switch method {
	case "ready":
		return EventReady{}, nil

	case "snapshot":
		if len(params) != 1 {
			return nil, fmt.Errorf("snapshot: want 1 param, got %d", len(params))
		}
		snap, err := decodeSnapshot(params[0])
		if err != nil {
			return nil, err
		}
		return EventSnapshot{Snapshot: snap}, nil

	case "commit":
		if len(params) != 1 {
			return nil, fmt.Errorf("commit: want 1 param, got %d", len(params))
		}
		text, _ := params[0].(string)
		return EventCommit{Text: text}, nil

	case "delete_surrounding":
		if len(params) != 2 {
			return nil, fmt.Errorf("delete_surrounding: want 2 params, got %d", len(params))
		}
		before, _ := asInt(params[0])
		after, _ := asInt(params[1])
		return EventDeleteSurrounding{Before: int(before), After: int(after)}, nil

	case "candidates":
		if len(params) != 2 {
			return nil, fmt.Errorf("candidates: want 2 params, got %d", len(params))
		}
		raw, _ := params[0].([]any)
		entries := make([]string, 0, len(raw))
		for _, e := range raw {
			if s, ok := e.(string); ok {
				entries = append(entries, s)
			}
		}
		selected, _ := asInt(params[1])
		return EventCandidates{Entries: entries, Selected: int(selected)}, nil

	case "command_line":
		if len(params) != 2 {
			return nil, fmt.Errorf("command_line: want 2 params, got %d", len(params))
		}
		opNum, _ := asInt(params[0])
		text, _ := params[1].(string)
		return EventCommandLine{Op: CommandLineOp(opNum), Text: text}, nil

	case "mode_changed":
		if len(params) != 1 {
			return nil, fmt.Errorf("mode_changed: want 1 param, got %d", len(params))
		}
		tag, _ := params[0].(string)
		return EventModeChanged{Tag: tag}, nil

	case "yank":
		if len(params) != 2 {
			return nil, fmt.Errorf("yank: want 2 params, got %d", len(params))
		}
		register, _ := params[0].(string)
		text, _ := params[1].(string)
		return EventYank{Register: register, Text: text}, nil

	default:
		return nil, nil
	}
}

// decodeSnapshot converts the generic map[string]any msgpack decodes a
// map into, the shape collect_snapshot's result takes over the wire,
// into a Snapshot.
func decodeSnapshot(raw any) (Snapshot, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Snapshot{}, fmt.Errorf("snapshot: expected map, got %T", raw)
	}

	s := Snapshot{
		PreeditText:       fieldString(m, "preedit_text"),
		ModeTag:           fieldString(m, "mode_tag"),
		RecordingRegister: fieldString(m, "recording_register"),
		BlockingFlag:      fieldBool(m, "blocking_flag"),
	}
	s.CursorByte = int(fieldInt(m, "cursor_byte"))
	s.CharWidthUnderCursor = int(fieldInt(m, "char_width_under_cursor"))

	if vr, ok := m["visual_range"].(map[string]any); ok {
		s.VisualRange = &VisualRange{
			Begin: int(fieldInt(vr, "begin")),
			End:   int(fieldInt(vr, "end")),
		}
	}
	return s, nil
}

func fieldString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func fieldBool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func fieldInt(m map[string]any, key string) int64 {
	n, _ := asInt(m[key])
	return n
}
