package syncplan

import (
	"fmt"
	"hash"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"
)

// Recognized parameter keys.
const (
	ParamPath                = "path"
	ParamOffset              = "offset"
	ParamTotalLength         = "totalLength"
	ParamCreated             = "created"
	ParamModified            = "modified"
	ParamContentType         = "contentType"
	ParamDirectLink          = "directLink"
	ParamDirectLinkFragments = "directLinkFragments"
	ParamThumbnailLink       = "thumbnailLink"
	ParamPreviewLink         = "previewLink"
	ParamError               = "error"
	ParamQuarantine          = "quarantine"
	ParamStop                = "stop"
	ParamAcknowledge         = "acknowledge"
	ParamData                = "data"
)

// maxParamsStringLen bounds the rendering of a parameter bag.
const maxParamsStringLen = 512

// bulkyParams are never rendered.
var bulkyParams = map[string]struct{}{
	ParamData: {},
}

// Parameters is the parameter bag of an action. Insertion order is irrelevant.
type Parameters map[string]any

// Clone returns a shallow copy, nil for an empty bag.
func (p Parameters) Clone() Parameters {
	if len(p) == 0 {
		return nil
	}
	return maps.Clone(p)
}

// String renders the bag with sorted keys, hiding bulky values and truncating
// the result.
func (p Parameters) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, key := range slices.Sorted(maps.Keys(p)) {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(key)
		sb.WriteByte('=')
		if _, bulky := bulkyParams[key]; bulky {
			sb.WriteString("...")
		} else {
			sb.WriteString(paramString(p[key]))
		}
		if sb.Len() > maxParamsStringLen {
			break
		}
	}
	s := sb.String()
	if len(s) > maxParamsStringLen {
		cut := maxParamsStringLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "...}"
	}
	return s + "}"
}

func paramString(v any) string {
	switch val := v.(type) {
	case *DriveError:
		return string(val.Code) + " " + val.Message
	case []byte:
		return fmt.Sprintf("[%d bytes]", len(val))
	default:
		return fmt.Sprint(val)
	}
}

// equalParams compares two bags; DriveError values compare by code only.
func equalParams(a, b Parameters) bool {
	if len(a) != len(b) {
		return false
	}
	for key, va := range a {
		vb, ok := b[key]
		if !ok || paramIdentity(va) != paramIdentity(vb) {
			return false
		}
	}
	return true
}

// paramIdentity is the string a value contributes to equality and hashing.
func paramIdentity(v any) string {
	switch val := v.(type) {
	case *DriveError:
		if val == nil {
			return "<nil>"
		}
		return "error:" + string(val.Code)
	case error:
		return "error:" + val.Error()
	case []byte:
		return "bytes:" + string(val)
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}

func hashParams(h hash.Hash64, p Parameters) {
	for _, key := range slices.Sorted(maps.Keys(p)) {
		h.Write([]byte(key))
		h.Write([]byte{0})
		h.Write([]byte(paramIdentity(p[key])))
		h.Write([]byte{0})
	}
}
