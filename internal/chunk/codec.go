package chunk

import (
	"fmt"
	"strconv"

	"github.com/danmuck/treesync/internal/meta"
)

// Protocol versions with a known property encoding.
const (
	Version2023 = "2023.1"
	Version2024 = "2024.1"
)

// Codec converts property values to and from their wire string form.
type Codec interface {
	Version() string
	Encode(f *meta.Feature, v any) (string, error)
	Decode(f *meta.Feature, raw string) (any, error)
}

type codec struct {
	version   string
	enumByKey bool
}

// CodecFor returns the property codec for a protocol version.
func CodecFor(version string) (Codec, error) {
	switch version {
	case Version2023:
		return codec{version: version}, nil
	case Version2024:
		return codec{version: version, enumByKey: true}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)
	}
}

// SupportedVersions lists the versions CodecFor accepts, newest first.
func SupportedVersions() []string {
	return []string{Version2024, Version2023}
}

func (c codec) Version() string { return c.version }

func (c codec) Encode(f *meta.Feature, v any) (string, error) {
	if f == nil || f.Kind != meta.KindProperty {
		return "", fmt.Errorf("%w: not a property", ErrInvalidValue)
	}
	switch f.Primitive {
	case meta.PrimitiveString:
		s, ok := v.(string)
		if !ok {
			return "", invalid(f, v)
		}
		return s, nil
	case meta.PrimitiveInteger:
		switch n := v.(type) {
		case int64:
			return strconv.FormatInt(n, 10), nil
		case int:
			return strconv.Itoa(n), nil
		default:
			return "", invalid(f, v)
		}
	case meta.PrimitiveBoolean:
		b, ok := v.(bool)
		if !ok {
			return "", invalid(f, v)
		}
		return strconv.FormatBool(b), nil
	case meta.PrimitiveEnum:
		lit, ok := v.(meta.EnumLiteral)
		if !ok || f.Enum == nil {
			return "", invalid(f, v)
		}
		if c.enumByKey {
			return lit.Key, nil
		}
		return lit.Name, nil
	default:
		return "", invalid(f, v)
	}
}

func (c codec) Decode(f *meta.Feature, raw string) (any, error) {
	if f == nil || f.Kind != meta.KindProperty {
		return nil, fmt.Errorf("%w: not a property", ErrInvalidValue)
	}
	switch f.Primitive {
	case meta.PrimitiveString:
		return raw, nil
	case meta.PrimitiveInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidValue, f, raw)
		}
		return n, nil
	case meta.PrimitiveBoolean:
		switch raw {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidValue, f, raw)
	case meta.PrimitiveEnum:
		if f.Enum == nil {
			return nil, fmt.Errorf("%w: %s has no enumeration", ErrInvalidValue, f)
		}
		var (
			lit meta.EnumLiteral
			ok  bool
		)
		if c.enumByKey {
			lit, ok = f.Enum.LiteralByKey(raw)
		} else {
			lit, ok = f.Enum.LiteralByName(raw)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s literal %q (version %s)", ErrInvalidValue, f, raw, c.version)
		}
		return lit, nil
	default:
		return nil, fmt.Errorf("%w: %s primitive %q", ErrInvalidValue, f, f.Primitive)
	}
}

func invalid(f *meta.Feature, v any) error {
	return fmt.Errorf("%w: %s cannot hold %T", ErrInvalidValue, f, v)
}
