// pkg/registry/registry.go - registry hives, typed values and the store interface used by the executor.

package registry

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotExist is returned when a key or value is not present.
var ErrNotExist = errors.New("registry key or value does not exist")

// Hive identifies a registry root.
type Hive string

const (
	LocalMachine Hive = "HKLM"
	CurrentUser  Hive = "HKCU"
	Users        Hive = "HKU"
	ClassesRoot  Hive = "HKCR"
)

// ParseHive accepts both short (HKLM) and long (HKEY_LOCAL_MACHINE) names.
func ParseHive(s string) (Hive, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HKLM", "HKEY_LOCAL_MACHINE":
		return LocalMachine, nil
	case "HKCU", "HKEY_CURRENT_USER":
		return CurrentUser, nil
	case "HKU", "HKEY_USERS":
		return Users, nil
	case "HKCR", "HKEY_CLASSES_ROOT":
		return ClassesRoot, nil
	default:
		return "", fmt.Errorf("unknown registry hive: %q", s)
	}
}

// ValueType is the registry data type of a value.
type ValueType string

const (
	String       ValueType = "REG_SZ"
	ExpandString ValueType = "REG_EXPAND_SZ"
	MultiString  ValueType = "REG_MULTI_SZ"
	DWord        ValueType = "REG_DWORD"
	QWord        ValueType = "REG_QWORD"
	Binary       ValueType = "REG_BINARY"
)

// ParseValueType maps the manifest spelling (String, DWord, REG_DWORD...) to a ValueType.
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "STRING", "REG_SZ":
		return String, nil
	case "EXPANDSTRING", "REG_EXPAND_SZ":
		return ExpandString, nil
	case "MULTISTRING", "REG_MULTI_SZ":
		return MultiString, nil
	case "DWORD", "REG_DWORD":
		return DWord, nil
	case "QWORD", "REG_QWORD":
		return QWord, nil
	case "BINARY", "REG_BINARY":
		return Binary, nil
	default:
		return "", fmt.Errorf("unknown registry value type: %q", s)
	}
}

// Value is a typed registry value. Only the field matching Type is meaningful.
type Value struct {
	Type    ValueType
	String  string
	Strings []string
	Integer uint64
	Binary  []byte
}

// StringValue returns a REG_SZ value.
func StringValue(s string) Value { return Value{Type: String, String: s} }

// DWordValue returns a REG_DWORD value.
func DWordValue(n uint32) Value { return Value{Type: DWord, Integer: uint64(n)} }

// Equal reports whether two values have the same type and data.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case String, ExpandString:
		return v.String == o.String
	case MultiString:
		if len(v.Strings) != len(o.Strings) {
			return false
		}
		for i := range v.Strings {
			if v.Strings[i] != o.Strings[i] {
				return false
			}
		}
		return true
	case DWord, QWord:
		return v.Integer == o.Integer
	case Binary:
		return bytes.Equal(v.Binary, o.Binary)
	}
	return false
}

// Display renders the value for logs.
func (v Value) Display() string {
	switch v.Type {
	case MultiString:
		return strings.Join(v.Strings, `\0`)
	case DWord, QWord:
		return strconv.FormatUint(v.Integer, 10)
	case Binary:
		return strings.ToUpper(hex.EncodeToString(v.Binary))
	default:
		return v.String
	}
}

// ParseValue converts raw manifest data (as decoded from YAML) to a typed Value.
func ParseValue(t ValueType, raw any) (Value, error) {
	v := Value{Type: t}
	switch t {
	case String, ExpandString:
		v.String = fmt.Sprint(raw)
		if raw == nil {
			v.String = ""
		}
	case MultiString:
		switch r := raw.(type) {
		case []string:
			v.Strings = append([]string(nil), r...)
		case []any:
			for _, s := range r {
				v.Strings = append(v.Strings, fmt.Sprint(s))
			}
		case string:
			for _, line := range strings.Split(r, "\n") {
				if trimmed := strings.TrimSpace(line); trimmed != "" {
					v.Strings = append(v.Strings, trimmed)
				}
			}
		case nil:
		default:
			return Value{}, fmt.Errorf("%s expects a list of strings, got %T", t, raw)
		}
	case DWord, QWord:
		n, err := parseInteger(raw)
		if err != nil {
			return Value{}, fmt.Errorf("%s: %w", t, err)
		}
		if t == DWord && n > 0xFFFFFFFF {
			return Value{}, fmt.Errorf("%s value %d overflows 32 bits", t, n)
		}
		v.Integer = n
	case Binary:
		s := strings.NewReplacer(" ", "", ",", "").Replace(fmt.Sprint(raw))
		if len(s)%2 != 0 {
			s = "0" + s
		}
		b, err := hex.DecodeString(s)
		if err != nil {
			return Value{}, fmt.Errorf("failed to parse binary value: %w", err)
		}
		v.Binary = b
	default:
		return Value{}, fmt.Errorf("unsupported value type: %s", t)
	}
	return v, nil
}

func parseInteger(raw any) (uint64, error) {
	switch n := raw.(type) {
	case int:
		if n < 0 {
			return 0, fmt.Errorf("negative value %d", n)
		}
		return uint64(n), nil
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("negative value %d", n)
		}
		return uint64(n), nil
	case uint64:
		return n, nil
	case uint32:
		return uint64(n), nil
	case string:
		s := strings.TrimSpace(n)
		if strings.HasPrefix(strings.ToLower(s), "0x") {
			return strconv.ParseUint(s[2:], 16, 64)
		}
		return strconv.ParseUint(s, 10, 64)
	default:
		return 0, fmt.Errorf("expected an integer, got %T", raw)
	}
}

// Registry is the host registry as seen by the executor. SetValue creates
// intermediate keys and replaces an existing value of any type. DeleteKey
// removes the key with all subkeys; a missing key is not an error.
type Registry interface {
	SetValue(hive Hive, path, name string, v Value) error
	GetValue(hive Hive, path, name string) (Value, error)
	DeleteKey(hive Hive, path string) error
	KeyExists(hive Hive, path string) (bool, error)
}

// CleanPath trims surrounding separators and collapses doubled backslashes.
func CleanPath(path string) string {
	p := strings.ReplaceAll(path, "/", `\`)
	for strings.Contains(p, `\\`) {
		p = strings.ReplaceAll(p, `\\`, `\`)
	}
	return strings.Trim(p, `\`)
}
