//go:build windows

package registry

import (
	"errors"
	"fmt"

	winreg "golang.org/x/sys/windows/registry"
)

// Native is the Windows registry.
type Native struct{}

// NewNative returns the host registry.
func NewNative() *Native { return &Native{} }

// Default returns the registry the executor should use on this platform.
func Default() Registry { return NewNative() }

func resolveRoot(hive Hive) (winreg.Key, error) {
	switch hive {
	case LocalMachine:
		return winreg.LOCAL_MACHINE, nil
	case CurrentUser:
		return winreg.CURRENT_USER, nil
	case ClassesRoot:
		return winreg.CLASSES_ROOT, nil
	case Users:
		return winreg.USERS, nil
	default:
		return 0, fmt.Errorf("unknown registry hive: %s", hive)
	}
}

// SetValue writes v, creating the key path if needed. Writing a value with a
// different type than the existing one replaces it.
func (Native) SetValue(hive Hive, path, name string, v Value) error {
	root, err := resolveRoot(hive)
	if err != nil {
		return err
	}
	key, _, err := winreg.CreateKey(root, CleanPath(path), winreg.SET_VALUE|winreg.QUERY_VALUE)
	if err != nil {
		return fmt.Errorf("failed to create key %s\\%s: %w", hive, path, err)
	}
	defer key.Close()

	switch v.Type {
	case String:
		err = key.SetStringValue(name, v.String)
	case ExpandString:
		err = key.SetExpandStringValue(name, v.String)
	case MultiString:
		err = key.SetStringsValue(name, v.Strings)
	case DWord:
		err = key.SetDWordValue(name, uint32(v.Integer))
	case QWord:
		err = key.SetQWordValue(name, v.Integer)
	case Binary:
		err = key.SetBinaryValue(name, v.Binary)
	default:
		return fmt.Errorf("unsupported value type: %s", v.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to set value %q: %w", name, err)
	}
	return nil
}

// GetValue reads a value back in its stored type.
func (Native) GetValue(hive Hive, path, name string) (Value, error) {
	root, err := resolveRoot(hive)
	if err != nil {
		return Value{}, err
	}
	key, err := winreg.OpenKey(root, CleanPath(path), winreg.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, winreg.ErrNotExist) {
			return Value{}, ErrNotExist
		}
		return Value{}, fmt.Errorf("failed to open key: %w", err)
	}
	defer key.Close()

	_, valType, err := key.GetValue(name, nil)
	if err != nil {
		if errors.Is(err, winreg.ErrNotExist) {
			return Value{}, ErrNotExist
		}
		return Value{}, fmt.Errorf("value not found: %w", err)
	}

	switch valType {
	case winreg.SZ, winreg.EXPAND_SZ:
		s, _, err := key.GetStringValue(name)
		t := String
		if valType == winreg.EXPAND_SZ {
			t = ExpandString
		}
		return Value{Type: t, String: s}, err
	case winreg.MULTI_SZ:
		ss, _, err := key.GetStringsValue(name)
		return Value{Type: MultiString, Strings: ss}, err
	case winreg.DWORD, winreg.QWORD:
		n, _, err := key.GetIntegerValue(name)
		t := DWord
		if valType == winreg.QWORD {
			t = QWord
		}
		return Value{Type: t, Integer: n}, err
	case winreg.BINARY:
		b, _, err := key.GetBinaryValue(name)
		return Value{Type: Binary, Binary: b}, err
	default:
		return Value{}, fmt.Errorf("unsupported registry type %d for %q", valType, name)
	}
}

// DeleteKey removes path and all subkeys. A missing key is success.
func (Native) DeleteKey(hive Hive, path string) error {
	root, err := resolveRoot(hive)
	if err != nil {
		return err
	}
	p := CleanPath(path)
	if p == "" {
		return fmt.Errorf("refusing to delete the root of %s", hive)
	}
	return deleteTree(root, p)
}

func deleteTree(root winreg.Key, path string) error {
	key, err := winreg.OpenKey(root, path, winreg.ENUMERATE_SUB_KEYS|winreg.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, winreg.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open key %s: %w", path, err)
	}
	subkeys, err := key.ReadSubKeyNames(-1)
	key.Close()
	if err != nil {
		return fmt.Errorf("failed to read subkeys of %s: %w", path, err)
	}
	for _, name := range subkeys {
		if err := deleteTree(root, path+`\`+name); err != nil {
			return err
		}
	}
	if err := winreg.DeleteKey(root, path); err != nil && !errors.Is(err, winreg.ErrNotExist) {
		return fmt.Errorf("failed to delete key %s: %w", path, err)
	}
	return nil
}

// KeyExists reports whether the key can be opened.
func (Native) KeyExists(hive Hive, path string) (bool, error) {
	root, err := resolveRoot(hive)
	if err != nil {
		return false, err
	}
	key, err := winreg.OpenKey(root, CleanPath(path), winreg.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, winreg.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	key.Close()
	return true, nil
}
