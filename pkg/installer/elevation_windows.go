//go:build windows

package installer

import "golang.org/x/sys/windows"

// IsElevated reports whether the engine runs as a member of BUILTIN\Administrators
// with an elevated token.
func IsElevated() (bool, error) {
	var adminSid *windows.SID
	err := windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&adminSid)
	if err != nil {
		return false, err
	}
	defer windows.FreeSid(adminSid)

	token := windows.Token(0)
	isMember, err := token.IsMember(adminSid)
	if err != nil {
		return false, err
	}
	return isMember && windows.GetCurrentProcessToken().IsElevated(), nil
}
