//go:build windows

package users

import (
	"context"
	"errors"
	"strings"

	"github.com/windowsadmins/appdeploy/pkg/logging"
	"github.com/yusufpapurcu/wmi"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

const profileListPath = `SOFTWARE\Microsoft\Windows NT\CurrentVersion\ProfileList`

// noConsoleSession is returned by WTSGetActiveConsoleSessionId while the
// console is being attached or detached.
const noConsoleSession = 0xFFFFFFFF

// Win32_UserProfile mirrors the WMI class fields we read.
type Win32_UserProfile struct {
	SID       string
	LocalPath string
	Special   bool
}

// Host resolves profiles and sessions from the local machine.
type Host struct{}

// Default returns the host resolver.
func Default() Resolver { return Host{} }

// Profiles queries WMI and falls back to the ProfileList registry key.
func (h Host) Profiles(ctx context.Context) ([]UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	profiles, wmiErr := profilesFromWMI()
	if wmiErr != nil {
		logging.Warn("WMI profile query failed, reading ProfileList", "error", wmiErr)
		var regErr error
		profiles, regErr = profilesFromRegistry()
		if regErr != nil {
			return nil, &HostQueryError{Op: "profiles", Err: errors.Join(wmiErr, regErr)}
		}
	}

	console, err := h.InteractiveSession(ctx)
	if err != nil {
		logging.Warn("Could not resolve console session", "error", err)
	}
	return MarkConsole(profiles, console), nil
}

func profilesFromWMI() ([]UserProfile, error) {
	var rows []Win32_UserProfile
	if err := wmi.Query("SELECT SID, LocalPath, Special FROM Win32_UserProfile WHERE Special = FALSE", &rows); err != nil {
		return nil, err
	}
	var out []UserProfile
	for _, r := range rows {
		if r.Special || !IsUserSID(r.SID) || r.LocalPath == "" {
			continue
		}
		out = append(out, UserProfile{
			ProfilePath: r.LocalPath,
			SecurityID:  r.SID,
			Username:    lookupUsername(r.SID, r.LocalPath),
		})
	}
	return out, nil
}

func profilesFromRegistry() ([]UserProfile, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, profileListPath, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	sids, err := key.ReadSubKeyNames(-1)
	if err != nil {
		return nil, err
	}
	var out []UserProfile
	for _, sid := range sids {
		if !IsUserSID(sid) || strings.HasSuffix(strings.ToLower(sid), ".bak") {
			continue
		}
		sub, err := registry.OpenKey(key, sid, registry.QUERY_VALUE)
		if err != nil {
			continue
		}
		path, _, err := sub.GetStringValue("ProfileImagePath")
		sub.Close()
		if err != nil || path == "" {
			continue
		}
		if expanded, err := registry.ExpandString(path); err == nil {
			path = expanded
		}
		out = append(out, UserProfile{
			ProfilePath: path,
			SecurityID:  sid,
			Username:    lookupUsername(sid, path),
		})
	}
	return out, nil
}

func lookupUsername(sidString, profilePath string) string {
	sid, err := windows.StringToSid(sidString)
	if err == nil {
		if account, domain, _, err := sid.LookupAccount(""); err == nil {
			if domain != "" {
				return domain + `\` + account
			}
			return account
		}
	}
	return usernameFromPath(profilePath)
}

// InteractiveSession returns the user logged on at the physical console.
func (Host) InteractiveSession(ctx context.Context) (*UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sessionID := windows.WTSGetActiveConsoleSessionId()
	if sessionID == noConsoleSession {
		return nil, nil
	}

	var token windows.Token
	if err := windows.WTSQueryUserToken(sessionID, &token); err != nil {
		// ERROR_NO_TOKEN: the console session has no logged-on user.
		if errors.Is(err, windows.ERROR_NO_TOKEN) {
			return nil, nil
		}
		return nil, &HostQueryError{Op: "console session", Err: err}
	}
	defer token.Close()

	user, err := token.GetTokenUser()
	if err != nil {
		return nil, &HostQueryError{Op: "console token user", Err: err}
	}
	sid := user.User.Sid.String()
	profileDir, err := token.GetUserProfileDirectory()
	if err != nil {
		logging.Debug("Console user has no profile directory yet", "sid", sid, "error", err)
	}

	return &UserProfile{
		ProfilePath:             profileDir,
		SecurityID:              sid,
		Username:                lookupUsername(sid, profileDir),
		IsCurrentConsoleSession: true,
		SessionID:               sessionID,
	}, nil
}
