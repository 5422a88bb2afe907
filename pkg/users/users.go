// pkg/users/users.go - local user profiles and the interactive console session

package users

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// UserProfile is a read-only snapshot of one local user profile.
type UserProfile struct {
	ProfilePath             string
	SecurityID              string
	Username                string
	IsCurrentConsoleSession bool
	SessionID               uint32 // only meaningful for the console user
}

// AppDataPath is the roaming application data folder of the profile.
func (p UserProfile) AppDataPath() string {
	return p.ProfilePath + `\AppData\Roaming`
}

// HostQueryError reports that the host's profile or session store could not be read.
type HostQueryError struct {
	Op  string
	Err error
}

func (e *HostQueryError) Error() string {
	return fmt.Sprintf("host query %s failed: %v", e.Op, e.Err)
}

func (e *HostQueryError) Unwrap() error { return e.Err }

// Resolver finds the profiles and the console user actions may target.
type Resolver interface {
	// Profiles lists local, non-system user profiles.
	Profiles(ctx context.Context) ([]UserProfile, error)
	// InteractiveSession returns the console user, or nil when nobody is
	// logged on at the console. Having no user is not an error.
	InteractiveSession(ctx context.Context) (*UserProfile, error)
}

// IsUserSID reports whether sid belongs to a human account: a local or
// domain account (S-1-5-21-...) or an Entra ID account (S-1-12-1-...).
// LocalSystem, LocalService, NetworkService and service SIDs are excluded.
func IsUserSID(sid string) bool {
	s := strings.ToUpper(strings.TrimSpace(sid))
	switch s {
	case "S-1-5-18", "S-1-5-19", "S-1-5-20":
		return false
	}
	return strings.HasPrefix(s, "S-1-5-21-") || strings.HasPrefix(s, "S-1-12-1-")
}

// MarkConsole flags the profile owned by the console user. The console user
// is added when it has no profile entry yet (first logon still in progress).
func MarkConsole(profiles []UserProfile, console *UserProfile) []UserProfile {
	if console == nil {
		return profiles
	}
	for i := range profiles {
		if strings.EqualFold(profiles[i].SecurityID, console.SecurityID) {
			profiles[i].IsCurrentConsoleSession = true
			profiles[i].SessionID = console.SessionID
			if profiles[i].Username == "" {
				profiles[i].Username = console.Username
			}
			return profiles
		}
	}
	if console.ProfilePath != "" {
		c := *console
		c.IsCurrentConsoleSession = true
		profiles = append(profiles, c)
	}
	return profiles
}

// Per-user path tokens. Paths containing them are instantiated once per profile.
const (
	TokenUserProfile = "{UserProfile}"
	TokenAppData     = "{AppData}"
)

// HasToken reports whether s refers to a per-user location.
func HasToken(s string) bool {
	return strings.Contains(s, TokenUserProfile) || strings.Contains(s, TokenAppData)
}

// Expand substitutes the per-user tokens for profile p.
func Expand(s string, p UserProfile) string {
	s = strings.ReplaceAll(s, TokenAppData, p.AppDataPath())
	return strings.ReplaceAll(s, TokenUserProfile, p.ProfilePath)
}

// usernameFromPath derives a display name when the SID cannot be resolved.
func usernameFromPath(profilePath string) string {
	return filepath.Base(strings.ReplaceAll(profilePath, `\`, "/"))
}

// Static is a fixed Resolver, used where the host has no profile store and in tests.
type Static struct {
	List       []UserProfile
	Console    *UserProfile
	ProfileErr error
	SessionErr error
}

func (s Static) Profiles(ctx context.Context) ([]UserProfile, error) {
	if s.ProfileErr != nil {
		return nil, &HostQueryError{Op: "profiles", Err: s.ProfileErr}
	}
	out := make([]UserProfile, 0, len(s.List))
	for _, p := range s.List {
		if IsUserSID(p.SecurityID) {
			out = append(out, p)
		}
	}
	return MarkConsole(out, s.Console), nil
}

func (s Static) InteractiveSession(ctx context.Context) (*UserProfile, error) {
	if s.SessionErr != nil {
		return nil, &HostQueryError{Op: "console session", Err: s.SessionErr}
	}
	if s.Console == nil {
		return nil, nil
	}
	c := *s.Console
	c.IsCurrentConsoleSession = true
	return &c, nil
}
