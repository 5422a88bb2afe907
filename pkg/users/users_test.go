package users

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceSID = "S-1-5-21-1111111111-2222222222-3333333333-1001"
	bobSID   = "S-1-12-1-4444444444-5555555555-6666666666-7777777777"
)

func TestIsUserSID(t *testing.T) {
	assert.True(t, IsUserSID(aliceSID))
	assert.True(t, IsUserSID(bobSID))
	assert.True(t, IsUserSID(" s-1-5-21-1-2-3-500 "))

	for _, sid := range []string{"S-1-5-18", "S-1-5-19", "S-1-5-20", "S-1-5-80-1-2-3", "", "garbage"} {
		assert.False(t, IsUserSID(sid), sid)
	}
}

func TestStaticFiltersSystemProfiles(t *testing.T) {
	r := Static{List: []UserProfile{
		{ProfilePath: `C:\Windows\system32\config\systemprofile`, SecurityID: "S-1-5-18"},
		{ProfilePath: `C:\Users\alice`, SecurityID: aliceSID, Username: "alice"},
		{ProfilePath: `C:\Windows\ServiceProfiles\LocalService`, SecurityID: "S-1-5-19"},
	}}

	got, err := r.Profiles(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, `C:\Users\alice`, got[0].ProfilePath)
	assert.False(t, got[0].IsCurrentConsoleSession)
}

func TestStaticMarksConsoleUser(t *testing.T) {
	console := &UserProfile{ProfilePath: `C:\Users\bob`, SecurityID: bobSID, SessionID: 2}
	r := Static{
		List: []UserProfile{
			{ProfilePath: `C:\Users\alice`, SecurityID: aliceSID},
			{ProfilePath: `C:\Users\bob`, SecurityID: bobSID},
		},
		Console: console,
	}

	got, err := r.Profiles(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[0].IsCurrentConsoleSession)
	assert.True(t, got[1].IsCurrentConsoleSession)
	assert.Equal(t, uint32(2), got[1].SessionID)

	session, err := r.InteractiveSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, session.IsCurrentConsoleSession)
	assert.Equal(t, bobSID, session.SecurityID)
}

func TestNoInteractiveSessionIsNotAnError(t *testing.T) {
	session, err := Static{}.InteractiveSession(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, session)
}

func TestProfileFailureIsHostQueryError(t *testing.T) {
	denied := errors.New("access denied")
	_, err := Static{ProfileErr: denied}.Profiles(context.Background())

	var hq *HostQueryError
	require.ErrorAs(t, err, &hq)
	assert.Equal(t, "profiles", hq.Op)
	assert.ErrorIs(t, err, denied)
}

func TestMarkConsoleAddsMissingProfile(t *testing.T) {
	console := &UserProfile{ProfilePath: `C:\Users\carol`, SecurityID: aliceSID}
	got := MarkConsole(nil, console)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsCurrentConsoleSession)

	// Without a profile path there is nothing to target.
	assert.Empty(t, MarkConsole(nil, &UserProfile{SecurityID: aliceSID}))
}

func TestAppDataPath(t *testing.T) {
	p := UserProfile{ProfilePath: `C:\Users\alice`}
	assert.Equal(t, `C:\Users\alice\AppData\Roaming`, p.AppDataPath())
	assert.Equal(t, "alice", usernameFromPath(p.ProfilePath))
}

func TestExpandTokens(t *testing.T) {
	p := UserProfile{ProfilePath: `C:\Users\alice`}
	assert.True(t, HasToken(`{AppData}\App\settings.json`))
	assert.False(t, HasToken(`C:\Program Files\App`))
	assert.Equal(t, `C:\Users\alice\AppData\Roaming\App`, Expand(`{AppData}\App`, p))
	assert.Equal(t, `C:\Users\alice\Desktop\App.lnk`, Expand(`{UserProfile}\Desktop\App.lnk`, p))
}
