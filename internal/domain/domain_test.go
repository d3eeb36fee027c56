package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipantKey_OrderAndDuplicatesIgnored(t *testing.T) {
	a := ParticipantKey([]string{"c", "a", "b"})
	b := ParticipantKey([]string{" b ", "a", "c", "a", ""})
	assert.Equal(t, "a,b,c", a)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, ParticipantKey([]string{"a", "b"}))
}

func TestIsNewChatID(t *testing.T) {
	assert.True(t, IsNewChatID(""))
	assert.True(t, IsNewChatID(" new "))
	assert.True(t, IsNewChatID("NEW"))
	assert.False(t, IsNewChatID("8f0c"))
}

func TestCountUnread(t *testing.T) {
	now := time.Now().UTC()
	msgs := []Message{
		{ID: "1", SenderID: "u", SeenBy: []SeenEntry{{UserID: "u", SeenAt: now}}},
		{ID: "2", SenderID: "v", SeenBy: []SeenEntry{{UserID: "v", SeenAt: now}}},
		{ID: "3", SenderID: "v", SeenBy: []SeenEntry{{UserID: "v", SeenAt: now}, {UserID: "u", SeenAt: now}}},
	}
	assert.Equal(t, 1, CountUnread(msgs, "u"))
	assert.Equal(t, 1, CountUnread(msgs, "v"))
	assert.Equal(t, 3, CountUnread(msgs, "w"))

	own := []Message{{ID: "1", SenderID: "u"}, {ID: "2", SenderID: "u"}}
	assert.Zero(t, CountUnread(own, "u"))
}

func TestAllWithRole_DefaultsToCoordinator(t *testing.T) {
	roles := AllWithRole{}.EffectiveRoles()
	assert.Equal(t, RoleFlags{Coordinator: true}, roles)

	roles = AllWithRole{Roles: RoleFlags{Advisor: true}}.EffectiveRoles()
	assert.Equal(t, RoleFlags{Advisor: true}, roles)
}

func TestAudienceSpec_ToAudience(t *testing.T) {
	aud, err := AudienceSpec{Kind: "users", UserIDs: []string{"a"}}.ToAudience()
	require.NoError(t, err)
	assert.Equal(t, ExplicitUsers{UserIDs: []string{"a"}}, aud)

	aud, err = AudienceSpec{Kind: "role", Roles: RoleFlags{Judge: true}}.ToAudience()
	require.NoError(t, err)
	assert.Equal(t, AllWithRole{Roles: RoleFlags{Judge: true}}, aud)

	aud, err = AudienceSpec{Kind: "role", GroupID: " g1 ", Roles: RoleFlags{Student: true}}.ToAudience()
	require.NoError(t, err)
	assert.Equal(t, GroupScoped{GroupID: "g1", Roles: RoleFlags{Student: true}}, aud)

	_, err = AudienceSpec{Kind: "group"}.ToAudience()
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = AudienceSpec{Kind: "users"}.ToAudience()
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = AudienceSpec{Kind: "everyone"}.ToAudience()
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestRoleFlags_Overlaps(t *testing.T) {
	assert.True(t, RoleFlags{Advisor: true, Judge: true}.Overlaps(RoleFlags{Judge: true}))
	assert.False(t, RoleFlags{Student: true}.Overlaps(RoleFlags{Advisor: true}))
	assert.True(t, RoleFlags{}.Empty())
}

func TestNextMessageTime_StaysAfterPreview(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, base, NextMessageTime(base, nil))
	assert.Equal(t, base, NextMessageTime(base, &LastMessage{CreatedAt: base.Add(-time.Second)}))

	// Reloj atrasado respecto de la vista previa: se avanza un microsegundo.
	last := &LastMessage{CreatedAt: base.Add(time.Hour)}
	assert.Equal(t, base.Add(time.Hour+time.Microsecond), NextMessageTime(base, last))
	assert.Equal(t, base.Add(time.Hour+time.Microsecond), NextMessageTime(base.Add(time.Hour), last))
}

func TestMessageDraft_CommitStampsMessageAndPreview(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg, preview := MessageDraft{ID: "m1", SenderID: "u1", SenderName: "Ana", Body: "hola"}.Commit("c1", at)

	assert.Equal(t, "c1", msg.ChatID)
	assert.Equal(t, at, msg.CreatedAt)
	require.Len(t, msg.SeenBy, 1)
	assert.Equal(t, SeenEntry{UserID: "u1", SeenAt: at}, msg.SeenBy[0])
	assert.Equal(t, "m1", preview.ID)
	assert.Equal(t, at, preview.CreatedAt)
	assert.Equal(t, []string{"Ana"}, preview.SeenByNames)
}
