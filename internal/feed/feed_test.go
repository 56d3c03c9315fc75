package feed

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"github.com/umar/familychat/internal/models"
)

func msg(id, text string) models.Message {
	return models.Message{ID: id, ConversationID: "c1", Sender: "alice", Text: text}
}

func TestFeed_AppendIgnoresKnownKeys(t *testing.T) {
	req := require.New(t)
	f := New(msg("m1", "hi"))

	req.True(f.Append(msg("m2", "there")))
	req.False(f.Append(msg("m1", "hi again")))

	req.Equal([]string{"m1", "m2"}, lo.Map(f.All(), func(m models.Message, _ int) string { return m.ID }))
}

func TestFeed_PatchReplacesOnlyMatchingRow(t *testing.T) {
	req := require.New(t)
	// Given three messages
	f := New(msg("m1", "one"), msg("m2", "two"), msg("m3", "three"))
	before := f.All()

	// When the middle one is soft-deleted
	deleted := msg("m2", "two")
	deleted.DeletedAt = lo.ToPtr(time.Now())
	req.True(f.Patch(deleted))

	// Then only m2 changed and it is no longer visible
	after := f.All()
	req.Equal(before[0], after[0])
	req.Equal(before[2], after[2])
	req.NotNil(after[1].DeletedAt)
	req.Equal([]string{"m1", "m3"}, lo.Map(f.Visible(), func(m models.Message, _ int) string { return m.ID }))
}

func TestFeed_PatchUnknownKeyIsNoop(t *testing.T) {
	req := require.New(t)
	f := New(msg("m1", "one"))

	req.False(f.Patch(msg("zz", "other")))
	req.Equal(1, f.Len())
}

func TestFeed_ResetReplacesState(t *testing.T) {
	req := require.New(t)
	f := New(msg("m1", "one"))

	f.Reset([]models.Message{msg("m7", "seven"), msg("m8", "eight")})

	req.Equal(2, f.Len())
	req.Equal("m7", f.All()[0].ID)
}
