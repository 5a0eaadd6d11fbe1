package sq

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelRoundTrip(t *testing.T) {
	msg := LevelMessage(Input(3), AuxTarget(2), SetValue(1000))

	cmd, err := msg.ToNRPN()
	require.NoError(t, err)

	got, err := FromNRPN(cmd)
	require.NoError(t, err)
	require.Equal(t, msg, got)
}

func TestMuteRoundTrip(t *testing.T) {
	msg := MuteMessage(Input(10), On)

	cmd, err := msg.ToNRPN()
	require.NoError(t, err)
	require.Equal(t, uint8(0x00), cmd.Coarse)
	require.Equal(t, uint8(0x01), cmd.Fine)

	got, err := FromNRPN(cmd)
	require.NoError(t, err)
	require.Equal(t, msg, got)
}

func TestPanRoundTrip(t *testing.T) {
	msg := PanMessage(Group(4), LRTarget, SetValue(8191))

	cmd, err := msg.ToNRPN()
	require.NoError(t, err)

	got, err := FromNRPN(cmd)
	require.NoError(t, err)
	require.Equal(t, msg, got)
}

func TestAssignRoundTrip(t *testing.T) {
	msg := AssignMessage(Aux(5), MtxTarget(2), Toggle)

	cmd, err := msg.ToNRPN()
	require.NoError(t, err)

	got, err := FromNRPN(cmd)
	require.NoError(t, err)
	require.Equal(t, msg, got)
}

func TestDistinctMessagesHaveDistinctIDs(t *testing.T) {
	level, err := LevelMessage(Input(1), LRTarget, GetState).ToNRPN()
	require.NoError(t, err)
	pan, err := PanMessage(Input(1), LRTarget, GetState).ToNRPN()
	require.NoError(t, err)
	assign, err := AssignMessage(Input(1), LRTarget, GetButton).ToNRPN()
	require.NoError(t, err)
	mute, err := MuteMessage(Input(1), GetButton).ToNRPN()
	require.NoError(t, err)

	ids := map[uint16]bool{
		level.ID.Value():  true,
		pan.ID.Value():    true,
		assign.ID.Value(): true,
		mute.ID.Value():   true,
	}
	require.Len(t, ids, 4)
}

func TestSourceOutOfRangeIsAnError(t *testing.T) {
	_, err := LevelMessage(Input(49), LRTarget, GetState).ToNRPN()
	require.Error(t, err)
}
