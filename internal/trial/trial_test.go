package trial

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialmesh/trialmesh/internal/messages"
	"github.com/trialmesh/trialmesh/pkg/types"
)

// fakeConn is a scripted ipc.Connection: Put records what was sent, Get
// replays a canned Response.
type fakeConn struct {
	sent  []messages.Message
	reply messages.Message
}

func (f *fakeConn) Put(msg messages.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeConn) Get(context.Context) (messages.Message, error) {
	return f.reply, nil
}

func (f *fakeConn) Close() error { return nil }

func TestTrial_SuggestFloat(t *testing.T) {
	conn := &fakeConn{reply: messages.NewResponse(types.TrialID(1), 0.75)}
	tr := New(types.TrialID(1), conn)

	value, err := tr.SuggestFloat(context.Background(), "x", types.NewFloatDistribution(0, 1, 0, false))
	require.NoError(t, err)
	assert.Equal(t, 0.75, value)
	require.Len(t, conn.sent, 1)
	assert.IsType(t, messages.Suggest{}, conn.sent[0])
}

func TestTrial_SuggestFloat_WrongReplyType(t *testing.T) {
	conn := &fakeConn{reply: messages.NewResponse(types.TrialID(1), "not-a-float")}
	tr := New(types.TrialID(1), conn)

	_, err := tr.SuggestFloat(context.Background(), "x", types.NewFloatDistribution(0, 1, 0, false))
	assert.ErrorIs(t, err, ErrUnexpectedReply)
}

func TestTrial_Report_FireAndForget(t *testing.T) {
	conn := &fakeConn{}
	tr := New(types.TrialID(2), conn)

	require.NoError(t, tr.Report(1.0, 0))
	require.Len(t, conn.sent, 1)
	assert.IsType(t, messages.Report{}, conn.sent[0])
}

func TestTrial_ShouldPrune(t *testing.T) {
	conn := &fakeConn{reply: messages.NewResponse(types.TrialID(3), true)}
	tr := New(types.TrialID(3), conn)

	prune, err := tr.ShouldPrune(context.Background())
	require.NoError(t, err)
	assert.True(t, prune)
}

func TestTrial_SetUserAttr(t *testing.T) {
	conn := &fakeConn{}
	tr := New(types.TrialID(4), conn)

	require.NoError(t, tr.SetUserAttr("tag", "v1"))
	require.Len(t, conn.sent, 1)
	sa, ok := conn.sent[0].(messages.SetAttribute)
	require.True(t, ok)
	assert.Equal(t, types.AttributeUser, sa.Kind)
}

func TestTrial_Aliases(t *testing.T) {
	conn := &fakeConn{reply: messages.NewResponse(types.TrialID(5), 0.5)}
	tr := New(types.TrialID(5), conn)

	_, err := tr.Uniform(context.Background(), "u", 0, 1)
	require.NoError(t, err)
	_, err = tr.LogUniform(context.Background(), "lu", 0.001, 1)
	require.NoError(t, err)
	_, err = tr.DiscreteUniform(context.Background(), "du", 0, 1, 0.1)
	require.NoError(t, err)
}
