package outbox

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"subnetgov/core/events"
)

func openTestOutbox(t *testing.T) *Outbox {
	t.Helper()
	box, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	return box
}

func TestAppendAssignsPerSubnetSequence(t *testing.T) {
	box := openTestOutbox(t)

	for _, subnet := range []string{"subnet-a", "subnet-a", "subnet-b", "subnet-a"} {
		_, err := box.Append(&events.Envelope{
			Type:       "validator.added",
			Subnet:     subnet,
			Attributes: map[string]string{"validatorId": "v1"},
		})
		require.NoError(t, err)
	}

	records, err := box.PendingBatch(10)
	require.NoError(t, err)
	require.Len(t, records, 4)

	seqs := map[string][]uint64{}
	for _, r := range records {
		seqs[r.Subnet] = append(seqs[r.Subnet], r.Sequence)
	}
	require.Equal(t, []uint64{1, 2, 3}, seqs["subnet-a"])
	require.Equal(t, []uint64{1}, seqs["subnet-b"])

	attrs, err := records[0].Decode()
	require.NoError(t, err)
	require.Equal(t, "v1", attrs["validatorId"])
}

func TestMarkPublished(t *testing.T) {
	box := openTestOutbox(t)
	for i := 0; i < 3; i++ {
		_, err := box.Append(&events.Envelope{Type: "dao.vote.cast", Subnet: "subnet-a"})
		require.NoError(t, err)
	}

	records, err := box.PendingBatch(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NoError(t, box.MarkPublished([]uint64{records[0].ID, records[1].ID}))

	remaining, err := box.PendingBatch(10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)

	count, err := box.Pending()
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	require.NoError(t, box.MarkPublished(nil))
}

func TestAppendRejectsEmptyEnvelope(t *testing.T) {
	box := openTestOutbox(t)
	_, err := box.Append(nil)
	require.Error(t, err)
	_, err = box.Append(&events.Envelope{Subnet: "subnet-a"})
	require.Error(t, err)
}

type stubEvent struct{ subnet string }

func (stubEvent) EventType() string { return "stub.event" }
func (e stubEvent) Event() *events.Envelope {
	return &events.Envelope{Type: "stub.event", Subnet: e.subnet}
}

func TestEmitterJournalsEvents(t *testing.T) {
	box := openTestOutbox(t)
	emitter := NewEmitter(box, nil)
	emitter.Emit(stubEvent{subnet: "subnet-a"})

	records, err := box.PendingBatch(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "stub.event", records[0].Type)
}
